package parsers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chat-food/server/internal/agent/model"
)

// basic safety limits to avoid pathological model replies
const (
	maxReplyLen   = 4 * 1024
	maxErrSnippet = 200
)

// wrapping characters models tend to put around a bare answer
const wrapChars = " \t\r\n'\"`*.,;:!?()[]{}"

var (
	ErrEmptyReply        = errors.New("empty reply")
	ErrReplyTooLarge     = errors.New("reply too large")
	ErrUnknownLabel      = errors.New("reply does not name a known label")
	ErrLabelMismatch     = errors.New("label index and name disagree")
	ErrSlotCountMismatch = errors.New("slot count mismatch")
)

// ParseIntent maps a classifier reply onto a label of the set.
// Accepted surface forms, compared case-insensitively after trimming quotes
// and punctuation: "N", "name", "N-name", "N_name", "N-'name'", "N. name".
// Spaces and dashes inside a name are read as underscores. When both an index
// and a name are present they must point at the same label.
func ParseIntent(reply string, labels model.LabelSet) (model.Intent, error) {
	s, err := firstLine(reply)
	if err != nil {
		return labels.Fallback, err
	}
	s = strings.ToLower(strings.Trim(s, wrapChars))
	if s == "" {
		return labels.Fallback, ErrEmptyReply
	}

	digits := 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		digits++
	}

	rest := s[digits:]
	if digits > 0 {
		rest = strings.TrimLeft(rest, " -_.):")
	}
	name := normalizeName(strings.Trim(rest, wrapChars))

	if digits == 0 {
		if labels.Contains(model.Intent(name)) {
			return model.Intent(name), nil
		}
		return labels.Fallback, fmt.Errorf("%w: %q", ErrUnknownLabel, safeSnippet(reply))
	}

	idx, err := strconv.Atoi(s[:digits])
	if err != nil {
		return labels.Fallback, fmt.Errorf("%w: %q", ErrUnknownLabel, safeSnippet(reply))
	}
	byIndex, ok := labels.At(idx)
	if !ok {
		return labels.Fallback, fmt.Errorf("%w: index %d", ErrUnknownLabel, idx)
	}
	if name != "" && model.Intent(name) != byIndex {
		return labels.Fallback, fmt.Errorf("%w: %q", ErrLabelMismatch, safeSnippet(reply))
	}
	return byIndex, nil
}

// ParseSlots splits a comma separated extraction reply into exactly one value
// per field, in field order. Empty values and any casing of "None" become
// model.SlotAbsent. On a count mismatch every field is absent and an error
// describing the mismatch is returned.
func ParseSlots(reply string, fields []string) (model.Slots, error) {
	absent := model.AbsentSlots(fields)

	s, err := firstLine(reply)
	if err != nil {
		return absent, err
	}
	// a reply quoted as a whole, e.g. '42,555-1234,None'
	s = strings.Trim(s, " \t'\"`")

	parts := strings.Split(s, ",")
	if len(parts) != len(fields) {
		return absent, fmt.Errorf("%w: want %d values, got %d in %q", ErrSlotCountMismatch, len(fields), len(parts), safeSnippet(reply))
	}

	out := make(model.Slots, len(fields))
	for i, f := range fields {
		out[f] = ParseValue(parts[i])
	}
	return out, nil
}

// ParseValue cleans a single extracted value.
func ParseValue(reply string) string {
	v := strings.TrimSpace(reply)
	v = strings.Trim(v, "'\"`")
	v = strings.TrimSpace(v)
	if model.IsAbsent(v) {
		return model.SlotAbsent
	}
	return v
}

func normalizeName(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, s)
}

// firstLine returns the first non-blank line of a bounded, valid reply.
func firstLine(reply string) (string, error) {
	if len(reply) > maxReplyLen {
		return "", ErrReplyTooLarge
	}
	if !utf8.ValidString(reply) {
		return "", fmt.Errorf("reply is not valid utf8")
	}
	for _, line := range strings.Split(reply, "\n") {
		if strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line), nil
		}
	}
	return "", ErrEmptyReply
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
