// Package prompts renders the embedded prompt templates through the Eino
// prompt component so every render emits prompt callbacks.
package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/chat-food/server/internal/agent/model"
)

var (
	//go:embed template/classifier_prompt.txt
	classifierPrompt string
	//go:embed template/slot_prompt.txt
	slotPrompt string
	//go:embed template/value_prompt.txt
	valuePrompt string
	//go:embed template/information_prompt.txt
	informationPrompt string
	//go:embed template/suggestion_prompt.txt
	suggestionPrompt string
	//go:embed template/search_reply_prompt.txt
	searchReplyPrompt string
	//go:embed template/context_answer_prompt.txt
	contextAnswerPrompt string
	//go:embed template/suggest_from_passages_prompt.txt
	suggestFromPassagesPrompt string
	//go:embed template/final_notice_prompt.txt
	finalNoticePrompt string
)

type labelView struct {
	Index       int
	Name        string
	Description string
}

// RenderClassifier builds the two-message classification prompt: the label
// enumeration as system message and the raw user text as user message.
func RenderClassifier(ctx context.Context, labels model.LabelSet, query string) ([]*schema.Message, error) {
	views := make([]labelView, 0, len(labels.Labels))
	for i, l := range labels.Labels {
		views = append(views, labelView{Index: i + 1, Name: l.Name.String(), Description: l.Description})
	}
	example := ""
	if len(views) > 0 {
		example = views[0].Name
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(classifierPrompt),
		schema.UserMessage("{{.Query}}"),
	)
	return format(ctx, "classifier", tpl, map[string]any{
		"Labels":  views,
		"Example": example,
		"Query":   query,
	})
}

// RenderSlotExtraction asks for one comma separated value per field, in order.
func RenderSlotExtraction(ctx context.Context, fields []string, text string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate, schema.UserMessage(slotPrompt))
	return format(ctx, "slot_extraction", tpl, map[string]any{
		"Format": strings.Join(fields, ","),
		"Names":  strings.Join(fields, ", "),
		"Text":   text,
	})
}

// RenderValueExtraction asks for a single field. hint may be empty.
func RenderValueExtraction(ctx context.Context, field, hint, text string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate, schema.UserMessage(valuePrompt))
	return format(ctx, "value_extraction", tpl, map[string]any{
		"Field": field,
		"Hint":  hint,
		"Text":  text,
	})
}

func RenderInformationSystem(ctx context.Context, dbTool, webTool string) (*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate, schema.SystemMessage(informationPrompt))
	return first(format(ctx, "information_system", tpl, map[string]any{
		"DBTool":  dbTool,
		"WebTool": webTool,
	}))
}

func RenderSuggestionSystem(ctx context.Context, searchTool, detailsTool string) (*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate, schema.SystemMessage(suggestionPrompt))
	return first(format(ctx, "suggestion_system", tpl, map[string]any{
		"SearchTool":  searchTool,
		"DetailsTool": detailsTool,
	}))
}

// RenderSearchReply asks the model to describe catalog matches for the query.
func RenderSearchReply(ctx context.Context, query string, matches []model.FoodMatch) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate, schema.UserMessage(searchReplyPrompt))
	return format(ctx, "search_reply", tpl, map[string]any{
		"Query":   query,
		"Matches": matches,
	})
}

// RenderContextAnswer asks for an answer grounded on snippets; source names
// where they came from ("context", "results").
func RenderContextAnswer(ctx context.Context, query, source string, snippets []string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate, schema.UserMessage(contextAnswerPrompt))
	return format(ctx, "context_answer", tpl, map[string]any{
		"Query":    query,
		"Source":   source,
		"Snippets": snippets,
	})
}

func RenderSuggestFromPassages(ctx context.Context, query string, snippets []string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate, schema.UserMessage(suggestFromPassagesPrompt))
	return format(ctx, "suggest_from_passages", tpl, map[string]any{
		"Query":    query,
		"Snippets": snippets,
	})
}

// FinalNotice is appended to the reasoner history when the round budget is spent.
func FinalNotice() *schema.Message {
	return schema.SystemMessage(strings.TrimSpace(finalNoticePrompt))
}

func format(ctx context.Context, name string, tpl prompt.ChatTemplate, vars map[string]any) ([]*schema.Message, error) {
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return nil, fmt.Errorf("%s prompt render: empty result", name)
	}
	return msgs, nil
}

func first(msgs []*schema.Message, err error) (*schema.Message, error) {
	if err != nil {
		return nil, err
	}
	return msgs[0], nil
}
