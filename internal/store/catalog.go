package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"

	"github.com/chat-food/server/internal/agent/model"
	errx "github.com/chat-food/server/internal/core/error"
)

// CatalogStore implements model.CatalogService over the foods table.
type CatalogStore struct {
	db *sql.DB
}

func NewCatalogStore(db *sql.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// Find matches food and restaurant names case-insensitively as substrings.
// When nothing matches, names within a small edit distance of the query are
// returned instead, closest first. An absent argument does not filter; both
// absent matches nothing.
func (s *CatalogStore) Find(ctx context.Context, foodName, restaurantName string) ([]model.FoodMatch, error) {
	out, err := s.findSubstring(ctx, foodName, restaurantName)
	if err != nil || len(out) > 0 {
		return out, err
	}
	if model.IsAbsent(foodName) && model.IsAbsent(restaurantName) {
		return nil, nil
	}
	return s.findClose(ctx, foodName, restaurantName)
}

func (s *CatalogStore) findSubstring(ctx context.Context, foodName, restaurantName string) ([]model.FoodMatch, error) {
	var (
		conds []string
		args  []any
	)
	if !model.IsAbsent(foodName) {
		conds = append(conds, `instr(lower(name), lower(?)) > 0`)
		args = append(args, strings.TrimSpace(foodName))
	}
	if !model.IsAbsent(restaurantName) {
		conds = append(conds, `instr(lower(restaurant), lower(?)) > 0`)
		args = append(args, strings.TrimSpace(restaurantName))
	}
	if len(conds) == 0 {
		return nil, nil
	}

	q := fmt.Sprintf(
		`SELECT id, name, category, restaurant, price FROM foods WHERE %s ORDER BY price, name, restaurant`,
		strings.Join(conds, " AND "),
	)
	return s.query(ctx, q, args...)
}

// findClose scans the catalog for names within typo distance of the query.
func (s *CatalogStore) findClose(ctx context.Context, foodName, restaurantName string) ([]model.FoodMatch, error) {
	all, err := s.query(ctx, `SELECT id, name, category, restaurant, price FROM foods ORDER BY price, name, restaurant`)
	if err != nil {
		return nil, err
	}

	type scored struct {
		match model.FoodMatch
		dist  int
	}
	var hits []scored
	for _, m := range all {
		total := 0
		ok := true
		for _, f := range [][2]string{{foodName, m.Name}, {restaurantName, m.Restaurant}} {
			if model.IsAbsent(f[0]) {
				continue
			}
			d, near := nameDistance(f[0], f[1])
			if !near {
				ok = false
				break
			}
			total += d
		}
		if ok {
			hits = append(hits, scored{match: m, dist: total})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	out := make([]model.FoodMatch, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.match)
	}
	return out, nil
}

// nameDistance compares query with the whole name and with each of its
// words, returning the smallest edit distance and whether it is a typo match.
func nameDistance(query, name string) (int, bool) {
	query = strings.ToLower(strings.TrimSpace(query))
	name = strings.ToLower(name)
	if strings.Contains(name, query) {
		return 0, true
	}
	best := levenshtein.ComputeDistance(query, name)
	for _, word := range strings.Fields(name) {
		best = min(best, levenshtein.ComputeDistance(query, word))
	}
	return best, best <= maxTypos(query)
}

// maxTypos allows one edit per four runes of the query, at least one.
func maxTypos(query string) int {
	return max(1, utf8.RuneCountInString(query)/4)
}

func (s *CatalogStore) query(ctx context.Context, q string, args ...any) ([]model.FoodMatch, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errx.WrapDB(err)
	}
	defer rows.Close()

	var out []model.FoodMatch
	for rows.Next() {
		var m model.FoodMatch
		if err := rows.Scan(&m.ID, &m.Name, &m.Category, &m.Restaurant, &m.Price); err != nil {
			return nil, errx.WrapDB(err)
		}
		out = append(out, m)
	}
	return out, errx.WrapDB(rows.Err())
}

// Add inserts a catalog entry, generating an id when none is set.
func (s *CatalogStore) Add(ctx context.Context, m model.FoodMatch) (model.FoodMatch, error) {
	if strings.TrimSpace(m.Name) == "" || strings.TrimSpace(m.Restaurant) == "" {
		return model.FoodMatch{}, fmt.Errorf("food name and restaurant are required")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO foods (id, name, category, restaurant, price) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Category, m.Restaurant, m.Price,
	); err != nil {
		return model.FoodMatch{}, errx.WrapDB(err)
	}
	return m, nil
}
