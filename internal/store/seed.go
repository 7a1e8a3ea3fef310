package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/chat-food/server/internal/agent/model"
)

// Seed is the JSON document used to load demo orders and catalog entries.
type Seed struct {
	Foods  []model.FoodMatch `json:"foods"`
	Orders []model.Order     `json:"orders"`
}

func LoadSeed(r io.Reader) (Seed, error) {
	var s Seed
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	return s, nil
}

// Apply inserts every food and order, stopping at the first failure.
func (s Seed) Apply(ctx context.Context, orders *OrderStore, catalog *CatalogStore) error {
	for _, f := range s.Foods {
		if _, err := catalog.Add(ctx, f); err != nil {
			return fmt.Errorf("seed food %q: %w", f.Name, err)
		}
	}
	for _, o := range s.Orders {
		if _, err := orders.Create(ctx, o); err != nil {
			return fmt.Errorf("seed order %q: %w", o.ID, err)
		}
	}
	return nil
}
