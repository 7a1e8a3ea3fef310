package model

import (
	"context"
	"time"
)

type FoodMatch struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Restaurant string  `json:"restaurant"`
	Price      float64 `json:"price"`
}

// CatalogService finds foods by name and/or restaurant.
// SlotAbsent for either argument means "no filter on that field".
type CatalogService interface {
	Find(ctx context.Context, foodName, restaurantName string) ([]FoodMatch, error)
}

// SearchMode selects how the passage index is queried.
type SearchMode string

const (
	SearchKeyword  SearchMode = "keyword"
	SearchSemantic SearchMode = "semantic"
	SearchHybrid   SearchMode = "hybrid"
)

// ParseSearchMode falls back to hybrid for unknown values.
func ParseSearchMode(v string) SearchMode {
	switch SearchMode(v) {
	case SearchKeyword:
		return SearchKeyword
	case SearchSemantic:
		return SearchSemantic
	default:
		return SearchHybrid
	}
}

// Passage is one chunk of the parsed document corpus.
type Passage struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"document_id"`
	Text         string    `json:"text"`
	FileName     string    `json:"file_name"`
	CreationDate time.Time `json:"creation_date"`
	PageNumber   int       `json:"page_number"`
	Score        float64   `json:"score"`
}

// PassageSearcher is the vector-search collaborator.
type PassageSearcher interface {
	Search(ctx context.Context, query string, mode SearchMode, limit int) ([]Passage, error)
}

type WebResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// WebSearcher is the web-search collaborator.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]WebResult, error)
}
