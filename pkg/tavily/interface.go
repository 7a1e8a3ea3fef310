package tavily

import (
	"context"
)

// ITavily is the web search surface used by the information reasoner.
// Implementations are safe for concurrent use.
type ITavily interface {
	Search(ctx context.Context, query string) ([]Result, error)
}
