package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/chat-food/server/internal/agent/graph/prompts"
	"github.com/chat-food/server/internal/agent/model"
	logx "github.com/chat-food/server/pkg/logger"
)

// FoodLookup carries catalog matches from the lookup node to the reply node.
type FoodLookup struct {
	Query   string
	Matches []model.FoodMatch
	// Missing is set when neither a food nor a restaurant was named.
	Missing bool
	Failed  bool
}

// FoodDetails answers "which restaurant has X and for how much" questions.
// It backs the food search sub-graph and the suggestion reasoner's details tool.
type FoodDetails struct {
	extractor *SlotExtractor
	catalog   model.CatalogService
	llm       *LLM
}

func NewFoodDetails(e *SlotExtractor, catalog model.CatalogService, llm *LLM) *FoodDetails {
	return &FoodDetails{extractor: e, catalog: catalog, llm: llm}
}

// Lookup queries the catalog for the food and restaurant slots.
func (f *FoodDetails) Lookup(ctx context.Context, query string, slots model.Slots) FoodLookup {
	food, restaurant := slots.Get(model.SlotFoodName), slots.Get(model.SlotRestaurantName)
	if model.IsAbsent(food) && model.IsAbsent(restaurant) {
		return FoodLookup{Query: query, Missing: true}
	}

	matches, err := f.catalog.Find(ctx, food, restaurant)
	if err != nil {
		logx.Error().Err(err).Str("food_name", food).Str("restaurant_name", restaurant).Msg("catalog lookup failed")
		return FoodLookup{Query: query, Failed: true}
	}
	logx.Info().Str("food_name", food).Str("restaurant_name", restaurant).Int("matches", len(matches)).Msg("catalog lookup")
	return FoodLookup{Query: query, Matches: matches}
}

// Reply writes the answer for a lookup. A failed model call falls back to
// a plain listing of the matches.
func (f *FoodDetails) Reply(ctx context.Context, l FoodLookup) (string, string) {
	switch {
	case l.Failed:
		return ApologyMessage, ""
	case l.Missing:
		return NoFoodNamedMessage, model.StatusMissing
	case len(l.Matches) == 0:
		return NoRestaurantMessage, model.StatusNotExist
	}

	msgs, err := prompts.RenderSearchReply(ctx, l.Query, l.Matches)
	if err == nil {
		var out *schema.Message
		if out, err = f.llm.GenerateStream(ctx, msgs); err == nil {
			if text := strings.TrimSpace(out.Content); text != "" {
				return text, model.StatusFound
			}
		}
	}
	logx.Warn().Err(err).Msg("search reply generation failed, listing matches")
	return ListMatches(l.Matches), model.StatusFound
}

// Describe runs extraction, lookup and reply writing for free text.
// Its reply feeds a tool result, so nothing is streamed to the user.
func (f *FoodDetails) Describe(ctx context.Context, text string) string {
	ctx = WithoutTokenSink(ctx)
	slots := f.extractor.Extract(ctx, text, model.FoodSlotFields)
	reply, _ := f.Reply(ctx, f.Lookup(ctx, text, slots))
	return reply
}

// ListMatches renders matches as a plain bullet list with prices.
func ListMatches(matches []model.FoodMatch) string {
	var b strings.Builder
	b.WriteString("Here is what I found:")
	for _, m := range matches {
		fmt.Fprintf(&b, "\n- %s at %s: %.2f", m.Name, m.Restaurant, m.Price)
	}
	return b.String()
}

// NewCatalogLookupNode queries the catalog with the slots on the session state.
func NewCatalogLookupNode(f *FoodDetails) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.TurnInput) (FoodLookup, error) {
		return f.Lookup(ctx, in.Query, sessionSlots(ctx)), nil
	})
}

// NewSearchReplyNode turns a lookup into the user-facing answer.
func NewSearchReplyNode(f *FoodDetails) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, l FoodLookup) (*schema.Message, error) {
		text, status := f.Reply(ctx, l)
		_ = compose.ProcessState(ctx, func(_ context.Context, s *model.SessionState) error {
			s.Intent = model.IntentSearch
			s.Status = status
			return nil
		})
		return newReply(text, model.IntentSearch, model.IntentSearch, status), nil
	})
}
