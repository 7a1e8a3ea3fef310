package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/chat-food/server/internal/agent/graph/nodes"
	"github.com/chat-food/server/internal/agent/graph/prompts"
	"github.com/chat-food/server/internal/agent/graph/tools"
	"github.com/chat-food/server/internal/agent/model"
	logx "github.com/chat-food/server/pkg/logger"
)

const (
	routerSteps   = 20
	subGraphSteps = 20
)

// reasonerSteps bounds a reasoning sub-graph: input, finalize and one model
// plus one tools step per round, with headroom.
func reasonerSteps(maxRounds int) int {
	if maxRounds <= 0 {
		maxRounds = nodes.DefaultMaxRounds
	}
	steps := 10 + maxRounds*2
	if steps < subGraphSteps {
		steps = subGraphSteps
	}
	return steps
}

func newSessionGraph() *compose.Graph[model.TurnInput, *schema.Message] {
	return compose.NewGraph[model.TurnInput, *schema.Message](
		compose.WithGenLocalState(func(ctx context.Context) *model.SessionState {
			return &model.SessionState{}
		}),
	)
}

// buildOrdersGraph: order classifier, slots over the turns of that operation,
// then one handler per order operation.
func (b *GraphBuilder) buildOrdersGraph() (*compose.Graph[model.TurnInput, *schema.Message], error) {
	g := newSessionGraph()
	orders := b.config.Orders

	add := []struct {
		key  string
		node *compose.Lambda
		opts []compose.GraphAddNodeOpt
	}{
		{nodes.NodeOrderClassifier, nodes.NewOrderClassifierNode(b.classifier, b.extractor, b.config.MessagesManager),
			[]compose.GraphAddNodeOpt{compose.WithStatePreHandler(nodes.NewSessionStatePreHandler(model.OrderSlotFields))}},
		{nodes.NodeOrderSlots, nodes.NewSlotsNode(b.extractor, model.OrderSlotFields), nil},
		{nodes.NodeCancelOrder, nodes.NewCancelOrderNode(orders), nil},
		{nodes.NodeCommentOrder, nodes.NewCommentOrderNode(orders, b.extractor), nil},
		{nodes.NodeOrderStatus, nodes.NewOrderStatusNode(orders), nil},
		{nodes.NodeOrderOther, nodes.NewOrderOtherNode(), nil},
	}
	for _, n := range add {
		if err := g.AddLambdaNode(n.key, n.node, n.opts...); err != nil {
			return nil, fmt.Errorf("error adding %s node: %w", n.key, err)
		}
	}

	edges := [][2]string{
		{compose.START, nodes.NodeOrderClassifier},
		{nodes.NodeOrderClassifier, nodes.NodeOrderSlots},
		{nodes.NodeCancelOrder, compose.END},
		{nodes.NodeCommentOrder, compose.END},
		{nodes.NodeOrderStatus, compose.END},
		{nodes.NodeOrderOther, compose.END},
	}
	if err := addEdges(g, edges); err != nil {
		return nil, err
	}

	intentBranch := compose.NewGraphBranch(
		nodes.NewOrderIntentCondition(),
		map[string]bool{
			nodes.NodeCancelOrder:  true,
			nodes.NodeCommentOrder: true,
			nodes.NodeOrderStatus:  true,
			nodes.NodeOrderOther:   true,
		},
	)
	if err := g.AddBranch(nodes.NodeOrderSlots, intentBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding order intent branch")
		return nil, fmt.Errorf("error adding order intent branch: %w", err)
	}
	return g, nil
}

// buildSearchGraph: food slots, catalog lookup, reply.
func (b *GraphBuilder) buildSearchGraph() (*compose.Graph[model.TurnInput, *schema.Message], error) {
	g := newSessionGraph()

	if err := g.AddLambdaNode(nodes.NodeFoodSlots,
		nodes.NewSlotsNode(b.extractor, model.FoodSlotFields),
		compose.WithStatePreHandler(nodes.NewSessionStatePreHandler(model.FoodSlotFields)),
	); err != nil {
		return nil, fmt.Errorf("error adding food slots node: %w", err)
	}
	if err := g.AddLambdaNode(nodes.NodeCatalogLookup, nodes.NewCatalogLookupNode(b.details)); err != nil {
		return nil, fmt.Errorf("error adding catalog lookup node: %w", err)
	}
	if err := g.AddLambdaNode(nodes.NodeSearchReply, nodes.NewSearchReplyNode(b.details)); err != nil {
		return nil, fmt.Errorf("error adding search reply node: %w", err)
	}

	edges := [][2]string{
		{compose.START, nodes.NodeFoodSlots},
		{nodes.NodeFoodSlots, nodes.NodeCatalogLookup},
		{nodes.NodeCatalogLookup, nodes.NodeSearchReply},
		{nodes.NodeSearchReply, compose.END},
	}
	if err := addEdges(g, edges); err != nil {
		return nil, err
	}
	return g, nil
}

func (b *GraphBuilder) buildInformationGraph(ctx context.Context) (*compose.Graph[model.TurnInput, *schema.Message], error) {
	opts := tools.PassageOptions{
		Mode:  model.ParseSearchMode(b.config.Search.Mode),
		Limit: b.config.Search.InfoLimit,
	}
	toolSet := []tool.BaseTool{
		tools.NewVectorSearchTool(b.config.Passages, b.response, opts),
		tools.NewWebSearchTool(b.config.Web, b.response),
	}
	system, err := prompts.RenderInformationSystem(ctx, tools.ToolVectorSearch, tools.ToolWebSearch)
	if err != nil {
		return nil, err
	}
	return b.buildReasonerGraph(ctx, model.IntentInformation, system, toolSet)
}

func (b *GraphBuilder) buildSuggestionGraph(ctx context.Context) (*compose.Graph[model.TurnInput, *schema.Message], error) {
	opts := tools.PassageOptions{
		Mode:  model.ParseSearchMode(b.config.Search.Mode),
		Limit: b.config.Search.SuggestLimit,
	}
	suggester := tools.NewSuggester(b.config.Passages, b.response, b.extractor, b.details, opts)
	toolSet := []tool.BaseTool{
		tools.NewSuggestFoodTool(suggester),
		tools.NewFoodDetailsTool(b.details),
	}
	system, err := prompts.RenderSuggestionSystem(ctx, tools.ToolSuggestFood, tools.ToolFoodDetails)
	if err != nil {
		return nil, err
	}
	return b.buildReasonerGraph(ctx, model.IntentSuggestion, system, toolSet)
}

// buildReasonerGraph wires the reason/act loop around a tool-bound copy of
// the response model.
func (b *GraphBuilder) buildReasonerGraph(ctx context.Context, domain model.Intent, system *schema.Message, toolSet []tool.BaseTool) (*compose.Graph[model.TurnInput, *schema.Message], error) {
	cms := b.config.ChatModels
	bound, err := cms.ResponseWithTools(ctx, toolSet)
	if err != nil {
		return nil, err
	}
	llm := nodes.NewLLM(bound, cms.ResponseModelName, b.config.Reasoner.CallTimeout)

	toolsNode, err := tools.NewToolsNode(ctx, toolSet)
	if err != nil {
		return nil, err
	}

	g := compose.NewGraph[model.TurnInput, *schema.Message](
		compose.WithGenLocalState(func(ctx context.Context) *model.ReasonerState {
			return &model.ReasonerState{}
		}),
	)

	maxRounds := b.config.Reasoner.MaxRounds
	if err := g.AddLambdaNode(nodes.NodeReasonerInput,
		nodes.NewReasonerInputNode(system),
		compose.WithStatePreHandler(nodes.NewReasonerInputPreHandler()),
	); err != nil {
		return nil, fmt.Errorf("error adding reasoner input node: %w", err)
	}
	if err := g.AddLambdaNode(nodes.NodeReasoner,
		nodes.NewReasonerNode(llm),
		compose.WithStatePreHandler(nodes.NewReasonerPreHandler(maxRounds)),
		compose.WithStatePostHandler(nodes.NewReasonerPostHandler()),
	); err != nil {
		return nil, fmt.Errorf("error adding reasoner node: %w", err)
	}
	if err := g.AddToolsNode(nodes.NodeToolExecutor, toolsNode,
		compose.WithStatePreHandler(nodes.NewToolExecutorPreHandler()),
	); err != nil {
		return nil, fmt.Errorf("error adding tools node: %w", err)
	}
	if err := g.AddLambdaNode(nodes.NodeFinalize, nodes.NewFinalizeNode(domain)); err != nil {
		return nil, fmt.Errorf("error adding finalize node: %w", err)
	}

	edges := [][2]string{
		{compose.START, nodes.NodeReasonerInput},
		{nodes.NodeReasonerInput, nodes.NodeReasoner},
		{nodes.NodeToolExecutor, nodes.NodeReasoner},
		{nodes.NodeFinalize, compose.END},
	}
	if err := addEdges(g, edges); err != nil {
		return nil, err
	}

	decisionBranch := compose.NewGraphBranch(
		nodes.NewReasonerCondition(),
		map[string]bool{
			nodes.NodeToolExecutor: true,
			nodes.NodeFinalize:     true,
		},
	)
	if err := g.AddBranch(nodes.NodeReasoner, decisionBranch); err != nil {
		logx.Error().Err(err).Str("domain", domain.String()).Msg("Error adding decision branch")
		return nil, fmt.Errorf("error adding decision branch: %w", err)
	}
	return g, nil
}

func addEdges[I, O any](g *compose.Graph[I, O], edges [][2]string) error {
	for _, edge := range edges {
		if err := g.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}
