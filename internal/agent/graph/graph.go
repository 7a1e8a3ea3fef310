package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/chat-food/server/internal/agent/graph/conversations"
	"github.com/chat-food/server/internal/agent/graph/nodes"
	"github.com/chat-food/server/internal/agent/model"
	logx "github.com/chat-food/server/pkg/logger"
)

// Config holds everything needed to compose the router graph end-to-end.
type Config struct {
	ChatModels      *nodes.ChatModels
	MessagesManager *conversations.MessagesManager
	Orders          model.OrderService
	Catalog         model.CatalogService
	Passages        model.PassageSearcher
	Web             model.WebSearcher
	Reasoner        model.ReasonerConfig
	Search          model.SearchConfig
}

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("graph config is nil")
	}
	if c.ChatModels == nil || c.ChatModels.Router == nil || c.ChatModels.Response == nil {
		return fmt.Errorf("chat models are not properly initialized")
	}
	if c.MessagesManager == nil {
		return fmt.Errorf("messages manager is nil")
	}
	if c.Orders == nil || c.Catalog == nil {
		return fmt.Errorf("order and catalog services are required")
	}
	if c.Passages == nil || c.Web == nil {
		return fmt.Errorf("passage and web searchers are required")
	}
	return nil
}

// GraphBuilder handles the construction of the router graph and its domain sub-graphs.
type GraphBuilder struct {
	config *Config
	graph  *compose.Graph[model.QueryInput, *schema.Message]

	router     *nodes.LLM
	response   *nodes.LLM
	classifier *nodes.Classifier
	extractor  *nodes.SlotExtractor
	details    *nodes.FoodDetails
}

// BuildGraph constructs and returns the compiled router graph.
func BuildGraph(ctx context.Context, config *Config) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	cms := config.ChatModels
	b := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.RouterState {
				return &model.RouterState{}
			}),
		),
		router:   nodes.NewLLM(cms.Router, cms.RouterModelName, config.Reasoner.CallTimeout),
		response: nodes.NewLLM(cms.Response, cms.ResponseModelName, config.Reasoner.CallTimeout),
	}
	b.classifier = nodes.NewClassifier(b.router)
	b.extractor = nodes.NewSlotExtractor(b.router)
	b.details = nodes.NewFoodDetails(b.extractor, config.Catalog, b.response)

	if err := b.addNodes(ctx); err != nil {
		return nil, err
	}
	if err := b.addEdges(); err != nil {
		return nil, err
	}
	if err := b.addBranches(); err != nil {
		return nil, err
	}
	return b.compile(ctx)
}

// addNodes adds the router nodes and one sub-graph per domain.
func (b *GraphBuilder) addNodes(ctx context.Context) error {
	g := b.graph

	if err := g.AddLambdaNode(nodes.NodeInput,
		nodes.NewInputNode(),
		compose.WithStatePreHandler(nodes.NewInputPreHandler()),
	); err != nil {
		return fmt.Errorf("error adding input node: %w", err)
	}

	if err := g.AddLambdaNode(nodes.NodeDomainClassifier,
		nodes.NewDomainClassifierNode(b.classifier),
		compose.WithStatePostHandler(nodes.NewDomainClassifierPostHandler()),
	); err != nil {
		return fmt.Errorf("error adding domain classifier node: %w", err)
	}

	if err := g.AddLambdaNode(nodes.NodeWindow, nodes.NewWindowNode(b.config.MessagesManager)); err != nil {
		return fmt.Errorf("error adding window node: %w", err)
	}

	if err := g.AddLambdaNode(nodes.NodeOther, nodes.NewOtherNode()); err != nil {
		return fmt.Errorf("error adding other node: %w", err)
	}

	orders, err := b.buildOrdersGraph()
	if err != nil {
		return err
	}
	search, err := b.buildSearchGraph()
	if err != nil {
		return err
	}
	suggestion, err := b.buildSuggestionGraph(ctx)
	if err != nil {
		return err
	}
	information, err := b.buildInformationGraph(ctx)
	if err != nil {
		return err
	}

	subGraphs := []struct {
		key   string
		graph compose.AnyGraph
		steps int
	}{
		{nodes.NodeOrders, orders, subGraphSteps},
		{nodes.NodeSearch, search, subGraphSteps},
		{nodes.NodeSuggestion, suggestion, reasonerSteps(b.config.Reasoner.MaxRounds)},
		{nodes.NodeInformation, information, reasonerSteps(b.config.Reasoner.MaxRounds)},
	}
	for _, sg := range subGraphs {
		if err := g.AddGraphNode(sg.key, sg.graph,
			compose.WithGraphCompileOptions(compose.WithMaxRunSteps(sg.steps), compose.WithGraphName(sg.key)),
		); err != nil {
			logx.Error().Err(err).Str("node", sg.key).Msg("Error adding sub-graph")
			return fmt.Errorf("error adding %s sub-graph: %w", sg.key, err)
		}
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeInput},
		{nodes.NodeInput, nodes.NodeDomainClassifier},
		{nodes.NodeDomainClassifier, nodes.NodeWindow},
		{nodes.NodeOrders, compose.END},
		{nodes.NodeSearch, compose.END},
		{nodes.NodeSuggestion, compose.END},
		{nodes.NodeInformation, compose.END},
		{nodes.NodeOther, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates the domain routing branch
func (b *GraphBuilder) addBranches() error {
	domainBranch := compose.NewGraphBranch(
		nodes.NewDomainCondition(),
		map[string]bool{
			nodes.NodeOrders:      true,
			nodes.NodeSearch:      true,
			nodes.NodeSuggestion:  true,
			nodes.NodeInformation: true,
			nodes.NodeOther:       true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeWindow, domainBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding domain branch")
		return fmt.Errorf("error adding domain branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(routerSteps), compose.WithGraphName("router"))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
