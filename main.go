package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sourcegraph/conc/pool"

	"github.com/chat-food/server/internal/agent/graph"
	"github.com/chat-food/server/internal/agent/graph/conversations"
	"github.com/chat-food/server/internal/agent/graph/nodes"
	"github.com/chat-food/server/internal/agent/model"
	"github.com/chat-food/server/internal/agent/repo"
	"github.com/chat-food/server/internal/core"
	"github.com/chat-food/server/internal/corpus"
	"github.com/chat-food/server/internal/store"
	"github.com/chat-food/server/internal/transport/httpapi"
	"github.com/chat-food/server/internal/transport/telegram"
	"github.com/chat-food/server/internal/websearch"
	"github.com/chat-food/server/pkg/libsql"
	logx "github.com/chat-food/server/pkg/logger"
	pkgredis "github.com/chat-food/server/pkg/redis"
	"github.com/chat-food/server/pkg/tavily"
)

// AppConfig defines all configurable parameters of the service,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis  pkgredis.Config
	LibSQL libsql.Config
	Tavily tavily.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Router       model.RouterModelConfig
	Response     model.ResponseModelConfig
	Reasoner     model.ReasonerConfig
	Search       model.SearchConfig
	Conversation model.ConversationConfig
	Embedding    corpus.EmbeddingConfig

	// Transports
	HTTP     httpapi.Config
	Telegram telegram.Config
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	env := core.ParseEnvironment(cfg.Environment)
	logx.Init(logx.LoggerOpts{Environment: env, Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, env); err != nil {
		logx.Fatal().Err(err).Msg("service stopped with error")
	}
	logx.Info().Msg("service stopped")
}

func run(ctx context.Context, cfg AppConfig, env core.Environment) error {
	client, err := nodes.NewGenAIClient(ctx, cfg.APIKey, cfg.BaseURL)
	if err != nil {
		return err
	}
	chatModels, err := nodes.NewChatModels(ctx, client, nodes.ChatModelConfig{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		RouterConfig: &cfg.Router,
		RespConfig:   &cfg.Response,
	})
	if err != nil {
		return err
	}

	db, err := cfg.LibSQL.Open(ctx, store.Migrations())
	if err != nil {
		return err
	}
	defer db.Close()

	passages, err := store.NewPassageStore(ctx, db)
	if err != nil {
		return err
	}
	embedder, err := corpus.NewGeminiEmbedder(client, cfg.Embedding)
	if err != nil {
		return err
	}

	var web model.WebSearcher = websearch.Disabled{}
	if cfg.Tavily.APIKey != "" {
		tv, err := tavily.NewFromConfig(cfg.Tavily)
		if err != nil {
			return err
		}
		web = websearch.New(tv)
	} else {
		logx.Warn().Msg("TAVILY_API_KEY not set, web search disabled")
	}

	conversationRepo, closeRepo, err := newConversationRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	runner, err := graph.BuildRunner(ctx, &graph.Config{
		ChatModels:      chatModels,
		MessagesManager: conversations.NewMessagesManager(conversationRepo, cfg.Conversation),
		Orders:          store.NewOrderStore(db.DB),
		Catalog:         store.NewCatalogStore(db.DB),
		Passages:        corpus.NewSearcher(passages, embedder),
		Web:             web,
		Reasoner:        cfg.Reasoner,
		Search:          cfg.Search,
	})
	if err != nil {
		return err
	}

	if cfg.HTTP.Mode == "" {
		cfg.HTTP.Mode = env.GinMode()
	}
	httpServer, err := httpapi.New(runner, cfg.HTTP)
	if err != nil {
		return err
	}

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(httpServer.Run)
	if cfg.Telegram.Token != "" {
		bot, err := telegram.New(cfg.Telegram, runner)
		if err != nil {
			return err
		}
		p.Go(bot.Start)
	}

	logx.Info().
		Str("environment", env.String()).
		Str("conversation_store", cfg.Conversation.Store).
		Bool("vectors", db.Caps.Vector).
		Bool("fts5", db.Caps.FTS5).
		Msg("service started")
	return p.Wait()
}

func newConversationRepository(ctx context.Context, cfg AppConfig) (model.ConversationRepository, func(), error) {
	ttl, err := time.ParseDuration(cfg.Conversation.TTL)
	if err != nil {
		logx.Warn().Str("ttl", cfg.Conversation.TTL).Msg("invalid CONVERSATION_TTL, using 30m")
		ttl = 30 * time.Minute
	}

	if cfg.Conversation.Store == "memory" {
		return repo.NewMemoryConversationRepository(cfg.Conversation.MaxSessions, ttl), func() {}, nil
	}

	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	logx.Info().Msg("Connected to Redis successfully")
	return repo.NewRedisConversationRepository(rdb, ttl), func() { _ = rdb.Close() }, nil
}
