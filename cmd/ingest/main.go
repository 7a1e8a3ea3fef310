// Command ingest loads documents into the passage corpus and, optionally,
// demo orders and catalog entries into the database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/chat-food/server/internal/agent/graph/nodes"
	"github.com/chat-food/server/internal/core"
	"github.com/chat-food/server/internal/corpus"
	"github.com/chat-food/server/internal/store"
	"github.com/chat-food/server/pkg/libsql"
	logx "github.com/chat-food/server/pkg/logger"
)

type ingestConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	LibSQL    libsql.Config
	Embedding corpus.EmbeddingConfig
	Ingest    corpus.IngestConfig
}

func main() {
	dir := flag.String("dir", "data/docs", "directory of .txt/.md documents to ingest")
	seedPath := flag.String("seed", "", "optional JSON file with demo foods and orders")
	flag.Parse()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}
	var cfg ingestConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}
	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, *dir, *seedPath); err != nil {
		logx.Fatal().Err(err).Msg("ingestion failed")
	}
}

func run(ctx context.Context, cfg ingestConfig, dir, seedPath string) error {
	db, err := cfg.LibSQL.Open(ctx, store.Migrations())
	if err != nil {
		return err
	}
	defer db.Close()

	if seedPath != "" {
		if err := seed(ctx, db, seedPath); err != nil {
			return err
		}
	}

	passages, err := store.NewPassageStore(ctx, db)
	if err != nil {
		return err
	}
	client, err := nodes.NewGenAIClient(ctx, cfg.APIKey, cfg.BaseURL)
	if err != nil {
		return err
	}
	embedder, err := corpus.NewGeminiEmbedder(client, cfg.Embedding)
	if err != nil {
		return err
	}

	ingestor, err := corpus.NewIngestor(ctx, embedder, passages, cfg.Ingest, cfg.Embedding.BatchSize)
	if err != nil {
		return err
	}
	stats, err := ingestor.IngestDir(ctx, dir)
	if err != nil {
		return err
	}
	total, err := passages.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("ingested %d files, %d pages, %d passages (%d in store)\n", stats.Files, stats.Pages, stats.Passages, total)
	return nil
}

func seed(ctx context.Context, db *libsql.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()

	s, err := store.LoadSeed(f)
	if err != nil {
		return err
	}
	if err := s.Apply(ctx, store.NewOrderStore(db.DB), store.NewCatalogStore(db.DB)); err != nil {
		return err
	}
	logx.Info().Int("foods", len(s.Foods)).Int("orders", len(s.Orders)).Msg("seed applied")
	return nil
}
