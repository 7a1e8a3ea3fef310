package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/chat-food/server/internal/agent/model"
	"github.com/chat-food/server/internal/store"
	logx "github.com/chat-food/server/pkg/logger"
)

// pageBreak separates pages inside a text document.
const pageBreak = "\f"

var ingestExtensions = map[string]bool{".txt": true, ".md": true, ".markdown": true}

// PassageWriter stores embedded passages.
type PassageWriter interface {
	Insert(ctx context.Context, records []store.PassageRecord) error
}

type IngestConfig struct {
	ChunkSize int `envconfig:"INGEST_CHUNK_SIZE" default:"1024"`
	Overlap   int `envconfig:"INGEST_CHUNK_OVERLAP" default:"64"`
	Workers   int `envconfig:"INGEST_WORKERS" default:"4"`
}

// Stats summarises one ingestion run.
type Stats struct {
	Files    int
	Pages    int
	Passages int
}

// Ingestor reads documents, splits them into passages, embeds them in
// concurrent batches and writes them to the store.
type Ingestor struct {
	embedder  Embedder
	writer    PassageWriter
	splitter  *Splitter
	batchSize int
	workers   int
}

func NewIngestor(ctx context.Context, embedder Embedder, writer PassageWriter, cfg IngestConfig, batchSize int) (*Ingestor, error) {
	splitter, err := NewSplitter(ctx, cfg.ChunkSize, cfg.Overlap)
	if err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = 32
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Ingestor{
		embedder:  embedder,
		writer:    writer,
		splitter:  splitter,
		batchSize: batchSize,
		workers:   cfg.Workers,
	}, nil
}

// Document is one source file cut into pages.
type Document struct {
	ID           string
	FileName     string
	CreationDate time.Time
	Pages        []string
}

// LoadDocument reads a text file; form feeds separate its pages.
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return Document{
		ID:           uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(path))).String(),
		FileName:     filepath.Base(path),
		CreationDate: info.ModTime().UTC(),
		Pages:        strings.Split(string(data), pageBreak),
	}, nil
}

// IngestDir ingests every supported file under root.
func (in *Ingestor) IngestDir(ctx context.Context, root string) (Stats, error) {
	var docs []Document
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !ingestExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		doc, err := LoadDocument(path)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("walk %s: %w", root, err)
	}
	return in.Ingest(ctx, docs)
}

// Ingest splits, embeds and stores documents. Passage ids are derived from
// document, page and chunk position, so re-ingesting a file replaces its
// passages instead of duplicating them.
func (in *Ingestor) Ingest(ctx context.Context, docs []Document) (Stats, error) {
	var (
		stats   Stats
		records []store.PassageRecord
	)
	for _, doc := range docs {
		stats.Files++
		for pageIdx, page := range doc.Pages {
			if strings.TrimSpace(page) == "" {
				continue
			}
			stats.Pages++
			chunks, err := in.splitter.Split(ctx, page)
			if err != nil {
				return stats, fmt.Errorf("split %s page %d: %w", doc.FileName, pageIdx+1, err)
			}
			for chunkIdx, chunk := range chunks {
				key := fmt.Sprintf("%s/%d/%d", doc.ID, pageIdx+1, chunkIdx)
				records = append(records, store.PassageRecord{Passage: model.Passage{
					ID:           uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String(),
					DocumentID:   doc.ID,
					Text:         chunk,
					FileName:     doc.FileName,
					CreationDate: doc.CreationDate,
					PageNumber:   pageIdx + 1,
				}})
			}
		}
	}
	if len(records) == 0 {
		return stats, nil
	}

	batches := make([][]store.PassageRecord, 0, len(records)/in.batchSize+1)
	for start := 0; start < len(records); start += in.batchSize {
		end := min(start+in.batchSize, len(records))
		batches = append(batches, records[start:end])
	}

	p := pool.New().WithContext(ctx).WithMaxGoroutines(in.workers).WithCancelOnError()
	for i, batch := range batches {
		p.Go(func(ctx context.Context) error {
			texts := make([]string, len(batch))
			for j, r := range batch {
				texts[j] = r.Text
			}
			vectors, err := in.embedder.EmbedDocuments(ctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch %d: %w", i, err)
			}
			for j := range batch {
				batch[j].Embedding = vectors[j]
			}
			logx.Debug().Int("batch", i).Int("size", len(batch)).Msg("batch embedded")
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return stats, err
	}

	// one writer keeps the embedded database free of lock contention
	for _, batch := range batches {
		if err := in.writer.Insert(ctx, batch); err != nil {
			return stats, fmt.Errorf("store passages: %w", err)
		}
		stats.Passages += len(batch)
	}

	logx.Info().
		Int("files", stats.Files).
		Int("pages", stats.Pages).
		Int("passages", stats.Passages).
		Msg("ingestion finished")
	return stats, nil
}
