package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/chat-food/server/internal/agent/model"
	"github.com/chat-food/server/internal/store"
)

func passages(ids ...string) []model.Passage {
	out := make([]model.Passage, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Passage{ID: id, Text: "text " + id})
	}
	return out
}

func ids(ps []model.Passage) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

type fakeIndex struct {
	keyword    []model.Passage
	semantic   []model.Passage
	keywordErr error
	semErr     error
	limits     []int
}

func (f *fakeIndex) Keyword(_ context.Context, _ string, limit int) ([]model.Passage, error) {
	f.limits = append(f.limits, limit)
	return f.keyword, f.keywordErr
}

func (f *fakeIndex) Semantic(_ context.Context, _ []float32, limit int) ([]model.Passage, error) {
	f.limits = append(f.limits, limit)
	return f.semantic, f.semErr
}

type fakeEmbedder struct {
	mu      sync.Mutex
	calls   int
	err     error
	queries []string
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

func TestFuseReciprocalRank(t *testing.T) {
	fused := Fuse(passages("p1", "p2", "p3"), passages("p3", "p1"))

	require.Equal(t, []string{"p1", "p3", "p2"}, ids(fused))
	assert.InDelta(t, 1.0/61+1.0/62, fused[0].Score, 1e-9)
	assert.InDelta(t, 1.0/63+1.0/61, fused[1].Score, 1e-9)
	assert.InDelta(t, 1.0/62, fused[2].Score, 1e-9)
}

func TestFuseKeepsFirstSeenOrderOnTies(t *testing.T) {
	fused := Fuse(passages("a"), passages("b"))
	assert.Equal(t, []string{"a", "b"}, ids(fused))
	assert.Empty(t, Fuse())
}

func TestSearcherModes(t *testing.T) {
	ctx := context.Background()

	t.Run("keyword skips embedding", func(t *testing.T) {
		index := &fakeIndex{keyword: passages("k1", "k2")}
		emb := &fakeEmbedder{}
		got, err := NewSearcher(index, emb).Search(ctx, "pasta", model.SearchKeyword, 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"k1", "k2"}, ids(got))
		assert.Empty(t, emb.queries)
		assert.Equal(t, []int{5}, index.limits)
	})

	t.Run("semantic embeds the query", func(t *testing.T) {
		index := &fakeIndex{semantic: passages("s1")}
		emb := &fakeEmbedder{}
		got, err := NewSearcher(index, emb).Search(ctx, "pasta", model.SearchSemantic, 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"s1"}, ids(got))
		assert.Equal(t, []string{"pasta"}, emb.queries)
	})

	t.Run("hybrid fuses and truncates", func(t *testing.T) {
		index := &fakeIndex{keyword: passages("a", "b", "c"), semantic: passages("c", "d")}
		got, err := NewSearcher(index, &fakeEmbedder{}).Search(ctx, "pasta", model.SearchHybrid, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a"}, ids(got))
		assert.Equal(t, []int{4, 4}, index.limits)
	})

	t.Run("non-positive limit", func(t *testing.T) {
		got, err := NewSearcher(&fakeIndex{}, &fakeEmbedder{}).Search(ctx, "pasta", model.SearchHybrid, 0)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestSearcherHybridDegrades(t *testing.T) {
	ctx := context.Background()

	index := &fakeIndex{keyword: passages("k1", "k2", "k3")}
	got, err := NewSearcher(index, &fakeEmbedder{err: errors.New("quota")}).Search(ctx, "q", model.SearchHybrid, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, ids(got))

	index = &fakeIndex{keywordErr: errors.New("fts broken"), semantic: passages("s1")}
	got, err = NewSearcher(index, &fakeEmbedder{}).Search(ctx, "q", model.SearchHybrid, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids(got))

	index = &fakeIndex{keywordErr: errors.New("fts broken"), semErr: errors.New("no vectors")}
	_, err = NewSearcher(index, &fakeEmbedder{}).Search(ctx, "q", model.SearchHybrid, 2)
	assert.Error(t, err)
}

func split(t *testing.T, chunkSize, overlap int, text string) []string {
	t.Helper()
	s, err := NewSplitter(context.Background(), chunkSize, overlap)
	require.NoError(t, err)
	chunks, err := s.Split(context.Background(), text)
	require.NoError(t, err)
	return chunks
}

func TestSplitterKeepsShortText(t *testing.T) {
	got := split(t, 200, 10, "  Pad thai with shrimp.  ")
	assert.Equal(t, []string{"Pad thai with shrimp."}, got)
}

func TestSplitterChunkBound(t *testing.T) {
	text := ""
	for i := 0; i < 200; i++ {
		text += "Boil the pasta in salted water. "
		if i%7 == 0 {
			text += "\n\n"
		}
	}
	chunks := split(t, 120, 20, text)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 120)
		assert.NotEmpty(t, c)
	}
}

func TestSplitterKeepsEveryWord(t *testing.T) {
	text := "Green curry needs coconut milk.\n\nPad thai needs tamarind paste.\n\nLaksa needs shrimp paste."
	chunks := split(t, 40, 0, text)
	require.Len(t, chunks, 3)
	joined := strings.Join(chunks, " ")
	for _, w := range strings.Fields(text) {
		assert.Contains(t, joined, w)
	}
}

func TestNewSplitterDefaults(t *testing.T) {
	s, err := NewSplitter(context.Background(), 0, -1)
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, s.ChunkSize)
	assert.Equal(t, 0, s.Overlap)

	s, err = NewSplitter(context.Background(), 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Overlap)

	assert.Empty(t, split(t, 10, 2, "   \n\n  "))
}

type fakeModels struct {
	configs []*genai.EmbedContentConfig
	model   string
	short   bool
}

func (f *fakeModels) EmbedContent(_ context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.model = model
	f.configs = append(f.configs, config)
	n := len(contents)
	if f.short {
		n--
	}
	resp := &genai.EmbedContentResponse{}
	for i := 0; i < n; i++ {
		resp.Embeddings = append(resp.Embeddings, &genai.ContentEmbedding{Values: []float32{float32(i), 0.5}})
	}
	return resp, nil
}

func TestGeminiEmbedder(t *testing.T) {
	ctx := context.Background()
	models := &fakeModels{}
	e := newGeminiEmbedder(models, EmbeddingConfig{Model: "gemini-embedding-001", Dims: 2})

	docs, err := e.EmbedDocuments(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, docs, 3)
	assert.Equal(t, []float32{2, 0.5}, docs[2])

	q, err := e.EmbedQuery(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5}, q)

	require.Len(t, models.configs, 2)
	assert.Equal(t, "gemini-embedding-001", models.model)
	assert.Equal(t, "RETRIEVAL_DOCUMENT", models.configs[0].TaskType)
	assert.Equal(t, "RETRIEVAL_QUERY", models.configs[1].TaskType)
	require.NotNil(t, models.configs[0].OutputDimensionality)
	assert.Equal(t, int32(2), *models.configs[0].OutputDimensionality)
}

func TestGeminiEmbedderErrors(t *testing.T) {
	ctx := context.Background()
	e := newGeminiEmbedder(&fakeModels{short: true}, EmbeddingConfig{Model: "m"})

	_, err := e.EmbedDocuments(ctx, nil)
	assert.Error(t, err)

	_, err = e.EmbedDocuments(ctx, []string{"a", "b"})
	assert.Error(t, err)

	_, err = NewGeminiEmbedder(nil, EmbeddingConfig{})
	assert.Error(t, err)
}

type fakeWriter struct {
	mu      sync.Mutex
	batches [][]store.PassageRecord
}

func (f *fakeWriter) Insert(_ context.Context, records []store.PassageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, records)
	return nil
}

func (f *fakeWriter) all() []store.PassageRecord {
	var out []store.PassageRecord
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "menu.txt"), []byte("Pad thai with shrimp.\fGreen curry with chicken.\f  "), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "guides"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guides", "pasta.md"), []byte("Boil pasta for ten minutes."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logo.png"), []byte{0x89, 0x50}, 0o644))
	return dir
}

func TestIngestDir(t *testing.T) {
	ctx := context.Background()
	dir := writeCorpus(t)
	writer := &fakeWriter{}
	emb := &fakeEmbedder{}

	in, err := NewIngestor(ctx, emb, writer, IngestConfig{ChunkSize: 200, Overlap: 10, Workers: 2}, 1)
	require.NoError(t, err)
	stats, err := in.IngestDir(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, Stats{Files: 2, Pages: 3, Passages: 3}, stats)
	assert.Equal(t, 3, emb.calls)

	records := writer.all()
	require.Len(t, records, 3)
	pages := map[string]int{}
	for _, r := range records {
		assert.NotEmpty(t, r.ID)
		assert.NotEmpty(t, r.DocumentID)
		assert.Len(t, r.Embedding, 2)
		pages[r.Text] = r.PageNumber
	}
	assert.Equal(t, map[string]int{
		"Pad thai with shrimp.":       1,
		"Green curry with chicken.":   2,
		"Boil pasta for ten minutes.": 1,
	}, pages)

	again := &fakeWriter{}
	in, err = NewIngestor(ctx, emb, again, IngestConfig{ChunkSize: 200, Workers: 1}, 8)
	require.NoError(t, err)
	_, err = in.IngestDir(ctx, dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids(passagesOf(records)), ids(passagesOf(again.all())))
}

func passagesOf(records []store.PassageRecord) []model.Passage {
	out := make([]model.Passage, 0, len(records))
	for _, r := range records {
		out = append(out, r.Passage)
	}
	return out
}

func TestIngestStopsOnEmbeddingError(t *testing.T) {
	writer := &fakeWriter{}
	in, err := NewIngestor(context.Background(), &fakeEmbedder{err: errors.New("quota")}, writer, IngestConfig{ChunkSize: 200, Workers: 2}, 1)
	require.NoError(t, err)

	_, err = in.IngestDir(context.Background(), writeCorpus(t))
	assert.Error(t, err)
	assert.Empty(t, writer.batches)
}

func TestIngestEmptyDocuments(t *testing.T) {
	in, err := NewIngestor(context.Background(), &fakeEmbedder{}, &fakeWriter{}, IngestConfig{}, 0)
	require.NoError(t, err)
	stats, err := in.Ingest(context.Background(), []Document{{ID: "d", Pages: []string{"", " "}}})
	require.NoError(t, err)
	assert.Equal(t, Stats{Files: 1}, stats)
}
