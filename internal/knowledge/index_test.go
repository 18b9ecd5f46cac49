package knowledge

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecomarket/ecobot/internal/llm"
	"github.com/ecomarket/ecobot/internal/progress"
	"github.com/ecomarket/ecobot/internal/vectordb"
	"github.com/ecomarket/ecobot/internal/walker"
)

type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 32)
		for j, ch := range text {
			vec[(int(ch)+j)%32]++
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v * v)
		}
		norm = math.Sqrt(norm)
		for k := range vec {
			if norm > 0 {
				vec[k] = float32(float64(vec[k]) / norm)
			}
		}
		out[i] = vec
	}
	return out, nil
}

func (hashEmbedder) Dimensions() int { return 32 }
func (hashEmbedder) Name() string    { return "hash" }

const faqBody = `{"pregunta": "¿Cuánto tarda el reembolso?", "respuesta": "Entre 3 y 5 días hábiles."}
{"pregunta": "¿Puedo devolver alimentos?", "respuesta": "No, los perecederos no admiten devolución."}`

type countingReporter struct {
	started, updates int
	finished         bool
}

func (r *countingReporter) Start(total int)    { r.started = total }
func (r *countingReporter) Update(int, string) { r.updates++ }
func (r *countingReporter) Finish()            { r.finished = true }

func sourceServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/docs/faq_ecomarket.json":
			_, _ = w.Write([]byte(faqBody))
		case "/docs/guia.md":
			_, _ = w.Write([]byte("# Guía de uso\n\nLave los envases reutilizables con agua tibia."))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestIndexer(t *testing.T, reporter progress.Reporter) (*Indexer, *vectordb.ChromemStore) {
	t.Helper()
	store, err := vectordb.NewChromemStore(hashEmbedder{}, "")
	require.NoError(t, err)
	d := NewDownloader(zap.NewNop())
	d.Backoff = 0
	return NewIndexer(store, d, reporter, zap.NewNop()), store
}

func testSources() []Source {
	return []Source{
		{Name: "faq_ecomarket.json", Type: vectordb.DocTypeFAQ},
		{Name: "guia.md", Type: vectordb.DocTypeGuide},
		{Name: "Politica_de_Devoluciones_EcoMarket.pdf", Type: vectordb.DocTypePolicy},
	}
}

func TestBuildOrLoadDownloadsAndIndexes(t *testing.T) {
	var hits atomic.Int32
	srv := sourceServer(t, &hits)
	dir := t.TempDir()
	rep := &countingReporter{}
	ix, store := newTestIndexer(t, rep)

	n, err := ix.BuildOrLoad(context.Background(), IndexOptions{
		BaseURL:     srv.URL + "/docs",
		Sources:     testSources(),
		DownloadDir: filepath.Join(dir, "documentos_rag"),
		PersistDir:  filepath.Join(dir, "chroma_db"),
	})
	require.NoError(t, err)

	// Two FAQ records plus one markdown chunk; the missing PDF is skipped.
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, store.Count())
	assert.Equal(t, 2, rep.started)
	assert.Equal(t, 2, rep.updates)
	assert.True(t, rep.finished)
	assert.FileExists(t, filepath.Join(dir, "chroma_db", vectordb.PersistFile))

	faqType := vectordb.DocTypeFAQ
	results, err := store.Search(context.Background(), "reembolso", 5, &vectordb.SearchFilter{Type: &faqType})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, strings.HasPrefix(r.Document.Content, "PREGUNTA FRECUENTE: "))
		assert.Equal(t, "faq_ecomarket.json", r.Document.Metadata.Source)
	}
}

func TestBuildOrLoadReusesPersistedIndex(t *testing.T) {
	var hits atomic.Int32
	srv := sourceServer(t, &hits)
	dir := t.TempDir()
	opts := IndexOptions{
		BaseURL:     srv.URL + "/docs/",
		Sources:     testSources(),
		DownloadDir: filepath.Join(dir, "documentos_rag"),
		PersistDir:  filepath.Join(dir, "chroma_db"),
	}

	ix, _ := newTestIndexer(t, nil)
	first, err := ix.BuildOrLoad(context.Background(), opts)
	require.NoError(t, err)
	downloads := hits.Load()

	reloaded, store := newTestIndexer(t, nil)
	n, err := reloaded.BuildOrLoad(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, first, n)
	assert.Equal(t, first, store.Count())
	assert.Equal(t, downloads, hits.Load(), "persisted index must not trigger downloads")

	rebuilt, _ := newTestIndexer(t, nil)
	opts.ForceRebuild = true
	n, err = rebuilt.BuildOrLoad(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, first, n)
	assert.Greater(t, hits.Load(), downloads)
}

func TestBuildOrLoadOfflineAndLocalDocs(t *testing.T) {
	dir := t.TempDir()
	downloads := filepath.Join(dir, "documentos_rag")
	require.NoError(t, os.MkdirAll(downloads, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(downloads, "faq_ecomarket.json"), []byte(faqBody), 0o644))

	local := filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(local, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(local, "terminos.txt"), []byte("El envío es gratuito desde 100.000 COP."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(local, "notas.csv"), []byte("a,b"), 0o644))

	ix, store := newTestIndexer(t, nil)
	n, err := ix.BuildOrLoad(context.Background(), IndexOptions{
		BaseURL:     "http://127.0.0.1:0/unreachable/",
		Sources:     testSources(),
		DownloadDir: downloads,
		LocalDir:    local,
		Offline:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	termsType := vectordb.DocTypeTerms
	results, err := store.Search(context.Background(), "envío", 5, &vectordb.SearchFilter{Type: &termsType})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "terminos.txt", results[0].Document.Metadata.Source)
}

func TestBuildOrLoadEmpty(t *testing.T) {
	ix, _ := newTestIndexer(t, nil)
	_, err := ix.BuildOrLoad(context.Background(), IndexOptions{
		Sources:     testSources(),
		DownloadDir: t.TempDir(),
		Offline:     true,
	})
	assert.ErrorIs(t, err, ErrIndexEmpty)
}

func TestTypeForName(t *testing.T) {
	tests := map[string]vectordb.DocumentType{
		"Politica_de_Devoluciones.pdf": vectordb.DocTypePolicy,
		"terminos.md":                  vectordb.DocTypeTerms,
		"Manual_de_Uso.pdf":            vectordb.DocTypeGuide,
		"faq-extra.txt":                vectordb.DocTypeFAQ,
		"notas.txt":                    vectordb.DocTypeText,
	}
	for name, want := range tests {
		assert.Equal(t, want, TypeForName(name, walker.DetectFormat(name)), name)
	}
	assert.Equal(t, vectordb.DocTypeFAQ, TypeForName("preguntas.json", walker.FormatFAQ))
}

// fakeStore returns canned search results.
type fakeStore struct {
	vectordb.VectorStore
	count   int
	results []vectordb.SearchResult
	err     error
	limit   int
}

func (f *fakeStore) Count() int { return f.count }

func (f *fakeStore) Search(_ context.Context, _ string, limit int, _ *vectordb.SearchFilter) ([]vectordb.SearchResult, error) {
	f.limit = limit
	return f.results, f.err
}

type recordingProvider struct {
	reply string
	err   error
	last  llm.CompletionRequest
	calls int
}

func (p *recordingProvider) Name() string { return "recording" }

func (p *recordingProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.calls++
	p.last = req
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{Content: p.reply}, nil
}

func TestRAGAnswererAnswers(t *testing.T) {
	store := &fakeStore{count: 10, results: []vectordb.SearchResult{{
		Document: vectordb.Document{
			Content:  "PREGUNTA FRECUENTE: ¿Cuánto tarda el reembolso?\nRESPUESTA: Entre 3 y 5 días hábiles.",
			Metadata: vectordb.DocumentMetadata{Source: "faq_ecomarket.json"},
		},
	}}}
	provider := &recordingProvider{reply: "  Entre 3 y 5 días hábiles.\n"}

	a := NewRAGAnswerer(store, provider, WithModel("gpt-4o-mini"))
	got, err := a.Answer(context.Background(), "¿Cuánto tarda el reembolso?")
	require.NoError(t, err)
	assert.Equal(t, "Entre 3 y 5 días hábiles.", got)
	assert.Equal(t, DefaultTopK, store.limit)

	require.Len(t, provider.last.Messages, 1)
	prompt := provider.last.Messages[0].Content
	assert.Contains(t, prompt, "Source: faq_ecomarket.json\nPREGUNTA FRECUENTE")
	assert.Contains(t, prompt, "Pregunta: ¿Cuánto tarda el reembolso?")
	assert.True(t, strings.HasSuffix(prompt, "Respuesta:"))
	assert.Equal(t, "gpt-4o-mini", provider.last.Model)
}

func TestRAGAnswererNoHits(t *testing.T) {
	provider := &recordingProvider{}
	a := NewRAGAnswerer(&fakeStore{count: 3}, provider, WithTopK(2))
	got, err := a.Answer(context.Background(), "¿Venden bicicletas?")
	require.NoError(t, err)
	assert.Equal(t, NoDocumentsMessage, got)
	assert.Zero(t, provider.calls)
}

func TestRAGAnswererErrors(t *testing.T) {
	_, err := NewRAGAnswerer(&fakeStore{}, &recordingProvider{}).Answer(context.Background(), "x")
	assert.ErrorIs(t, err, ErrIndexEmpty)

	boom := errors.New("boom")
	_, err = NewRAGAnswerer(&fakeStore{count: 1, err: boom}, &recordingProvider{}).Answer(context.Background(), "x")
	assert.ErrorIs(t, err, boom)

	store := &fakeStore{count: 1, results: []vectordb.SearchResult{{Document: vectordb.Document{Content: "c"}}}}
	_, err = NewRAGAnswerer(store, &recordingProvider{err: boom}).Answer(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestBuildOrLoadCustomSplitter(t *testing.T) {
	var hits atomic.Int32
	srv := sourceServer(t, &hits)
	dir := t.TempDir()
	ix, _ := newTestIndexer(t, nil)
	ix.SetSplitter(NewSplitter(20, 0))
	ix.SetSplitter(nil)

	n, err := ix.BuildOrLoad(context.Background(), IndexOptions{
		BaseURL:     srv.URL + "/docs",
		Sources:     testSources(),
		DownloadDir: filepath.Join(dir, "documentos_rag"),
	})
	require.NoError(t, err)
	assert.Greater(t, n, 3)
}
