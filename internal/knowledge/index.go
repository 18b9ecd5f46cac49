package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ecomarket/ecobot/internal/progress"
	"github.com/ecomarket/ecobot/internal/vectordb"
	"github.com/ecomarket/ecobot/internal/walker"
)

// DefaultLocalIncludes select the local documents worth indexing.
var DefaultLocalIncludes = []string{"**/*.md", "**/*.txt", "**/*.json", "**/*.pdf"}

// IndexOptions controls BuildOrLoad.
type IndexOptions struct {
	BaseURL     string
	Sources     []Source
	DownloadDir string
	PersistDir  string

	// LocalDir holds extra documents; empty disables local ingestion.
	LocalDir string
	Include  []string
	Exclude  []string

	// ForceRebuild discards the persisted index first.
	ForceRebuild bool
	// Offline indexes the copies already in DownloadDir without fetching.
	Offline bool
}

// Indexer builds the knowledge index.
type Indexer struct {
	store      vectordb.VectorStore
	downloader *Downloader
	splitter   *Splitter
	reporter   progress.Reporter
	logger     *zap.Logger
	now        func() time.Time
}

// NewIndexer creates an Indexer. A nil reporter or logger discards output.
func NewIndexer(store vectordb.VectorStore, downloader *Downloader, reporter progress.Reporter, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reporter == nil {
		reporter = progress.Nop{}
	}
	if downloader == nil {
		downloader = NewDownloader(logger)
	}
	return &Indexer{
		store:      store,
		downloader: downloader,
		splitter:   NewSplitter(DefaultChunkSize, DefaultChunkOverlap),
		reporter:   reporter,
		logger:     logger,
		now:        time.Now,
	}
}

// SetSplitter replaces the default chunking.
func (ix *Indexer) SetSplitter(s *Splitter) {
	if s != nil {
		ix.splitter = s
	}
}

// BuildOrLoad reuses a non-empty persisted index unless opts.ForceRebuild
// is set, and otherwise fetches, splits, embeds and persists every source.
// It returns the number of indexed chunks, or ErrIndexEmpty when no source
// produced any.
func (ix *Indexer) BuildOrLoad(ctx context.Context, opts IndexOptions) (int, error) {
	if opts.ForceRebuild && opts.PersistDir != "" {
		if err := os.RemoveAll(opts.PersistDir); err != nil {
			return 0, fmt.Errorf("removing index dir: %w", err)
		}
		ix.logger.Info("discarded persisted index", zap.String("dir", opts.PersistDir))
	}

	if !opts.ForceRebuild && opts.PersistDir != "" {
		err := ix.store.Load(ctx, opts.PersistDir)
		if err == nil && ix.store.Count() > 0 {
			ix.logger.Info("loaded persisted index",
				zap.String("dir", opts.PersistDir),
				zap.Int("documents", ix.store.Count()))
			return ix.store.Count(), nil
		}
		if errors.Is(err, vectordb.ErrEmbedderMismatch) {
			ix.logger.Info("embedding model changed, rebuilding index", zap.Error(err))
		}
	}

	files := ix.collect(ctx, opts)
	ix.reporter.Start(len(files))

	var docs []vectordb.Document
	for i, f := range files {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		loaded, err := ix.load(f)
		if err != nil {
			ix.logger.Warn("skipping knowledge source", zap.String("source", f.source), zap.Error(err))
		} else {
			docs = append(docs, loaded...)
		}
		ix.reporter.Update(i+1, f.source)
	}
	ix.reporter.Finish()

	if len(docs) == 0 {
		return 0, ErrIndexEmpty
	}
	if err := ix.store.AddDocuments(ctx, docs); err != nil {
		return 0, fmt.Errorf("indexing documents: %w", err)
	}
	if opts.PersistDir != "" {
		if err := ix.store.Persist(ctx, opts.PersistDir); err != nil {
			return 0, fmt.Errorf("persisting index: %w", err)
		}
	}

	ix.logger.Info("knowledge index built",
		zap.Int("sources", len(files)),
		zap.Int("documents", ix.store.Count()))
	return ix.store.Count(), nil
}

type sourceFile struct {
	path    string
	source  string
	format  walker.Format
	docType vectordb.DocumentType
}

// collect resolves every source to a file on disk. A remote source whose
// download fails is skipped unless an earlier copy is present.
func (ix *Indexer) collect(ctx context.Context, opts IndexOptions) []sourceFile {
	var files []sourceFile

	base := opts.BaseURL
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	for _, s := range opts.Sources {
		dest := filepath.Join(opts.DownloadDir, s.Name)
		if !opts.Offline && base != "" {
			if err := ix.downloader.Fetch(ctx, base+s.Name, dest); err != nil {
				ix.logger.Warn("download failed", zap.String("source", s.Name), zap.Error(err))
			}
		}
		if _, err := os.Stat(dest); err != nil {
			continue
		}
		files = append(files, sourceFile{
			path:    dest,
			source:  s.Name,
			format:  walker.DetectFormat(s.Name),
			docType: s.Type,
		})
	}

	if opts.LocalDir == "" {
		return files
	}
	include := opts.Include
	if len(include) == 0 {
		include = DefaultLocalIncludes
	}
	local, err := walker.Walk(walker.WalkerConfig{
		RootDir: opts.LocalDir,
		Include: include,
		Exclude: opts.Exclude,
	})
	if err != nil {
		ix.logger.Warn("local knowledge dir unavailable", zap.String("dir", opts.LocalDir), zap.Error(err))
		return files
	}
	for _, f := range local {
		files = append(files, sourceFile{
			path:    f.Path,
			source:  f.RelPath,
			format:  f.Format,
			docType: TypeForName(f.RelPath, f.Format),
		})
	}
	return files
}

func (ix *Indexer) load(f sourceFile) ([]vectordb.Document, error) {
	var chunks []string
	switch f.format {
	case walker.FormatFAQ:
		faqs, err := LoadFAQ(f.path)
		if err != nil {
			return nil, err
		}
		for _, q := range faqs {
			chunks = append(chunks, q.Content())
		}
	case walker.FormatPDF:
		pages, err := ExtractPDF(f.path)
		if err != nil {
			return nil, err
		}
		for _, page := range pages {
			chunks = append(chunks, ix.splitter.Split(page)...)
		}
	case walker.FormatMarkdown, walker.FormatText:
		content, err := ExtractFile(f.path, f.format == walker.FormatMarkdown)
		if err != nil {
			return nil, err
		}
		chunks = ix.splitter.Split(content)
	default:
		return nil, fmt.Errorf("unsupported format for %s", f.source)
	}
	if len(chunks) == 0 {
		return nil, errors.New("no text extracted")
	}

	now := ix.now()
	docs := make([]vectordb.Document, 0, len(chunks))
	for i, c := range chunks {
		docs = append(docs, vectordb.Document{
			ID:      fmt.Sprintf("%s#%d", f.source, i),
			Content: c,
			Metadata: vectordb.DocumentMetadata{
				Source:      f.source,
				Type:        f.docType,
				Chunk:       i,
				ContentHash: contentHash(c),
				LastUpdated: now,
			},
		})
	}
	return docs, nil
}

// TypeForName guesses the document type of a local file from its name.
func TypeForName(name string, format walker.Format) vectordb.DocumentType {
	if format == walker.FormatFAQ {
		return vectordb.DocTypeFAQ
	}
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "faq"):
		return vectordb.DocTypeFAQ
	case strings.Contains(lower, "devolucion"), strings.Contains(lower, "politica"):
		return vectordb.DocTypePolicy
	case strings.Contains(lower, "termino"):
		return vectordb.DocTypeTerms
	case strings.Contains(lower, "manual"), strings.Contains(lower, "guia"):
		return vectordb.DocTypeGuide
	default:
		return vectordb.DocTypeText
	}
}

func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
