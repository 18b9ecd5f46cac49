package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ecomarket/ecobot/internal/assistant"
	"github.com/ecomarket/ecobot/internal/audit"
	"github.com/ecomarket/ecobot/internal/catalog"
	"github.com/ecomarket/ecobot/internal/config"
	"github.com/ecomarket/ecobot/internal/db"
	"github.com/ecomarket/ecobot/internal/embeddings"
	"github.com/ecomarket/ecobot/internal/flow"
	"github.com/ecomarket/ecobot/internal/fulfillment"
	"github.com/ecomarket/ecobot/internal/knowledge"
	"github.com/ecomarket/ecobot/internal/llm"
	"github.com/ecomarket/ecobot/internal/logger"
	"github.com/ecomarket/ecobot/internal/metrics"
	"github.com/ecomarket/ecobot/internal/progress"
	"github.com/ecomarket/ecobot/internal/returns"
	"github.com/ecomarket/ecobot/internal/router"
	"github.com/ecomarket/ecobot/internal/session"
	"github.com/ecomarket/ecobot/internal/vectordb"
	"github.com/ecomarket/ecobot/internal/walker"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `ecobot init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *zap.Logger {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return logger.New(level, cfg.Log.Format)
}

// embeddingCacheSize bounds the vectors kept for repeated customer questions.
const embeddingCacheSize = 512

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	e, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	return embeddings.NewCached(e, embeddingCacheSize), nil
}

func newEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = config.GetPreset(provider, cfg.Quality).EmbeddingModel
	}

	switch provider {
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(model, 0, os.Getenv("OLLAMA_HOST")), nil
	default:
		// Providers without native embeddings fall back to OpenAI.
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for embeddings (embedding provider %s)", provider)
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(model), os.Getenv("OPENAI_BASE_URL")), nil
	}
}

// createLLMProviderFromConfig builds the configured provider behind rate
// limiting, retries and usage metering.
func createLLMProviderFromConfig(cfg *config.Config, log *zap.Logger) (*llm.MeteredProvider, error) {
	p, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
	if err != nil {
		return nil, err
	}
	p = llm.NewRateLimitedProvider(p, cfg.LLM.RateLimitRPM)
	p = llm.NewRetryingProvider(p, cfg.LLM.MaxAttempts, cfg.LLM.RetryBackoff, log)
	return llm.NewMeteredProvider(p), nil
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog == "" {
		return catalog.Default(), nil
	}
	c, err := catalog.LoadFile(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("loading catalog %s: %w", cfg.Catalog, err)
	}
	return c, nil
}

func createEvaluator(cfg *config.Config, log *zap.Logger) (*returns.Evaluator, error) {
	c, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Returns.Location()
	if err != nil {
		return nil, fmt.Errorf("returns timezone: %w", err)
	}
	opts := []returns.Option{
		returns.WithLocation(loc),
		returns.WithWindowDays(cfg.Returns.WindowDays),
		returns.WithLogger(log),
	}
	today, err := cfg.Returns.Today()
	if err != nil {
		return nil, fmt.Errorf("returns as_of: %w", err)
	}
	if !today.IsZero() {
		log.Info("return window pinned", zap.String("as_of", cfg.Returns.AsOf))
		opts = append(opts, returns.WithClock(func() time.Time { return today }))
	}
	return returns.NewEvaluator(c, opts...), nil
}

// knowledgeSources maps configured file names to typed sources.
func knowledgeSources(names []string) []knowledge.Source {
	if len(names) == 0 {
		return knowledge.DefaultSources
	}
	sources := make([]knowledge.Source, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		sources = append(sources, knowledge.Source{
			Name: name,
			Type: knowledge.TypeForName(name, walker.DetectFormat(name)),
		})
	}
	return sources
}

func indexOptions(cfg *config.Config, force, offline bool) knowledge.IndexOptions {
	k := cfg.Knowledge
	return knowledge.IndexOptions{
		BaseURL:      k.BaseURL,
		Sources:      knowledgeSources(k.Sources),
		DownloadDir:  k.DownloadDir,
		PersistDir:   k.PersistDir,
		LocalDir:     k.LocalDir,
		Include:      k.Include,
		Exclude:      k.Exclude,
		ForceRebuild: force || k.ForceRebuild,
		Offline:      offline,
	}
}

// buildIndex loads the persisted knowledge index or builds it from the
// configured sources.
func buildIndex(ctx context.Context, cfg *config.Config, reporter progress.Reporter, log *zap.Logger, force, offline bool) (*vectordb.ChromemStore, int, error) {
	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, 0, fmt.Errorf("creating embedder: %w", err)
	}
	store, err := vectordb.NewChromemStore(embedder, cfg.Knowledge.Collection)
	if err != nil {
		return nil, 0, fmt.Errorf("creating vector store: %w", err)
	}

	ix := knowledge.NewIndexer(store, knowledge.NewDownloader(log), reporter, log)
	ix.SetSplitter(knowledge.NewSplitter(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap))
	n, err := ix.BuildOrLoad(ctx, indexOptions(cfg, force, offline))
	if err != nil {
		return store, 0, err
	}
	return store, n, nil
}

// runtime is everything a conversational surface needs.
type runtime struct {
	cfg           *config.Config
	logger        *zap.Logger
	provider      *llm.MeteredProvider
	evaluator     *returns.Evaluator
	conversations *assistant.Conversations
	auditStore    *audit.Store
	metrics       *metrics.Metrics
	closers       []func() error
}

// buildRuntime wires config into a ready assistant. The knowledge path is
// optional: when the index cannot be built the assistant still handles
// returns and says knowledge is unavailable.
func buildRuntime(ctx context.Context, cfg *config.Config, reporter progress.Reporter, log *zap.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: log, metrics: metrics.New()}

	evaluator, err := createEvaluator(cfg, log)
	if err != nil {
		return nil, err
	}
	rt.evaluator = evaluator

	needLLM := cfg.Classifier.Mode == config.ClassifierLLM || cfg.Knowledge.Enabled
	if needLLM {
		p, err := createLLMProviderFromConfig(cfg, log)
		if err != nil {
			if cfg.Classifier.Mode == config.ClassifierLLM {
				return nil, fmt.Errorf("creating LLM provider: %w", err)
			}
			log.Warn("LLM provider unavailable, knowledge answers disabled", zap.Error(err))
		} else {
			rt.provider = p
		}
	}

	var classifier router.Classifier = router.NewHeuristic()
	if cfg.Classifier.Mode == config.ClassifierLLM {
		c, err := router.NewLLMClassifier(rt.provider, cfg.Model, log)
		if err != nil {
			return nil, fmt.Errorf("creating classifier: %w", err)
		}
		classifier = c
	}

	controller := flow.NewController(
		fulfillment.NewLabelService(cfg.Returns.LabelBaseURL, log),
		fulfillment.NewRefundService(log),
		log,
	)
	loc, err := cfg.Returns.Location()
	if err != nil {
		return nil, fmt.Errorf("returns timezone: %w", err)
	}
	opts := []assistant.Option{
		assistant.WithMetrics(rt.metrics),
		assistant.WithLogger(log),
		assistant.WithClock(func() time.Time { return time.Now().In(loc) }),
	}

	if cfg.Knowledge.Enabled && rt.provider != nil {
		store, n, err := buildIndex(ctx, cfg, reporter, log, false, false)
		switch {
		case err != nil:
			log.Warn("knowledge base unavailable", zap.Error(err))
		default:
			log.Info("knowledge base ready", zap.Int("documents", n))
			opts = append(opts, assistant.WithAnswerer(knowledge.NewRAGAnswerer(store, rt.provider,
				knowledge.WithTopK(cfg.Knowledge.TopK),
				knowledge.WithModel(cfg.Model),
				knowledge.WithLogger(log),
			)))
		}
	}

	if cfg.Audit.Enabled {
		database, err := db.Open(cfg.Audit.Path)
		if err != nil {
			return nil, fmt.Errorf("opening audit database: %w", err)
		}
		rt.closers = append(rt.closers, database.Close)
		rt.auditStore = audit.NewStore(database)
		opts = append(opts, assistant.WithAudit(rt.auditStore))
	}

	sessions, err := createSessionStore(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, sessions.Close)
	if mem, ok := sessions.(*session.MemoryStore); ok && cfg.Session.TTL > 0 {
		stop := mem.StartSweeper(sweepInterval(cfg.Session.TTL))
		rt.closers = append(rt.closers, func() error { stop(); return nil })
	}

	a := assistant.New(classifier, evaluator, controller, opts...)
	rt.conversations = assistant.NewConversations(a, sessions)
	return rt, nil
}

// sweepInterval is how often a memory store drops expired conversations.
func sweepInterval(ttl time.Duration) time.Duration {
	return max(time.Second, min(ttl/2, 5*time.Minute))
}

func createSessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	s := cfg.Session
	if s.Backend != config.SessionRedis {
		return session.NewMemoryStore(s.TTL), nil
	}
	client, err := session.DialRedis(ctx, s.RedisAddr, s.RedisPassword, s.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis %s: %w", s.RedisAddr, err)
	}
	return session.NewRedisStore(client, s.KeyPrefix, s.TTL), nil
}

// Close releases stores in reverse order and logs LLM usage.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("close failed", zap.Error(err))
		}
	}
	rt.closers = nil
	if rt.provider != nil && rt.provider.Usage.Calls > 0 {
		u := rt.provider.Usage
		rt.logger.Info("llm usage",
			zap.Int("calls", u.Calls),
			zap.Int("input_tokens", u.InputTokens),
			zap.Int("output_tokens", u.OutputTokens),
			zap.Float64("cost_usd", u.CostUSD))
	}
}
