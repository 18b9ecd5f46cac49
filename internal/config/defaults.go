package config

import "time"

// DefaultPath is where the configuration file is looked up.
const DefaultPath = ".ecobot.yml"

// QualityPreset describes the models to use for a given quality tier.
type QualityPreset struct {
	Model          string
	EmbeddingModel string
}

// qualityPresets maps each provider+quality combination to its model choices.
var qualityPresets = map[ProviderType]map[QualityTier]QualityPreset{
	ProviderAnthropic: {
		QualityLite:   {Model: "claude-haiku-4-5-20251001", EmbeddingModel: "text-embedding-3-small"},
		QualityNormal: {Model: "claude-sonnet-4-5-20250929", EmbeddingModel: "text-embedding-3-small"},
		QualityMax:    {Model: "claude-sonnet-4-5-20250929", EmbeddingModel: "text-embedding-3-large"},
	},
	ProviderOpenAI: {
		QualityLite:   {Model: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
		QualityNormal: {Model: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
		QualityMax:    {Model: "gpt-4o", EmbeddingModel: "text-embedding-3-large"},
	},
	ProviderOllama: {
		QualityLite:   {Model: "llama3", EmbeddingModel: "nomic-embed-text"},
		QualityNormal: {Model: "llama3", EmbeddingModel: "nomic-embed-text"},
		QualityMax:    {Model: "llama3:70b", EmbeddingModel: "nomic-embed-text"},
	},
	ProviderOpenRouter: {
		QualityLite:   {Model: "openai/gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
		QualityNormal: {Model: "openai/gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
		QualityMax:    {Model: "openai/gpt-4o", EmbeddingModel: "text-embedding-3-large"},
	},
}

// DefaultSources are the published EcoMarket documents.
var DefaultSources = []string{
	"Politica_de_Devoluciones_EcoMarket.pdf",
	"Terminos_y_Condiciones_Generales_de_Venta_EcoMarket.pdf",
	"Manual_de_Uso_Productos_Ecologicos.pdf",
	"faq_ecomarket.json",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		Model:             "gpt-4o-mini",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		Quality:           QualityNormal,
		LLM: LLMConfig{
			RateLimitRPM: 60,
			MaxAttempts:  3,
			RetryBackoff: time.Second,
		},
		Knowledge: KnowledgeConfig{
			Enabled:      true,
			BaseURL:      "https://raw.githubusercontent.com/semurillas/GenIA-20252-ICESI/main/Taller%202/Documentos/",
			Sources:      DefaultSources,
			DownloadDir:  "documentos_rag",
			PersistDir:   "chroma_db",
			Collection:   "ecomarket_rag_data",
			Include:      []string{"**/*.md", "**/*.txt", "**/*.json", "**/*.pdf"},
			TopK:         5,
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Returns: ReturnsConfig{
			WindowDays:   30,
			Timezone:     "America/Bogota",
			LabelBaseURL: "https://ecomarket.com/etiquetas/",
		},
		Classifier: ClassifierConfig{Mode: ClassifierHeuristic},
		Session: SessionConfig{
			Backend:   SessionMemory,
			TTL:       30 * time.Minute,
			RedisAddr: "localhost:6379",
			KeyPrefix: "ecobot:session:",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{Level: "info", Format: "console"},
		Audit: AuditConfig{
			Enabled: true,
			Path:    ".ecobot/audit.db",
		},
	}
}

// GetPreset returns the quality preset for the given provider and tier.
// Returns the Normal OpenAI preset if the combination is not found.
func GetPreset(provider ProviderType, tier QualityTier) QualityPreset {
	if tiers, ok := qualityPresets[provider]; ok {
		if preset, ok := tiers[tier]; ok {
			return preset
		}
	}
	return qualityPresets[ProviderOpenAI][QualityNormal]
}
