package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard asks for the essentials, saves the result to path and
// returns it. Everything not asked keeps its default.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to ecobot! Let's configure the returns assistant.")
	fmt.Println()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"openai", "anthropic", "openrouter", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)

	// 2. Quality tier.
	qualityPrompt := promptui.Select{
		Label: "Select quality tier",
		Items: []string{
			"lite   (fast and cheap)",
			"normal (balanced)",
			"max    (highest quality)",
		},
		CursorPos: 1,
	}
	qualityIdx, _, err := qualityPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("quality selection: %w", err)
	}
	tiers := []QualityTier{QualityLite, QualityNormal, QualityMax}
	quality := tiers[qualityIdx]
	preset := GetPreset(provider, quality)

	// 3. Message routing.
	classifierPrompt := promptui.Select{
		Label: "How should messages be routed?",
		Items: []string{string(ClassifierHeuristic), string(ClassifierLLM)},
	}
	_, modeStr, err := classifierPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("classifier selection: %w", err)
	}

	// 4. Knowledge sources.
	sourcesPrompt := promptui.Prompt{
		Label:   "Knowledge documents (comma-separated)",
		Default: strings.Join(DefaultSources, ","),
	}
	sourcesStr, err := sourcesPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("knowledge sources: %w", err)
	}

	// 5. Local documents.
	localPrompt := promptui.Prompt{
		Label:   "Local documents directory (leave blank for none)",
		Default: "",
	}
	localDir, err := localPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("local directory: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Provider = provider
	cfg.Model = preset.Model
	cfg.EmbeddingProvider = embeddingProviderFor(provider)
	cfg.EmbeddingModel = preset.EmbeddingModel
	cfg.Quality = quality
	cfg.Classifier.Mode = ClassifierMode(modeStr)
	if sources := splitAndTrim(sourcesStr); len(sources) > 0 {
		cfg.Knowledge.Sources = sources
	}
	cfg.Knowledge.LocalDir = strings.TrimSpace(localDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Check for API keys.
	for _, p := range []ProviderType{provider, cfg.EmbeddingProvider} {
		if envVar := APIKeyEnvVar(p); envVar != "" && os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: Set %s in your environment (or .env) before running ecobot.\n", envVar)
		}
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// embeddingProviderFor returns the default embedding provider for a given
// LLM provider. OpenAI embeddings are used for all cloud providers.
func embeddingProviderFor(p ProviderType) ProviderType {
	if p == ProviderOllama {
		return ProviderOllama
	}
	return ProviderOpenAI
}

// splitAndTrim splits a comma-separated string and drops empty entries.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
