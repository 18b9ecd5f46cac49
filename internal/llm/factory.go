package llm

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ErrMissingAPIKey is returned when a hosted provider has no key in the
// environment. Callers without a key can still run the returns flow with
// the heuristic router.
var ErrMissingAPIKey = errors.New("api key not set")

type backend struct {
	keyEnv string // empty for keyless backends
	build  func(apiKey, model string) Provider
}

var backends = map[string]backend{
	"openai": {
		keyEnv: "OPENAI_API_KEY",
		build: func(key, model string) Provider {
			if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
				return NewCompatibleProvider("openai", key, base, model)
			}
			return NewOpenAIProvider(key, model)
		},
	},
	"anthropic": {
		keyEnv: "ANTHROPIC_API_KEY",
		build:  func(key, model string) Provider { return NewAnthropicProvider(key, model) },
	},
	"openrouter": {
		keyEnv: "OPENROUTER_API_KEY",
		build: func(key, model string) Provider {
			return NewCompatibleProvider("openrouter", key, OpenRouterBaseURL, model)
		},
	},
	"ollama": {
		build: func(_, model string) Provider {
			host := os.Getenv("OLLAMA_HOST")
			if host == "" {
				host = DefaultOllamaHost
			}
			return NewOllamaProvider(host, model)
		},
	},
}

// Backends lists the provider types NewProvider accepts.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewProvider creates a provider by type, reading credentials from the
// environment.
func NewProvider(providerType, model string) (Provider, error) {
	b, ok := backends[strings.ToLower(providerType)]
	if !ok {
		return nil, fmt.Errorf("unsupported provider type %q (want one of %s)", providerType, strings.Join(Backends(), ", "))
	}
	var key string
	if b.keyEnv != "" {
		key = os.Getenv(b.keyEnv)
		if key == "" {
			return nil, fmt.Errorf("%s: %w (set %s)", providerType, ErrMissingAPIKey, b.keyEnv)
		}
	}
	return b.build(key, model), nil
}
