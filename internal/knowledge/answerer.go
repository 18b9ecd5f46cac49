package knowledge

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ecomarket/ecobot/internal/llm"
	"github.com/ecomarket/ecobot/internal/vectordb"
)

// DefaultTopK is how many chunks are retrieved per question.
const DefaultTopK = 5

const answerTemperature = 0.1

const promptTemplate = `Instrucción: Eres un asistente de servicio al cliente de EcoMarket. Responde a la pregunta del cliente utilizando únicamente el contexto proporcionado.
Sigue estas reglas en orden de prioridad:
1. Si el contexto contiene una PREGUNTA FRECUENTE directamente relacionada, usa su RESPUESTA.
2. Si no, sintetiza la respuesta a partir de los Términos y Condiciones o de las Políticas.
3. Si la respuesta no está en el contexto, indica amablemente que esa información no está disponible en la base de conocimiento de EcoMarket.

Contexto:
%s

Pregunta: %s

Respuesta:`

// BuildPrompt renders the answering prompt for a question and its context.
func BuildPrompt(contextText, question string) string {
	return fmt.Sprintf(promptTemplate, contextText, question)
}

// RAGAnswerer answers questions from the chunks closest to them.
type RAGAnswerer struct {
	store    vectordb.VectorStore
	provider llm.Provider
	model    string
	topK     int
	logger   *zap.Logger
}

// AnswererOption configures a RAGAnswerer.
type AnswererOption func(*RAGAnswerer)

// WithTopK sets how many chunks are retrieved.
func WithTopK(k int) AnswererOption {
	return func(a *RAGAnswerer) {
		if k > 0 {
			a.topK = k
		}
	}
}

// WithModel overrides the provider's default model.
func WithModel(model string) AnswererOption {
	return func(a *RAGAnswerer) { a.model = model }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) AnswererOption {
	return func(a *RAGAnswerer) { a.logger = l }
}

// NewRAGAnswerer creates an answerer over an index and a language model.
func NewRAGAnswerer(store vectordb.VectorStore, provider llm.Provider, opts ...AnswererOption) *RAGAnswerer {
	a := &RAGAnswerer{
		store:    store,
		provider: provider,
		topK:     DefaultTopK,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Answer retrieves context for query and asks the model to answer from it.
// An empty index returns ErrIndexEmpty; no matching chunk returns
// NoDocumentsMessage without calling the model.
func (a *RAGAnswerer) Answer(ctx context.Context, query string) (string, error) {
	if a.store.Count() == 0 {
		return "", ErrIndexEmpty
	}

	results, err := a.store.Search(ctx, query, a.topK, nil)
	if err != nil {
		return "", fmt.Errorf("searching knowledge base: %w", err)
	}
	if len(results) == 0 {
		return NoDocumentsMessage, nil
	}

	sources := make([]string, 0, len(results))
	for _, r := range results {
		sources = append(sources, r.Document.Metadata.Source)
	}
	a.logger.Debug("knowledge retrieved", zap.String("query", query), zap.Strings("sources", sources))

	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		Model:       a.model,
		Messages:    []llm.Message{llm.User(BuildPrompt(vectordb.FormatContext(results), query))},
		Temperature: answerTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}
