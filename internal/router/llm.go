package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/ecomarket/ecobot/internal/flow"
	"github.com/ecomarket/ecobot/internal/llm"
	"github.com/ecomarket/ecobot/internal/returns"
)

const intentSchema = `{
  "type": "object",
  "required": ["intent"],
  "properties": {
    "intent": {"type": "string", "enum": ["check_eligibility", "confirm", "knowledge_query", "ask_reference"]},
    "reference": {"type": "string"}
  }
}`

const routingPrompt = `Eres el enrutador de ECOBOT, el asistente de devoluciones de EcoMarket.
Clasifica el mensaje del cliente en UNA intención y responde solo con JSON:
{"intent": "<intención>", "reference": "<referencia o vacío>"}

Intenciones:
- check_eligibility: el mensaje contiene un ID de pedido (P-XXXX) o un número de identificación de 8 dígitos. Copia la referencia exacta en "reference".
- confirm: hay una devolución esperando confirmación y el cliente responde sí o no (o algo que intenta serlo).
- ask_reference: el cliente quiere devolver algo pero no dio ninguna referencia.
- knowledge_query: cualquier otra pregunta sobre políticas, términos, productos o envíos.`

// LLMClassifier routes with a language model and falls back to the
// heuristic when the model fails or answers outside the schema.
type LLMClassifier struct {
	provider llm.Provider
	model    string
	schema   *gojsonschema.Schema
	fallback *Heuristic
	logger   *zap.Logger
}

// NewLLMClassifier creates an LLMClassifier.
func NewLLMClassifier(provider llm.Provider, model string, logger *zap.Logger) (*LLMClassifier, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(intentSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling intent schema: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMClassifier{
		provider: provider,
		model:    model,
		schema:   schema,
		fallback: NewHeuristic(),
		logger:   logger,
	}, nil
}

// Classify asks the model; on any failure the heuristic decides. The
// returned error is always nil.
func (c *LLMClassifier) Classify(ctx context.Context, utterance string, state flow.State) (Intent, error) {
	intent, err := c.ask(ctx, utterance, state)
	if err != nil {
		c.logger.Warn("llm routing failed, using heuristic", zap.Error(err))
		return c.fallback.classify(utterance, state), nil
	}
	return intent, nil
}

type routedIntent struct {
	Intent    Kind   `json:"intent"`
	Reference string `json:"reference"`
}

func (c *LLMClassifier) ask(ctx context.Context, utterance string, state flow.State) (Intent, error) {
	user := fmt.Sprintf("Devolución esperando confirmación: %t\nMensaje: %s",
		state.Phase() == flow.PhaseAwaitingConfirmation, utterance)

	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		Model:       c.model,
		Messages:    []llm.Message{llm.System(routingPrompt), llm.User(user)},
		MaxTokens:   100,
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		return Intent{}, err
	}

	raw := strings.TrimSpace(resp.Content)
	result, err := c.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return Intent{}, fmt.Errorf("%w: %v", ErrInvalidIntent, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return Intent{}, fmt.Errorf("%w: %v", ErrInvalidIntent, errs)
	}

	var routed routedIntent
	if err := json.Unmarshal([]byte(raw), &routed); err != nil {
		return Intent{}, fmt.Errorf("%w: %v", ErrInvalidIntent, err)
	}
	return finish(routed, utterance, state)
}

// finish applies the checks the model cannot be trusted with.
func finish(routed routedIntent, utterance string, state flow.State) (Intent, error) {
	text := strings.TrimSpace(utterance)
	switch routed.Intent {
	case KindCheckEligibility:
		ref, err := returns.ParseReference(routed.Reference)
		if err == nil {
			return Intent{Kind: KindCheckEligibility, Reference: ref.Value, Text: text}, nil
		}
		if ref := ExtractReference(text); ref != "" {
			return Intent{Kind: KindCheckEligibility, Reference: ref, Text: text}, nil
		}
		if raw := SuspectReference(text); raw != "" {
			return Intent{Kind: KindCheckEligibility, Reference: raw, Text: text}, nil
		}
		// A malformed reference the customer actually typed still goes to
		// the evaluator, which asks for the right format.
		if raw := strings.TrimSpace(routed.Reference); raw != "" && strings.Contains(text, raw) {
			return Intent{Kind: KindCheckEligibility, Reference: raw, Text: text}, nil
		}
		return Intent{}, fmt.Errorf("%w: reference %q", ErrInvalidIntent, routed.Reference)
	case KindConfirm:
		if state.Phase() != flow.PhaseAwaitingConfirmation {
			return Intent{}, fmt.Errorf("%w: confirm without a pending return", ErrInvalidIntent)
		}
		return Intent{Kind: KindConfirm, Text: text}, nil
	default:
		return Intent{Kind: routed.Intent, Text: text}, nil
	}
}
