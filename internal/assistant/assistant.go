// Package assistant ties the return flow together: it routes each customer
// message to an eligibility check, the confirmation step or the knowledge
// base, and turns the outcome into a reply.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ecomarket/ecobot/internal/audit"
	"github.com/ecomarket/ecobot/internal/flow"
	"github.com/ecomarket/ecobot/internal/knowledge"
	"github.com/ecomarket/ecobot/internal/metrics"
	"github.com/ecomarket/ecobot/internal/returns"
	"github.com/ecomarket/ecobot/internal/router"
)

const (
	ReplyReferenceInstructions = "Por supuesto 😊 Para ayudarte, por favor indícame el **número de pedido** " +
		"(formato **P-XXXX**) o tu **número de identificación** (8 dígitos)."
	ReplyConfirmFirst         = "Primero confirmemos la devolución 😊 (Responde **sí** o **no**)."
	ReplyKnowledgeUnavailable = "Por ahora no puedo consultar la base de conocimiento de EcoMarket. " +
		"Si tu consulta es sobre una devolución, indícame el número de pedido (P-XXXX) o tu número de identificación (8 dígitos)."
	ReplyKnowledgeError = "Lo siento 😔 No pude consultar la base de conocimiento en este momento. " +
		"Por favor, inténtalo de nuevo más tarde."
)

// Greeting returns the time-of-day greeting every reply starts with.
func Greeting(t time.Time) string {
	switch h := t.Hour(); {
	case h < 12:
		return "Buenos días ☀️ Gracias por contactarnos. "
	case h < 18:
		return "Buenas tardes 🌻 Gracias por contactarnos. "
	default:
		return "Buenas noches 🌙 Gracias por contactarnos. "
	}
}

// EligibilityPrompt asks the customer to confirm an eligible return.
func EligibilityPrompt(res returns.EligibilityResult) string {
	products := strings.Join(res.ReturnableProducts, ", ")
	if products == "" {
		products = "—"
	}
	return fmt.Sprintf("✅ El pedido **%s** es elegible para devolución.\n"+
		"Productos retornables: **%s**.\n\n"+
		"¿Deseas continuar con la devolución? (Responde **sí** o **no**)", res.OrderID, products)
}

// Evaluator checks a customer reference.
type Evaluator interface {
	Evaluate(reference string) returns.EligibilityResult
}

// Reply is the assistant's answer to one message.
type Reply struct {
	Text        string                     `json:"text"`
	Intent      router.Kind                `json:"intent"`
	Eligibility *returns.EligibilityResult `json:"eligibility,omitempty"`
	Outcome     *flow.Outcome              `json:"-"`
}

// Assistant handles single messages. It keeps no per-conversation state:
// the caller passes the conversation's flow state in and stores the one
// returned.
type Assistant struct {
	classifier router.Classifier
	fallback   router.Classifier
	evaluator  Evaluator
	controller *flow.Controller
	answerer   knowledge.Answerer
	audit      audit.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithAnswerer enables the knowledge path. Without one, questions get
// ReplyKnowledgeUnavailable.
func WithAnswerer(ans knowledge.Answerer) Option {
	return func(a *Assistant) { a.answerer = ans }
}

// WithAudit records return lifecycle events.
func WithAudit(l audit.Logger) Option {
	return func(a *Assistant) {
		if l != nil {
			a.audit = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assistant) { a.metrics = m }
}

// WithClock overrides the clock used for greetings.
func WithClock(now func() time.Time) Option {
	return func(a *Assistant) { a.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Assistant) { a.logger = l }
}

// New creates an Assistant.
func New(classifier router.Classifier, evaluator Evaluator, controller *flow.Controller, opts ...Option) *Assistant {
	a := &Assistant{
		classifier: classifier,
		fallback:   router.NewHeuristic(),
		evaluator:  evaluator,
		controller: controller,
		audit:      audit.Nop{},
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// KnowledgeEnabled reports whether a knowledge answerer is configured.
func (a *Assistant) KnowledgeEnabled() bool {
	return a.answerer != nil
}

// Handle answers one message and returns the conversation's next state.
// It never fails: every problem becomes reply text.
func (a *Assistant) Handle(ctx context.Context, conversationID string, state flow.State, utterance string) (Reply, flow.State) {
	intent, err := a.classifier.Classify(ctx, utterance, state)
	if err != nil || !intent.Kind.Valid() {
		a.logger.Warn("classifier failed, using heuristic", zap.Error(err), zap.String("kind", string(intent.Kind)))
		intent, _ = a.fallback.Classify(ctx, utterance, state)
	}
	intent.Text = utterance

	reply, next := a.Dispatch(ctx, conversationID, state, intent)
	reply.Text = Greeting(a.now()) + reply.Text
	return reply, next
}

// Dispatch runs an already routed intent. Tool callers that know what the
// user wants use it directly; the reply carries no greeting.
func (a *Assistant) Dispatch(ctx context.Context, conversationID string, state flow.State, intent router.Intent) (Reply, flow.State) {
	a.metrics.ObserveIntent(string(intent.Kind))
	a.logger.Debug("message routed",
		zap.String("conversation_id", conversationID),
		zap.String("intent", string(intent.Kind)),
		zap.String("phase", state.Phase().String()))

	var (
		reply Reply
		next  = state
	)
	switch intent.Kind {
	case router.KindCheckEligibility:
		reply, next = a.checkEligibility(ctx, conversationID, state, intent.Reference)

	case router.KindConfirm:
		out, after := a.controller.HandleConfirmation(ctx, state, intent.Text)
		if out.Applicable {
			a.recordConfirmation(ctx, conversationID, out)
			reply, next = Reply{Text: out.Reply, Outcome: &out}, after
			break
		}
		// Nothing was pending; treat it as an ordinary question.
		intent.Kind = router.KindKnowledgeQuery
		reply = a.answer(ctx, state, intent.Text)

	case router.KindAskReference:
		if state.Phase() == flow.PhaseAwaitingConfirmation {
			reply = Reply{Text: ReplyConfirmFirst}
		} else {
			reply = Reply{Text: ReplyReferenceInstructions}
		}

	default:
		reply = a.answer(ctx, state, intent.Text)
	}

	reply.Intent = intent.Kind
	return reply, next
}

func (a *Assistant) checkEligibility(ctx context.Context, conversationID string, state flow.State, reference string) (Reply, flow.State) {
	res := a.evaluator.Evaluate(reference)
	a.metrics.ObserveEligibility(string(res.Code))
	a.record(ctx, audit.Event{
		Type:           audit.EventEligibilityChecked,
		ConversationID: conversationID,
		OrderID:        res.OrderID,
		CustomerID:     res.CustomerID,
		Code:           string(res.Code),
		Success:        res.Eligible,
		Detail:         res.Reason,
	})

	switch {
	case res.IsFormatError():
		return Reply{Text: ReplyReferenceInstructions, Eligibility: &res}, state
	case !res.Eligible:
		return Reply{Text: res.Reason, Eligibility: &res}, state
	}

	if state.Phase() == flow.PhaseAwaitingConfirmation {
		a.logger.Info("pending confirmation replaced",
			zap.String("conversation_id", conversationID),
			zap.String("previous_return_id", state.PendingReturnID),
			zap.String("return_id", res.ReturnID))
	}
	next := flow.StartConfirmation(state, res.ReturnID)
	a.record(ctx, audit.Event{
		Type:           audit.EventConfirmationRequested,
		ConversationID: conversationID,
		ReturnID:       res.ReturnID,
		OrderID:        res.OrderID,
		CustomerID:     res.CustomerID,
		Success:        true,
		Detail:         strings.Join(res.ReturnableProducts, ", "),
	})
	return Reply{Text: EligibilityPrompt(res), Eligibility: &res}, next
}

// answer runs the knowledge path. It refuses while a confirmation is pending.
func (a *Assistant) answer(ctx context.Context, state flow.State, query string) Reply {
	if state.Phase() == flow.PhaseAwaitingConfirmation {
		a.metrics.ObserveKnowledge("guarded", 0)
		return Reply{Text: ReplyConfirmFirst}
	}
	if a.answerer == nil {
		a.metrics.ObserveKnowledge("unavailable", 0)
		return Reply{Text: ReplyKnowledgeUnavailable}
	}

	start := time.Now()
	text, err := a.answerer.Answer(ctx, query)
	elapsed := time.Since(start)
	switch {
	case errors.Is(err, knowledge.ErrIndexEmpty):
		a.metrics.ObserveKnowledge("unavailable", elapsed)
		return Reply{Text: ReplyKnowledgeUnavailable}
	case err != nil:
		a.logger.Error("knowledge answer failed", zap.Error(err))
		a.metrics.ObserveKnowledge("error", elapsed)
		return Reply{Text: ReplyKnowledgeError}
	case text == knowledge.NoDocumentsMessage:
		a.metrics.ObserveKnowledge("no_documents", elapsed)
	default:
		a.metrics.ObserveKnowledge("answered", elapsed)
	}
	return Reply{Text: text}
}

func (a *Assistant) recordConfirmation(ctx context.Context, conversationID string, out flow.Outcome) {
	a.metrics.ObserveDecision(out.Decision.String())
	base := audit.Event{ConversationID: conversationID, ReturnID: out.ReturnID}

	switch out.Decision {
	case flow.DecisionYes:
		confirmed := base
		confirmed.Type, confirmed.Success = audit.EventReturnConfirmed, true
		a.record(ctx, confirmed)
		if out.Label != nil {
			a.metrics.ObserveCollaborator("label", out.Label.Success)
			label := base
			label.Type, label.Success, label.Detail = audit.EventLabelGenerated, out.Label.Success, out.Label.Message
			a.record(ctx, label)
		}
		if out.Refund != nil {
			a.metrics.ObserveCollaborator("refund", out.Refund.Success)
			refund := base
			refund.Type, refund.Success, refund.Detail = audit.EventRefundProcessed, out.Refund.Success, out.Refund.Message
			a.record(ctx, refund)
		}
	case flow.DecisionNo:
		cancelled := base
		cancelled.Type, cancelled.Success = audit.EventReturnCancelled, true
		a.record(ctx, cancelled)
	}
}

// record writes an audit event. Audit failures never reach the customer.
func (a *Assistant) record(ctx context.Context, e audit.Event) {
	if e.Channel == "" {
		e.Channel = ChannelOf(e.ConversationID)
	}
	if err := a.audit.Log(ctx, e); err != nil {
		a.logger.Warn("audit log failed", zap.String("type", string(e.Type)), zap.Error(err))
	}
}

// ChannelOf returns the surface a conversation id belongs to; ids are
// minted as "<channel>-<rest>".
func ChannelOf(conversationID string) string {
	if i := strings.IndexByte(conversationID, '-'); i > 0 {
		return conversationID[:i]
	}
	return conversationID
}
