package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecomarket/ecobot/internal/audit"
	"github.com/ecomarket/ecobot/internal/catalog"
	"github.com/ecomarket/ecobot/internal/flow"
	"github.com/ecomarket/ecobot/internal/fulfillment"
	"github.com/ecomarket/ecobot/internal/knowledge"
	"github.com/ecomarket/ecobot/internal/metrics"
	"github.com/ecomarket/ecobot/internal/returns"
	"github.com/ecomarket/ecobot/internal/router"
)

const morning = "Buenos días ☀️ Gracias por contactarnos. "

type fakeAnswerer struct {
	mu      sync.Mutex
	answer  string
	err     error
	queries []string
}

func (f *fakeAnswerer) Answer(_ context.Context, query string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.answer, f.err
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

func (r *recordingAudit) Log(_ context.Context, e audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingAudit) types() []audit.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.EventType
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// stubClassifier returns a fixed intent.
type stubClassifier struct {
	intent router.Intent
	err    error
}

func (s stubClassifier) Classify(context.Context, string, flow.State) (router.Intent, error) {
	return s.intent, s.err
}

// countingLabeler counts label requests.
type countingLabeler struct {
	fulfillment.Labeler
	calls atomic.Int32
}

func (c *countingLabeler) Generate(ctx context.Context, returnID, originAddress string) fulfillment.LabelResult {
	c.calls.Add(1)
	return c.Labeler.Generate(ctx, returnID, originAddress)
}

type fixture struct {
	assistant *Assistant
	labels    *countingLabeler
	answerer  *fakeAnswerer
	audit     *recordingAudit
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T, classifier router.Classifier, opts ...Option) *fixture {
	t.Helper()
	var seq atomic.Int32
	evaluator := returns.NewEvaluator(catalog.Default(),
		returns.WithClock(func() time.Time { return time.Date(2025, 10, 25, 12, 0, 0, 0, time.UTC) }),
		returns.WithLocation(time.UTC),
		returns.WithIDGenerator(func() string {
			return fmt.Sprintf("DEV-test-%04d", seq.Add(1))
		}),
	)
	labels := &countingLabeler{Labeler: fulfillment.NewLabelService("", zap.NewNop())}
	controller := flow.NewController(
		labels,
		fulfillment.NewRefundService(zap.NewNop()),
		zap.NewNop(),
	)
	if classifier == nil {
		classifier = router.NewHeuristic()
	}

	f := &fixture{
		labels:   labels,
		answerer: &fakeAnswerer{answer: "Entre 3 y 5 días hábiles."},
		audit:    &recordingAudit{},
		metrics:  metrics.New(),
	}
	base := []Option{
		WithAnswerer(f.answerer),
		WithAudit(f.audit),
		WithMetrics(f.metrics),
		WithClock(func() time.Time { return time.Date(2025, 10, 25, 10, 0, 0, 0, time.UTC) }),
	}
	f.assistant = New(classifier, evaluator, controller, append(base, opts...)...)
	return f
}

func TestGreeting(t *testing.T) {
	day := func(h, m int) time.Time { return time.Date(2025, 10, 25, h, m, 0, 0, time.UTC) }

	assert.Equal(t, morning, Greeting(day(0, 0)))
	assert.Equal(t, morning, Greeting(day(11, 59)))
	assert.Equal(t, "Buenas tardes 🌻 Gracias por contactarnos. ", Greeting(day(12, 0)))
	assert.Equal(t, "Buenas tardes 🌻 Gracias por contactarnos. ", Greeting(day(17, 59)))
	assert.Equal(t, "Buenas noches 🌙 Gracias por contactarnos. ", Greeting(day(18, 0)))
}

func TestEligibleReferenceStartsConfirmation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	reply, state := f.assistant.Handle(ctx, "web-1", flow.State{}, "Quiero devolver el pedido P-1003")

	assert.Equal(t, router.KindCheckEligibility, reply.Intent)
	assert.Equal(t, morning+
		"✅ El pedido **P-1003** es elegible para devolución.\n"+
		"Productos retornables: **bolsas reutilizables**.\n\n"+
		"¿Deseas continuar con la devolución? (Responde **sí** o **no**)", reply.Text)
	require.NotNil(t, reply.Eligibility)
	assert.True(t, reply.Eligibility.Eligible)
	assert.Equal(t, flow.State{PendingReturnID: "DEV-test-0001", AwaitingConfirmation: true}, state)

	assert.Equal(t, []audit.EventType{audit.EventEligibilityChecked, audit.EventConfirmationRequested}, f.audit.types())
	assert.Equal(t, "web", f.audit.events[0].Channel)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EligibilityChecks.WithLabelValues("eligible")))
}

func TestConfirmYesRunsCollaboratorsAndResets(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	awaiting := flow.StartConfirmation(flow.State{}, "DEV-test-0001")

	reply, state := f.assistant.Handle(ctx, "web-1", awaiting, "Sí")

	assert.Equal(t, router.KindConfirm, reply.Intent)
	assert.Equal(t, flow.State{}, state)
	assert.True(t, strings.HasPrefix(reply.Text, morning+"✅ ¡Tu devolución ha sido confirmada!"))
	assert.Contains(t, reply.Text, "TRK-test-000")
	assert.Contains(t, reply.Text, "Reembolso procesado")
	require.NotNil(t, reply.Outcome)
	assert.Equal(t, flow.DecisionYes, reply.Outcome.Decision)

	assert.Equal(t, []audit.EventType{
		audit.EventReturnConfirmed, audit.EventLabelGenerated, audit.EventRefundProcessed,
	}, f.audit.types())
	for _, e := range f.audit.events {
		assert.Equal(t, "DEV-test-0001", e.ReturnID)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ConfirmationDecisions.WithLabelValues("yes")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CollaboratorCalls.WithLabelValues("label", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CollaboratorCalls.WithLabelValues("refund", "success")))
}

func TestConfirmYesWithRefundFailureStillResets(t *testing.T) {
	f := newFixture(t, nil)
	awaiting := flow.StartConfirmation(flow.State{}, "DEV-1234"+fulfillment.FailureSuffix)

	reply, state := f.assistant.Handle(context.Background(), "web-1", awaiting, "confirmo")

	assert.Equal(t, flow.State{}, state)
	assert.Contains(t, reply.Text, "No se pudo conectar con la pasarela de pagos")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CollaboratorCalls.WithLabelValues("refund", "failure")))
	refund := f.audit.events[len(f.audit.events)-1]
	assert.Equal(t, audit.EventRefundProcessed, refund.Type)
	assert.False(t, refund.Success)
}

func TestConfirmNoCancels(t *testing.T) {
	f := newFixture(t, nil)
	awaiting := flow.StartConfirmation(flow.State{}, "DEV-test-0001")

	reply, state := f.assistant.Handle(context.Background(), "cli-1", awaiting, "no gracias")

	assert.Equal(t, flow.State{}, state)
	assert.Equal(t, morning+"Perfecto 😊 No realizaremos la devolución. Quedo atento si necesitas ayuda con otra consulta.", reply.Text)
	assert.Equal(t, []audit.EventType{audit.EventReturnCancelled}, f.audit.types())
}

func TestUnrecognizedConfirmationKeepsState(t *testing.T) {
	f := newFixture(t, nil)
	awaiting := flow.StartConfirmation(flow.State{}, "DEV-test-0001")

	reply, state := f.assistant.Handle(context.Background(), "web-1", awaiting, "sí porfavor")

	assert.Equal(t, awaiting, state)
	assert.Equal(t, morning+"Solo para confirmar 😊 ¿Deseas continuar con la devolución? (sí/no)", reply.Text)
	assert.Empty(t, f.audit.events)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ConfirmationDecisions.WithLabelValues("unrecognized")))
}

func TestQuestionWhileAwaitingIsGuarded(t *testing.T) {
	f := newFixture(t, nil)
	awaiting := flow.StartConfirmation(flow.State{}, "DEV-test-0001")

	reply, state := f.assistant.Handle(context.Background(), "web-1", awaiting, "¿Cuánto tarda el reembolso?")

	assert.Equal(t, awaiting, state)
	assert.Equal(t, router.KindKnowledgeQuery, reply.Intent)
	assert.Equal(t, morning+ReplyConfirmFirst, reply.Text)
	assert.Empty(t, f.answerer.queries)
}

func TestReturnWithoutReferenceAsksForIt(t *testing.T) {
	f := newFixture(t, nil)

	reply, state := f.assistant.Handle(context.Background(), "web-1", flow.State{}, "Quiero devolver un producto")

	assert.Equal(t, router.KindAskReference, reply.Intent)
	assert.Equal(t, morning+ReplyReferenceInstructions, reply.Text)
	assert.Equal(t, flow.State{}, state)
	assert.Empty(t, f.audit.events)
}

func TestAskReferenceWhileAwaitingIsGuarded(t *testing.T) {
	f := newFixture(t, stubClassifier{intent: router.Intent{Kind: router.KindAskReference}})
	awaiting := flow.StartConfirmation(flow.State{}, "DEV-test-0001")

	reply, state := f.assistant.Handle(context.Background(), "web-1", awaiting, "quiero devolver otra cosa")
	assert.Equal(t, awaiting, state)
	assert.Equal(t, morning+ReplyConfirmFirst, reply.Text)
}

func TestFormatErrorRepliesWithInstructions(t *testing.T) {
	f := newFixture(t, stubClassifier{intent: router.Intent{Kind: router.KindCheckEligibility, Reference: "P1003"}})

	reply, state := f.assistant.Handle(context.Background(), "web-1", flow.State{}, "P1003")

	assert.Equal(t, morning+ReplyReferenceInstructions, reply.Text)
	assert.Equal(t, flow.State{}, state)
	require.NotNil(t, reply.Eligibility)
	assert.Equal(t, returns.CodeInvalidFormat, reply.Eligibility.Code)
}

func TestMistypedReferenceGetsFormatInstructions(t *testing.T) {
	for _, text := range []string{"P-10a2", "mi pedido es P-", "3040679", "304067901"} {
		t.Run(text, func(t *testing.T) {
			f := newFixture(t, nil)

			reply, state := f.assistant.Handle(context.Background(), "web-1", flow.State{}, text)

			assert.Equal(t, router.KindCheckEligibility, reply.Intent)
			assert.Equal(t, morning+ReplyReferenceInstructions, reply.Text)
			assert.Equal(t, flow.State{}, state)
			require.NotNil(t, reply.Eligibility)
			assert.Equal(t, returns.CodeInvalidFormat, reply.Eligibility.Code)
			assert.Empty(t, f.answerer.queries)
		})
	}
}

func TestIneligibleKeepsPendingConfirmation(t *testing.T) {
	f := newFixture(t, nil)
	awaiting := flow.StartConfirmation(flow.State{}, "DEV-test-0001")

	reply, state := f.assistant.Handle(context.Background(), "web-1", awaiting, "P-1002")

	assert.Equal(t, awaiting, state)
	assert.Equal(t, morning+"No se encontró un pedido 'Entregado' asociado a la referencia 'P-1002'.", reply.Text)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EligibilityChecks.WithLabelValues("not_found")))
}

func TestNewEligibleCheckReplacesPendingConfirmation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, state := f.assistant.Handle(ctx, "web-1", flow.State{}, "P-1003")
	require.Equal(t, "DEV-test-0001", state.PendingReturnID)

	reply, state := f.assistant.Handle(ctx, "web-1", state, "mi cédula es 30406790")
	assert.Equal(t, "DEV-test-0002", state.PendingReturnID)
	assert.True(t, state.AwaitingConfirmation)
	assert.Contains(t, reply.Text, "**P-1007**")
}

func TestKnowledgeQueryWhenIdle(t *testing.T) {
	f := newFixture(t, nil)

	reply, state := f.assistant.Handle(context.Background(), "web-1", flow.State{}, "¿Cuánto tarda el reembolso?")

	assert.Equal(t, flow.State{}, state)
	assert.Equal(t, morning+"Entre 3 y 5 días hábiles.", reply.Text)
	assert.Equal(t, []string{"¿Cuánto tarda el reembolso?"}, f.answerer.queries)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.KnowledgeQueries.WithLabelValues("answered")))
}

func TestConfirmWhileIdleFallsThroughToKnowledge(t *testing.T) {
	f := newFixture(t, stubClassifier{intent: router.Intent{Kind: router.KindConfirm}})

	reply, state := f.assistant.Handle(context.Background(), "web-1", flow.State{}, "sí")

	assert.Equal(t, flow.State{}, state)
	assert.Equal(t, router.KindKnowledgeQuery, reply.Intent)
	assert.Equal(t, []string{"sí"}, f.answerer.queries)
	assert.Nil(t, reply.Outcome)
}

func TestKnowledgeFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		answer string
		want   string
		result string
	}{
		{"empty index", knowledge.ErrIndexEmpty, "", ReplyKnowledgeUnavailable, "unavailable"},
		{"provider error", errors.New("timeout"), "", ReplyKnowledgeError, "error"},
		{"no documents", nil, knowledge.NoDocumentsMessage, knowledge.NoDocumentsMessage, "no_documents"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.answerer.err, f.answerer.answer = tt.err, tt.answer

			reply, _ := f.assistant.Handle(context.Background(), "web-1", flow.State{}, "¿Qué productos venden?")
			assert.Equal(t, morning+tt.want, reply.Text)
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.KnowledgeQueries.WithLabelValues(tt.result)))
		})
	}
}

func TestKnowledgeDisabled(t *testing.T) {
	f := newFixture(t, nil, WithAnswerer(nil))
	assert.False(t, f.assistant.KnowledgeEnabled())

	reply, _ := f.assistant.Handle(context.Background(), "web-1", flow.State{}, "¿Qué productos venden?")
	assert.Equal(t, morning+ReplyKnowledgeUnavailable, reply.Text)
}

func TestClassifierErrorFallsBackToHeuristic(t *testing.T) {
	f := newFixture(t, stubClassifier{err: errors.New("model down")})

	reply, state := f.assistant.Handle(context.Background(), "web-1", flow.State{}, "P-1003")
	assert.Equal(t, router.KindCheckEligibility, reply.Intent)
	assert.True(t, state.AwaitingConfirmation)
}

func TestAuditFailureDoesNotAffectReply(t *testing.T) {
	f := newFixture(t, nil)
	f.audit.err = errors.New("disk full")

	reply, state := f.assistant.Handle(context.Background(), "web-1", flow.State{}, "P-1003")
	assert.Contains(t, reply.Text, "es elegible")
	assert.True(t, state.AwaitingConfirmation)
}

func TestSingleGreetingPerReply(t *testing.T) {
	f := newFixture(t, nil)
	reply, _ := f.assistant.Handle(context.Background(), "web-1", flow.State{}, "P-1003")
	assert.Equal(t, 1, strings.Count(reply.Text, "Gracias por contactarnos"))
}

func TestChannelOf(t *testing.T) {
	assert.Equal(t, "web", ChannelOf("web-8f14e45f"))
	assert.Equal(t, "bot", ChannelOf("bot-slack-C123"))
	assert.Equal(t, "local", ChannelOf("local"))
	assert.Equal(t, "", ChannelOf(""))
}
