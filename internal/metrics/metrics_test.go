package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveEligibility("eligible")
	m.ObserveEligibility("eligible")
	m.ObserveEligibility("not_found")
	m.ObserveDecision("yes")
	m.ObserveCollaborator("label", true)
	m.ObserveCollaborator("refund", false)
	m.ObserveIntent("confirm")
	m.ObserveKnowledge("answered", 300*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EligibilityChecks.WithLabelValues("eligible")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EligibilityChecks.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConfirmationDecisions.WithLabelValues("yes")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CollaboratorCalls.WithLabelValues("label", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CollaboratorCalls.WithLabelValues("refund", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IntentsRouted.WithLabelValues("confirm")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KnowledgeQueries.WithLabelValues("answered")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.KnowledgeLatency))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveEligibility("eligible")
		m.ObserveDecision("no")
		m.ObserveCollaborator("label", true)
		m.ObserveIntent("knowledge_query")
		m.ObserveKnowledge("error", time.Second)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveIntent("check_eligibility")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ecobot_intents_total{intent="check_eligibility"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
