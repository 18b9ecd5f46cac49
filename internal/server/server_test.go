package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecomarket/ecobot/internal/assistant"
	"github.com/ecomarket/ecobot/internal/audit"
	"github.com/ecomarket/ecobot/internal/bots"
	"github.com/ecomarket/ecobot/internal/catalog"
	"github.com/ecomarket/ecobot/internal/db"
	"github.com/ecomarket/ecobot/internal/flow"
	"github.com/ecomarket/ecobot/internal/fulfillment"
	"github.com/ecomarket/ecobot/internal/metrics"
	"github.com/ecomarket/ecobot/internal/returns"
	"github.com/ecomarket/ecobot/internal/router"
	"github.com/ecomarket/ecobot/internal/session"
)

type testEnv struct {
	srv     *Server
	store   *session.MemoryStore
	audit   *audit.Store
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	auditStore := audit.NewStore(database)

	evaluator := returns.NewEvaluator(catalog.Default(),
		returns.WithClock(func() time.Time { return time.Date(2025, 10, 25, 12, 0, 0, 0, time.UTC) }),
		returns.WithLocation(time.UTC),
	)
	controller := flow.NewController(
		fulfillment.NewLabelService("", zap.NewNop()),
		fulfillment.NewRefundService(zap.NewNop()),
		zap.NewNop(),
	)
	m := metrics.New()
	a := assistant.New(router.NewHeuristic(), evaluator, controller,
		assistant.WithAudit(auditStore),
		assistant.WithMetrics(m),
	)
	store := session.NewMemoryStore(time.Hour)
	conversations := assistant.NewConversations(a, store)

	gw := bots.NewGateway(bots.NewProcessor(conversations, nil), nil)
	srv := New(cfg, conversations, evaluator,
		WithAudit(auditStore),
		WithMetrics(m),
		WithBots(nil, bots.NewTeamsHandler(gw, nil)),
	)
	return &testEnv{srv: srv, store: store, audit: auditStore, metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthCheck(t *testing.T) {
	env := newTestServer(t, Config{})

	w := env.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["knowledge"])
}

func TestCORSHeaders(t *testing.T) {
	env := newTestServer(t, Config{AllowedOrigins: []string{"*"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	env.srv.Router().ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestChatReturnFlow(t *testing.T) {
	env := newTestServer(t, Config{})

	w := env.do(t, http.MethodPost, "/api/chat", `{"message":"Quiero devolver el pedido P-1003"}`)
	require.Equal(t, http.StatusOK, w.Code)
	first := decode[chatResponse](t, w)

	assert.True(t, strings.HasPrefix(first.ConversationID, "web-"), first.ConversationID)
	assert.Equal(t, router.KindCheckEligibility, first.Intent)
	assert.Equal(t, "awaiting_confirmation", first.Phase)
	require.NotNil(t, first.Eligibility)
	assert.True(t, first.Eligibility.Eligible)
	assert.Contains(t, first.Reply, "**P-1003**")
	assert.Contains(t, first.HTML, "<strong>P-1003</strong>")

	w = env.do(t, http.MethodGet, "/api/chat/"+first.ConversationID, "")
	require.Equal(t, http.StatusOK, w.Code)
	state := decode[stateResponse](t, w)
	assert.Equal(t, first.Eligibility.ReturnID, state.PendingReturnID)

	w = env.do(t, http.MethodPost, "/api/chat",
		`{"conversation_id":"`+first.ConversationID+`","message":"sí"}`)
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[chatResponse](t, w)

	assert.Equal(t, router.KindConfirm, second.Intent)
	assert.Equal(t, "idle", second.Phase)
	assert.Contains(t, second.Reply, first.Eligibility.ReturnID)

	events, err := env.audit.Query(context.Background(), audit.QueryFilter{ConversationID: first.ConversationID})
	require.NoError(t, err)
	assert.NotEmpty(t, events)
	for _, e := range events {
		assert.Equal(t, "web", e.Channel)
	}
}

func TestChatConversationsAreIndependent(t *testing.T) {
	env := newTestServer(t, Config{})

	a := decode[chatResponse](t, env.do(t, http.MethodPost, "/api/chat", `{"conversation_id":"web-a","message":"P-1003"}`))
	b := decode[chatResponse](t, env.do(t, http.MethodPost, "/api/chat", `{"conversation_id":"web-b","message":"hola"}`))

	assert.Equal(t, "awaiting_confirmation", a.Phase)
	assert.Equal(t, "idle", b.Phase)
}

func TestChatEnd(t *testing.T) {
	env := newTestServer(t, Config{})

	env.do(t, http.MethodPost, "/api/chat", `{"conversation_id":"web-end","message":"P-1003"}`)
	w := env.do(t, http.MethodDelete, "/api/chat/web-end", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	state := decode[stateResponse](t, env.do(t, http.MethodGet, "/api/chat/web-end", ""))
	assert.Equal(t, "idle", state.Phase)
	assert.Empty(t, state.PendingReturnID)
}

func TestChatRejectsInvalidPayloads(t *testing.T) {
	env := newTestServer(t, Config{})

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{nope`},
		{"missing message", `{"conversation_id":"web-1"}`},
		{"empty message", `{"message":""}`},
		{"wrong type", `{"message":42}`},
		{"unknown field", `{"message":"hola","extra":true}`},
		{"bad conversation id", `{"conversation_id":"has spaces","message":"hola"}`},
		{"too long", `{"message":"` + strings.Repeat("a", 2001) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestChatClosedStore(t *testing.T) {
	env := newTestServer(t, Config{})
	require.NoError(t, env.store.Close())

	w := env.do(t, http.MethodPost, "/api/chat", `{"message":"hola"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "conversation unavailable", decode[chatResponse](t, w).Error)
}

func TestEligibilityEndpoint(t *testing.T) {
	env := newTestServer(t, Config{})

	tests := []struct {
		reference string
		eligible  bool
		code      returns.Code
	}{
		{"P-1003", true, returns.CodeEligible},
		{"p-1008", false, returns.CodeWindowExpired},
		{"P-9999", false, returns.CodeNotFound},
		{"abc", false, returns.CodeInvalidFormat},
		{"", false, returns.CodeMissingReference},
	}
	for _, tt := range tests {
		t.Run(tt.reference, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/returns/eligibility", `{"reference":"`+tt.reference+`"}`)
			require.Equal(t, http.StatusOK, w.Code)
			res := decode[returns.EligibilityResult](t, w)
			assert.Equal(t, tt.eligible, res.Eligible)
			assert.Equal(t, tt.code, res.Code)
		})
	}

	w := env.do(t, http.MethodPost, "/api/returns/eligibility", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEligibilityEndpointIsStateless(t *testing.T) {
	env := newTestServer(t, Config{})

	env.do(t, http.MethodPost, "/api/returns/eligibility", `{"reference":"P-1003"}`)

	events, err := env.audit.Query(context.Background(), audit.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAuditAndMetricsMounted(t *testing.T) {
	env := newTestServer(t, Config{})
	env.do(t, http.MethodPost, "/api/chat", `{"conversation_id":"web-x","message":"P-1003"}`)

	w := env.do(t, http.MethodGet, "/api/audit/?conversation=web-x", "")
	require.Equal(t, http.StatusOK, w.Code)
	events := decode[[]audit.Event](t, w)
	assert.NotEmpty(t, events)

	w = env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ecobot_eligibility_checks_total")
}

func TestBotRoutes(t *testing.T) {
	env := newTestServer(t, Config{})

	// Slack is disabled in the fixture.
	w := env.do(t, http.MethodPost, "/api/bots/slack/events", `{"type":"url_verification"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/bots/teams/activity",
		`{"type":"message","text":"P-1003","from":{"id":"u1"},"conversation":{"id":"c1"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["text"], "P-1003")

	state, err := env.store.Load(context.Background(), "bot-teams-c1")
	require.NoError(t, err)
	assert.Equal(t, flow.PhaseAwaitingConfirmation, state.Phase())
}

func TestWebSocketChat(t *testing.T) {
	env := newTestServer(t, Config{AllowedOrigins: []string{"*"}})
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var ready chatResponse
	require.NoError(t, conn.ReadJSON(&ready))
	assert.Equal(t, "ready", ready.Type)
	require.NotEmpty(t, ready.ConversationID)

	require.NoError(t, conn.WriteJSON(chatRequest{Message: "P-1003"}))
	var reply chatResponse
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "reply", reply.Type)
	assert.Equal(t, ready.ConversationID, reply.ConversationID)
	assert.Equal(t, "awaiting_confirmation", reply.Phase)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"message":""}`)))
	var bad chatResponse
	require.NoError(t, conn.ReadJSON(&bad))
	assert.Equal(t, "error", bad.Type)

	require.NoError(t, conn.WriteJSON(chatRequest{Message: "no"}))
	var cancelled chatResponse
	require.NoError(t, conn.ReadJSON(&cancelled))
	assert.Equal(t, "idle", cancelled.Phase)
}

func TestChatRejectsOtherChannelConversations(t *testing.T) {
	env := newTestServer(t, Config{})
	ctx := context.Background()
	pending := flow.StartConfirmation(flow.State{}, "DEV-bot-1")
	botID := bots.ConversationID(bots.IncomingMessage{Platform: bots.PlatformSlack, ChannelID: "C1", UserID: "U1", Shared: true})
	require.NoError(t, env.store.Save(ctx, botID, pending))

	for _, id := range []string{botID, "mcp-1", "cli-1", "webx"} {
		t.Run(id, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/chat/"+id, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotContains(t, w.Body.String(), "DEV-bot-1")

			w = env.do(t, http.MethodPost, "/api/chat", `{"conversation_id":"`+id+`","message":"si"}`)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			w = env.do(t, http.MethodDelete, "/api/chat/"+id, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	state, err := env.store.Load(ctx, botID)
	require.NoError(t, err)
	assert.Equal(t, pending, state)
	assert.Zero(t, testutil.ToFloat64(env.metrics.ConfirmationDecisions.WithLabelValues("yes")))

	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat?conversation_id=" + botID
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	env := newTestServer(t, Config{})
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

func TestCheckOrigin(t *testing.T) {
	srv := &Server{cfg: Config{}}
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}
	assert.True(t, srv.checkOrigin(req("")))
	assert.True(t, srv.checkOrigin(req("http://localhost:5173")))
	assert.False(t, srv.checkOrigin(req("https://shop.example")))

	srv.cfg.AllowedOrigins = []string{"https://shop.example"}
	assert.True(t, srv.checkOrigin(req("https://shop.example")))
	assert.False(t, srv.checkOrigin(req("http://localhost:5173")))
}
