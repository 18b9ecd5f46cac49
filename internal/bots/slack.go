package bots

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// maxSignatureAge is how old a signed Slack request may be.
const maxSignatureAge = 5 * time.Minute

// SlackHandler handles incoming Slack webhook events.
type SlackHandler struct {
	gateway       *Gateway
	signingSecret string
	logger        *zap.Logger
	now           func() time.Time
	seen          *seenEvents
}

// NewSlackHandler creates a new Slack event handler. An empty signing
// secret disables signature verification.
func NewSlackHandler(gateway *Gateway, signingSecret string, logger *zap.Logger) *SlackHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlackHandler{
		gateway:       gateway,
		signingSecret: signingSecret,
		logger:        logger,
		now:           time.Now,
		seen:          newSeenEvents(eventDedupWindow),
	}
}

// slackEvent represents the top-level Slack event payload.
type slackEvent struct {
	Type      string          `json:"type"`
	Token     string          `json:"token"`
	Challenge string          `json:"challenge"`
	Event     slackInnerEvent `json:"event"`
}

// slackInnerEvent represents the inner event in a Slack event_callback.
type slackInnerEvent struct {
	Type        string `json:"type"`
	Subtype     string `json:"subtype"`
	User        string `json:"user"`
	Text        string `json:"text"`
	Channel     string `json:"channel"`
	TS          string `json:"ts"`
	ThreadTS    string `json:"thread_ts"`
	ChannelType string `json:"channel_type"`
	BotID       string `json:"bot_id"`
}

// HandleEvent handles incoming Slack events (HTTP POST).
func (h *SlackHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Verify Slack request signature if signing secret is configured.
	if h.signingSecret != "" {
		if !h.verifySignature(r, body) {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var event slackEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "url_verification":
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"challenge": event.Challenge})
		return

	case "event_callback":
		// A retried delivery was already handled; answering it again
		// would apply the same yes/no twice.
		if r.Header.Get("X-Slack-Retry-Num") != "" {
			w.WriteHeader(http.StatusOK)
			return
		}
		// Skip bot messages to avoid loops.
		if event.Event.BotID != "" || event.Event.Subtype == "bot_message" {
			w.WriteHeader(http.StatusOK)
			return
		}
		// Only handle message events.
		if event.Event.Type != "message" && event.Event.Type != "app_mention" {
			w.WriteHeader(http.StatusOK)
			return
		}
		// A channel mention arrives both as "message" and "app_mention"
		// with the same ts; only the first one is answered.
		if !h.seen.first(event.Event.Channel+":"+event.Event.TS, h.now()) {
			w.WriteHeader(http.StatusOK)
			return
		}

		msg := IncomingMessage{
			Platform:  PlatformSlack,
			ChannelID: event.Event.Channel,
			UserID:    event.Event.User,
			Text:      stripMentions(event.Event.Text),
			ThreadID:  event.Event.ThreadTS,
			Timestamp: event.Event.TS,
			Shared:    event.Event.ChannelType != "im",
		}

		resp, err := h.gateway.Process(r.Context(), msg)
		if err != nil {
			h.logger.Error("slack event", zap.String("channel", msg.ChannelID), zap.Error(err))
			http.Error(w, "processing error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(formatSlackMessage(resp))
		return

	default:
		w.WriteHeader(http.StatusOK)
	}
}

// verifySignature verifies the Slack request signature using HMAC-SHA256.
func (h *SlackHandler) verifySignature(r *http.Request, body []byte) bool {
	timestamp := r.Header.Get("X-Slack-Request-Timestamp")
	signature := r.Header.Get("X-Slack-Signature")

	if timestamp == "" || signature == "" {
		return false
	}
	if !verifyTimestamp(timestamp, h.now()) {
		return false
	}

	return hmac.Equal([]byte(signSlack(h.signingSecret, timestamp, body)), []byte(signature))
}

// signSlack computes the v0 signature Slack sends for a request.
func signSlack(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

// verifyTimestamp checks that the request timestamp is within 5 minutes of now.
func verifyTimestamp(timestamp string, now time.Time) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	diff := now.Unix() - ts
	if diff < 0 {
		diff = -diff
	}
	return diff <= int64(maxSignatureAge/time.Second)
}

var (
	mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+>`)
	boldPattern    = regexp.MustCompile(`\*\*(.+?)\*\*`)
)

// stripMentions removes user mentions such as <@U123ABC>.
func stripMentions(text string) string {
	return strings.TrimSpace(mentionPattern.ReplaceAllString(text, ""))
}

// slackResponse represents a simple Slack response message.
type slackResponse struct {
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// formatSlackMessage converts a reply to Slack mrkdwn.
func formatSlackMessage(msg *OutgoingMessage) *slackResponse {
	resp := &slackResponse{
		Channel: msg.ChannelID,
		Text:    boldPattern.ReplaceAllString(msg.Text, "*$1*"),
	}
	if msg.ThreadID != "" {
		resp.ThreadTS = msg.ThreadID
	}

	if strings.Contains(resp.Text, "\n") {
		lines := strings.Split(resp.Text, "\n")
		for i, line := range lines {
			if strings.HasPrefix(line, "- ") {
				lines[i] = "• " + line[2:]
			}
		}
		resp.Text = strings.Join(lines, "\n")
	}

	return resp
}

// eventDedupWindow is how long a Slack message ts is remembered.
const eventDedupWindow = 5 * time.Minute

// seenEvents remembers recently handled event keys.
type seenEvents struct {
	mu     sync.Mutex
	window time.Duration
	keys   map[string]time.Time
}

func newSeenEvents(window time.Duration) *seenEvents {
	return &seenEvents{window: window, keys: make(map[string]time.Time)}
}

// first records key and reports whether it was not seen within the window.
// Keys ending in ":" (no ts) are always new.
func (s *seenEvents) first(key string, now time.Time) bool {
	if strings.HasSuffix(key, ":") {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, at := range s.keys {
		if now.Sub(at) >= s.window {
			delete(s.keys, k)
		}
	}
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = now
	return true
}
