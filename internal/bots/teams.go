package bots

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// maxActivityBytes bounds a Bot Framework activity body.
const maxActivityBytes = 1 << 20

// welcomeReply greets customers when the bot joins their chat.
const welcomeReply = "¡Hola! 🌱 Soy el asistente de devoluciones de EcoMarket. " +
	"Escribe tu número de pedido (P-XXXX) o tu número de identificación (8 dígitos) para revisar una devolución, " +
	"o pregúntame sobre nuestras políticas. Escribe **reiniciar** para empezar de nuevo."

// TeamsHandler handles incoming Microsoft Teams bot activities.
type TeamsHandler struct {
	gateway *Gateway
	logger  *zap.Logger
}

// NewTeamsHandler creates a new Teams activity handler.
func NewTeamsHandler(gateway *Gateway, logger *zap.Logger) *TeamsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeamsHandler{gateway: gateway, logger: logger}
}

var teamsMentionPattern = regexp.MustCompile(`<at>[^<]*</at>`)

type teamsActivity struct {
	Type         string            `json:"type"`
	ID           string            `json:"id"`
	Timestamp    string            `json:"timestamp"`
	Text         string            `json:"text"`
	From         teamsAccount      `json:"from"`
	Recipient    teamsAccount      `json:"recipient"`
	Conversation teamsConversation `json:"conversation"`
	MembersAdded []teamsAccount    `json:"membersAdded"`
	ReplyToID    string            `json:"replyToId"`
}

type teamsAccount struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type teamsConversation struct {
	ID string `json:"id"`
	// "personal", "groupChat" or "channel".
	ConversationType string `json:"conversationType"`
}

func (c teamsConversation) shared() bool {
	return c.ConversationType == "groupChat" || c.ConversationType == "channel"
}

// HandleActivity answers message activities through the gateway and greets
// customers who add the bot to a chat. Other activities are acknowledged.
func (h *TeamsHandler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxActivityBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	var activity teamsActivity
	if err := json.Unmarshal(body, &activity); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	switch activity.Type {
	case "message":
		h.handleMessage(w, r, activity)
	case "conversationUpdate":
		if customerJoined(activity) {
			writeTeamsReply(w, welcomeReply, activity.ID)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (h *TeamsHandler) handleMessage(w http.ResponseWriter, r *http.Request, activity teamsActivity) {
	msg := IncomingMessage{
		Platform:  PlatformTeams,
		ChannelID: activity.Conversation.ID,
		UserID:    activity.From.ID,
		UserName:  activity.From.Name,
		Text:      strings.TrimSpace(teamsMentionPattern.ReplaceAllString(activity.Text, "")),
		ThreadID:  activity.ReplyToID,
		Timestamp: activity.Timestamp,
		Shared:    activity.Conversation.shared(),
	}

	resp, err := h.gateway.Process(r.Context(), msg)
	if err != nil {
		h.logger.Error("teams activity", zap.String("conversation", msg.ChannelID), zap.Error(err))
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}
	writeTeamsReply(w, resp.Text, activity.ID)
}

// customerJoined reports whether someone other than the bot was added.
func customerJoined(a teamsActivity) bool {
	for _, m := range a.MembersAdded {
		if m.ID != "" && m.ID != a.Recipient.ID {
			return true
		}
	}
	return false
}

func writeTeamsReply(w http.ResponseWriter, text, replyTo string) {
	reply := map[string]string{
		"type":       "message",
		"textFormat": "markdown",
		"text":       text,
	}
	if replyTo != "" {
		reply["replyToId"] = replyTo
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reply)
}
