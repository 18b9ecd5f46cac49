package server

import (
	"errors"
	"net/http"
	"regexp"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ecomarket/ecobot/internal/assistant"
	"github.com/ecomarket/ecobot/internal/returns"
	"github.com/ecomarket/ecobot/internal/router"
	"github.com/ecomarket/ecobot/internal/session"
)

// webChannel prefixes the ids of conversations started over HTTP.
const webChannel = "web"

// webIDPattern matches the conversation ids HTTP clients may use. Ids of
// other channels (bots, MCP, CLI) are never reachable from here.
var webIDPattern = regexp.MustCompile(`^web-[A-Za-z0-9_.:-]{1,124}$`)

const errForeignConversation = "conversation_id must be a web conversation"

// webConversationID reports whether id may be used by an HTTP client.
func webConversationID(id string) bool {
	return webIDPattern.MatchString(id)
}

// chatRequest is the body of POST /api/chat and of every WebSocket frame
// sent by the client.
type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// chatResponse carries one assistant reply.
type chatResponse struct {
	Type           string                     `json:"type,omitempty"` // WebSocket only: "ready", "reply" or "error"
	ConversationID string                     `json:"conversation_id"`
	Reply          string                     `json:"reply,omitempty"`
	HTML           string                     `json:"html,omitempty"`
	Intent         router.Kind                `json:"intent,omitempty"`
	Phase          string                     `json:"phase,omitempty"`
	Eligibility    *returns.EligibilityResult `json:"eligibility,omitempty"`
	Error          string                     `json:"error,omitempty"`
}

// stateResponse describes a conversation's position in the return flow.
type stateResponse struct {
	ConversationID  string `json:"conversation_id"`
	Phase           string `json:"phase"`
	PendingReturnID string `json:"pending_return_id,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeRequest(w, r, chatSchema, &req) {
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = assistant.NewID(webChannel)
	}

	resp, status := s.exchange(r, req)
	writeJSON(w, status, resp)
}

// exchange runs one message through the conversation and builds the reply.
func (s *Server) exchange(r *http.Request, req chatRequest) (chatResponse, int) {
	ctx := r.Context()
	reply, err := s.conversations.Handle(ctx, req.ConversationID, req.Message)
	if err != nil {
		s.logger.Error("chat message", zap.String("conversation", req.ConversationID), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrClosed) {
			status = http.StatusServiceUnavailable
		}
		return chatResponse{ConversationID: req.ConversationID, Error: "conversation unavailable"}, status
	}

	resp := chatResponse{
		ConversationID: req.ConversationID,
		Reply:          reply.Text,
		Intent:         reply.Intent,
		Eligibility:    reply.Eligibility,
	}
	if html, err := s.renderer.HTML(reply.Text); err == nil {
		resp.HTML = html
	} else {
		s.logger.Warn("rendering reply", zap.Error(err))
	}
	if state, err := s.conversations.State(ctx, req.ConversationID); err == nil {
		resp.Phase = state.Phase().String()
	}
	return resp, http.StatusOK
}

func (s *Server) handleChatState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !webConversationID(id) {
		writeError(w, http.StatusBadRequest, errForeignConversation)
		return
	}
	state, err := s.conversations.State(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{
		ConversationID:  id,
		Phase:           state.Phase().String(),
		PendingReturnID: state.PendingReturnID,
	})
}

func (s *Server) handleChatEnd(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !webConversationID(id) {
		writeError(w, http.StatusBadRequest, errForeignConversation)
		return
	}
	if err := s.conversations.End(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	allowed := s.allowedOrigins()
	if slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
		return true
	}
	// Loopback defaults allow any port.
	for _, prefix := range []string{"http://localhost:", "http://127.0.0.1:"} {
		if slices.Contains(allowed, prefix+"*") && strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

// handleWebSocket keeps one conversation per connection. The client may
// resume an existing conversation with ?conversation_id=.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("conversation_id")
	if id != "" && !webConversationID(id) {
		writeError(w, http.StatusBadRequest, errForeignConversation)
		return
	}
	if id == "" {
		id = assistant.NewID(webChannel)
	}

	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxBodyBytes)

	s.send(conn, chatResponse{Type: "ready", ConversationID: id})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read", zap.Error(err))
			}
			return
		}

		var req chatRequest
		if err := validate(chatSchema, msg, &req); err != nil {
			s.send(conn, chatResponse{Type: "error", ConversationID: id, Error: err.Error()})
			continue
		}
		req.ConversationID = id

		resp, status := s.exchange(r, req)
		resp.Type = "reply"
		if status != http.StatusOK {
			resp.Type = "error"
		}
		s.send(conn, resp)
	}
}

func (s *Server) send(conn *websocket.Conn, resp chatResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		s.logger.Warn("websocket write", zap.Error(err))
	}
}
