package bots

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ecomarket/ecobot/internal/assistant"
)

const (
	emptyMessageReply = "No recibí ningún texto. Escribe tu número de pedido (por ejemplo P-1001) o tu pregunta."
	resetReply        = "Listo, empecemos de nuevo. ¿En qué puedo ayudarte?"
	failureReply      = "Lo siento, ocurrió un error procesando tu mensaje. Intenta de nuevo en unos minutos."
)

// resetCommands end the current conversation.
var resetCommands = map[string]bool{
	"reiniciar": true,
	"reset":     true,
	"/reset":    true,
}

// Conversations is the part of assistant.Conversations the bots use.
type Conversations interface {
	Handle(ctx context.Context, conversationID, utterance string) (assistant.Reply, error)
	End(ctx context.Context, conversationID string) error
}

// Processor connects incoming bot messages to the returns assistant. A
// direct chat is one conversation; in shared channels every user has one.
type Processor struct {
	conversations Conversations
	logger        *zap.Logger
}

// NewProcessor creates a new message processor.
func NewProcessor(conversations Conversations, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		conversations: conversations,
		logger:        logger,
	}
}

// ConversationID returns the conversation a message belongs to.
func ConversationID(msg IncomingMessage) string {
	if msg.Shared && msg.UserID != "" {
		return fmt.Sprintf("bot-%s-%s-%s", msg.Platform, msg.ChannelID, msg.UserID)
	}
	return fmt.Sprintf("bot-%s-%s", msg.Platform, msg.ChannelID)
}

// HandleMessage processes an incoming message and returns a response.
// Assistant failures become an apology rather than an error so the
// platform still gets a reply.
func (p *Processor) HandleMessage(ctx context.Context, msg IncomingMessage) (*OutgoingMessage, error) {
	out := &OutgoingMessage{ChannelID: msg.ChannelID, ThreadID: msg.ThreadID}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		out.Text = emptyMessageReply
		return out, nil
	}

	id := ConversationID(msg)
	if resetCommands[strings.ToLower(text)] {
		if err := p.conversations.End(ctx, id); err != nil {
			p.logger.Warn("ending conversation", zap.String("conversation", id), zap.Error(err))
		}
		out.Text = resetReply
		return out, nil
	}

	reply, err := p.conversations.Handle(ctx, id, text)
	if err != nil {
		p.logger.Error("handling bot message",
			zap.String("platform", string(msg.Platform)),
			zap.String("conversation", id),
			zap.Error(err))
		out.Text = failureReply
		return out, nil
	}

	out.Text = reply.Text
	return out, nil
}
