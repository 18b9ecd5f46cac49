package bots

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds the handling of one platform message.
const DefaultTimeout = 25 * time.Second

// MessageHandler processes incoming messages and produces responses.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg IncomingMessage) (*OutgoingMessage, error)
}

// Gateway is the platform-agnostic bot gateway that routes messages
// to a handler for processing.
type Gateway struct {
	handler MessageHandler
	logger  *zap.Logger
	timeout time.Duration
}

// NewGateway creates a new Gateway with the given message handler.
func NewGateway(handler MessageHandler, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{handler: handler, logger: logger, timeout: DefaultTimeout}
}

// Process routes an incoming message through the handler.
func (g *Gateway) Process(ctx context.Context, msg IncomingMessage) (*OutgoingMessage, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.handler.HandleMessage(ctx, msg)
	g.logger.Debug("bot message processed",
		zap.String("platform", string(msg.Platform)),
		zap.String("channel", msg.ChannelID),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))
	return resp, err
}
