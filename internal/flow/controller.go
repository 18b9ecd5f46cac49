package flow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ecomarket/ecobot/internal/fulfillment"
)

// AddressPlaceholder is sent as the origin address. Addresses are not
// collected in the conversation; the carrier resolves them from the order.
const AddressPlaceholder = "Dirección verificada en sistema"

const (
	replyCancelled = "Perfecto 😊 No realizaremos la devolución. Quedo atento si necesitas ayuda con otra consulta."
	replyReask     = "Solo para confirmar 😊 ¿Deseas continuar con la devolución? (sí/no)"
)

// Outcome describes what HandleConfirmation did. Applicable is false when
// no confirmation was pending; nothing else is set in that case.
type Outcome struct {
	Applicable bool
	Decision   Decision
	ReturnID   string
	Reply      string
	Label      *fulfillment.LabelResult
	Refund     *fulfillment.RefundResult
}

// Controller drives the confirmation step.
type Controller struct {
	labels  fulfillment.Labeler
	refunds fulfillment.Refunder
	logger  *zap.Logger
}

// NewController creates a Controller.
func NewController(labels fulfillment.Labeler, refunds fulfillment.Refunder, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{labels: labels, refunds: refunds, logger: logger}
}

// HandleConfirmation applies a yes/no utterance to s and returns the outcome
// together with the next state.
func (c *Controller) HandleConfirmation(ctx context.Context, s State, utterance string) (Outcome, State) {
	if s.Phase() != PhaseAwaitingConfirmation {
		return Outcome{}, s
	}

	out := Outcome{Applicable: true, Decision: Classify(utterance), ReturnID: s.PendingReturnID}
	switch out.Decision {
	case DecisionYes:
		// Label and refund are independent best-effort calls: a label failure
		// does not skip the refund, and a refund failure does not revoke the label.
		label := c.labels.Generate(ctx, s.PendingReturnID, AddressPlaceholder)
		refund := c.refunds.Process(ctx, s.PendingReturnID)
		out.Label, out.Refund = &label, &refund
		out.Reply = fmt.Sprintf("✅ ¡Tu devolución ha sido confirmada!\n\n📦 %s\n💰 %s\n\n¿Puedo ayudarte con algo más? ♻️",
			label.Message, refund.Message)
		c.logger.Info("return confirmed",
			zap.String("return_id", s.PendingReturnID),
			zap.Bool("label_ok", label.Success),
			zap.Bool("refund_ok", refund.Success))
		return out, Reset()

	case DecisionNo:
		out.Reply = replyCancelled
		c.logger.Info("return cancelled", zap.String("return_id", s.PendingReturnID))
		return out, Reset()

	default:
		out.Reply = replyReask
		return out, s
	}
}
