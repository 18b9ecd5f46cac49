package fulfillment

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// FailureSuffix marks return ids the simulated gateway refuses.
const FailureSuffix = "-ERROR"

// RefundService simulates the payment gateway.
type RefundService struct {
	logger *zap.Logger
}

// NewRefundService creates a RefundService.
func NewRefundService(logger *zap.Logger) *RefundService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefundService{logger: logger}
}

// Process starts the refund for a confirmed return.
func (s *RefundService) Process(ctx context.Context, returnID string) RefundResult {
	id := strings.TrimSpace(returnID)
	if id == "" {
		return RefundResult{Message: "Falta id_devolucion para procesar el reembolso."}
	}
	if strings.HasSuffix(id, FailureSuffix) {
		s.logger.Warn("payment gateway unavailable", zap.String("return_id", id))
		return RefundResult{
			Message: fmt.Sprintf("Error: No se pudo conectar con la pasarela de pagos para el ID %s. Intente más tarde.", id),
		}
	}

	s.logger.Info("refund initiated", zap.String("return_id", id))
	return RefundResult{
		Success: true,
		Message: fmt.Sprintf("Reembolso procesado. El monto correspondiente a la devolución %s se ha iniciado y se reflejará en la cuenta del cliente en 3-5 días hábiles.", id),
	}
}
