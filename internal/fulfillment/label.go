package fulfillment

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	// DefaultLabelBaseURL is where simulated label PDFs are published.
	DefaultLabelBaseURL = "https://ecomarket.com/etiquetas/"

	minAddressLength = 5
	trackingPrefix   = "TRK-"
)

// LabelService simulates the carrier integration.
type LabelService struct {
	baseURL string
	logger  *zap.Logger
}

// NewLabelService creates a LabelService. An empty baseURL selects
// DefaultLabelBaseURL.
func NewLabelService(baseURL string, logger *zap.Logger) *LabelService {
	if baseURL == "" {
		baseURL = DefaultLabelBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LabelService{baseURL: baseURL, logger: logger}
}

// Generate issues a label for the return. It fails when the return id is
// blank or the origin address is shorter than five characters.
func (s *LabelService) Generate(ctx context.Context, returnID, originAddress string) LabelResult {
	id := strings.TrimSpace(returnID)
	addr := strings.TrimSpace(originAddress)

	if id == "" {
		return LabelResult{Message: "Falta id_devolucion"}
	}
	if utf8.RuneCountInString(addr) < minAddressLength {
		s.logger.Warn("label rejected: short address", zap.String("return_id", id))
		return LabelResult{Message: "La dirección de origen es inválida o incompleta. Por favor, solicite una dirección completa."}
	}

	tracking := TrackingID(id)
	url := s.baseURL + id + ".pdf"
	s.logger.Info("label generated", zap.String("return_id", id), zap.String("tracking_id", tracking))

	return LabelResult{
		Success:    true,
		TrackingID: tracking,
		LabelURL:   url,
		Message: fmt.Sprintf("Etiqueta generada. El tracking es %s. El PDF de la etiqueta se ha enviado al cliente (URL simulada: %s).",
			tracking, url),
	}
}

// TrackingID derives the carrier tracking id from characters 4..12 of the
// return id, clamped to its length.
func TrackingID(returnID string) string {
	start, end := 4, 12
	if start > len(returnID) {
		start = len(returnID)
	}
	if end > len(returnID) {
		end = len(returnID)
	}
	return trackingPrefix + returnID[start:end]
}
