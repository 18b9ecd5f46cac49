package server

import (
	"net/http"
)

type eligibilityRequest struct {
	Reference string `json:"reference"`
}

// handleEligibility evaluates a reference without touching any
// conversation. Business refusals are 200 responses with eligible=false.
func (s *Server) handleEligibility(w http.ResponseWriter, r *http.Request) {
	var req eligibilityRequest
	if !decodeRequest(w, r, eligibilitySchema, &req) {
		return
	}
	res := s.evaluator.Evaluate(req.Reference)
	s.metrics.ObserveEligibility(string(res.Code))
	writeJSON(w, http.StatusOK, res)
}
