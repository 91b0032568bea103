package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"match-reward-engine/internal/app/submission"
	"match-reward-engine/internal/match"
	"match-reward-engine/internal/security"

	"github.com/rs/zerolog/log"
)

const maxSubmitBodyBytes = 64 << 10

type MatchHandlers struct {
	svc SubmissionService
}

func NewMatchHandlers(svc SubmissionService) *MatchHandlers {
	return &MatchHandlers{svc: svc}
}

// Submit answers 200 for every accepted or rejected match. Only malformed
// input (400) and an unreachable store (503) use other statuses.
func (h *MatchHandlers) Submit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricSubmitRequestsTotal.Add(1)
		var sub match.Submission
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBodyBytes)).Decode(&sub); err != nil {
			metricSubmitBadRequestTotal.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		resp, err := h.svc.Submit(r.Context(), sub)
		if err != nil {
			writeSubmissionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func (h *MatchHandlers) Quote() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricQuoteRequestsTotal.Add(1)
		var req submission.QuoteRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBodyBytes)).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		calc, err := h.svc.Quote(req)
		if err != nil {
			writeSubmissionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, calc)
	}
}

func writeSubmissionError(w http.ResponseWriter, err error) {
	var se *submission.StructuralError
	switch {
	case errors.As(err, &se):
		metricSubmitBadRequestTotal.Add(1)
		WriteJSON(w, http.StatusBadRequest, map[string]any{"error": se.Code, "field": se.Field})
	case errors.Is(err, security.ErrStoreUnavailable):
		metricSubmitUnavailableTotal.Add(1)
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "store_unavailable", "retryable": true})
	default:
		log.Error().Err(err).Msg("submission failed")
		WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
	}
}
