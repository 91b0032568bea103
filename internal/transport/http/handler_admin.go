package httptransport

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"match-reward-engine/internal/match"
	"match-reward-engine/internal/security"
	"match-reward-engine/internal/store"

	"github.com/go-chi/chi/v5"
)

const defaultUsageDays = 7

type AdminStore interface {
	Ping(ctx context.Context) error
	ListProcessedMatches(ctx context.Context, wallet string, limit, offset int) ([]store.ProcessedMatch, error)
	ListAudit(ctx context.Context, f store.AuditFilter, limit, offset int) ([]store.AuditRecord, error)
	ListDailyUsage(ctx context.Context, wallet string, since time.Time) ([]store.UsageTotal, error)
}

type AdminHandlers struct {
	store   AdminStore
	rateLog Pinger
	now     func() time.Time
}

// NewAdminHandlers accepts a nil rateLog when rate entries live in the store.
func NewAdminHandlers(st AdminStore, rateLog Pinger) *AdminHandlers {
	return &AdminHandlers{store: st, rateLog: rateLog, now: time.Now}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"ok": true, "db": "up"}
		status := http.StatusOK
		if err := h.store.Ping(r.Context()); err != nil {
			body["ok"], body["db"] = false, "down"
			status = http.StatusServiceUnavailable
		}
		if h.rateLog != nil {
			// The rate limit fails open, so a down backend degrades but
			// does not fail the health check.
			body["rate_limit"] = "up"
			if err := h.rateLog.Ping(r.Context()); err != nil {
				body["rate_limit"] = "degraded"
			}
		}
		WriteJSON(w, status, body)
	}
}

func (h *AdminHandlers) Matches() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		items, err := h.store.ListProcessedMatches(r.Context(), security.CanonicalWallet(r.URL.Query().Get("wallet")), limit, offset)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": items, "limit": limit, "offset": offset})
	}
}

func (h *AdminHandlers) Audit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		f := store.AuditFilter{Wallet: security.CanonicalWallet(r.URL.Query().Get("wallet")), MatchID: r.URL.Query().Get("match_id")}
		items, err := h.store.ListAudit(r.Context(), f, limit, offset)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": items, "limit": limit, "offset": offset})
	}
}

func (h *AdminHandlers) Usage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wallet := chi.URLParam(r, "wallet")
		if !security.ValidWallet(wallet) {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_wallet")
			return
		}
		wallet = security.CanonicalWallet(wallet)
		days := defaultUsageDays
		if v := r.URL.Query().Get("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 90 {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_days")
				return
			}
			days = n
		}
		since := match.DayBucket(h.now()).AddDate(0, 0, -(days - 1))
		items, err := h.store.ListDailyUsage(r.Context(), wallet, since)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"wallet": wallet, "since": since, "items": items})
	}
}
