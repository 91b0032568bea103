package httptransport

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"match-reward-engine/internal/app/submission"
	"match-reward-engine/internal/config"
	"match-reward-engine/internal/match"
	"match-reward-engine/internal/reward"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type SubmissionService interface {
	Submit(ctx context.Context, sub match.Submission) (*submission.SubmitResponse, error)
	Quote(req submission.QuoteRequest) (reward.Calculation, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Submissions SubmissionService
	Store       AdminStore
	// RateLog is pinged by /healthz when the rate limit runs on its own
	// backend.
	RateLog Pinger
}

func NewRouter(deps Deps, cfg config.ServerConfig) *chi.Mux {
	matchHandlers := NewMatchHandlers(deps.Submissions)
	adminHandlers := NewAdminHandlers(deps.Store, deps.RateLog)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Post("/matches/submit", matchHandlers.Submit())
		r.With(BodyCaptureMiddleware(4096)).Post("/rewards/quote", matchHandlers.Quote())

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Get("/matches", adminHandlers.Matches())
			r.Get("/audit", adminHandlers.Audit())
			r.Get("/usage/{wallet}", adminHandlers.Usage())
			r.Get("/debug/vars", expvar.Handler().ServeHTTP)
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
