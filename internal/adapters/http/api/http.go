// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/pedalrank/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
// *service.Service satisfies it.
type Dependencies interface {
	StatsProvider
	MatchupDependencies
	BattleDependencies
	LeaderboardDependencies
	AnalysisDependencies
	AdminDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	matchupHandler     *MatchupHandler
	battleHandler      *BattleHandler
	leaderboardHandler *LeaderboardHandler
	analysisHandler    *AnalysisHandler
	adminHandler       *AdminHandler
	log                logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for internal errors.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{log: logger.Get().Named("api")}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.matchupHandler = NewMatchupHandler(deps, s.log)
	s.battleHandler = NewBattleHandler(deps, s.log)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.log)
	s.analysisHandler = NewAnalysisHandler(deps, s.log)
	s.adminHandler = NewAdminHandler(deps, s.log)
	return s
}

// Register attaches all API routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)
	r.Get("/brands", s.analysisHandler.HandleGetBrands)
	r.Get("/matchup", s.matchupHandler.HandleGetMatchup)
	r.Post("/votes", s.matchupHandler.HandlePostVote)
	r.Post("/skip", s.matchupHandler.HandleSkip)
	r.Get("/leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
	r.Get("/rank/{id}", s.leaderboardHandler.HandleGetRank)
	r.Get("/history", s.analysisHandler.HandleGetHistory)
	r.Get("/analysis", s.analysisHandler.HandleGetAnalysis)
	r.Get("/search", s.analysisHandler.HandleSearch)
	r.Route("/battles/{brandA}/{brandB}", func(r chi.Router) {
		r.Get("/matchup", s.battleHandler.HandleGetMatchup)
		r.Post("/votes", s.battleHandler.HandlePostVote)
	})
	r.Post("/admin/reset", s.adminHandler.HandleReset)
}

// Router returns a chi router with the standard middleware stack, the API
// routes and any extra registrations such as docs or the Redis proxy.
func (s *Server) Router(ctx context.Context, extra ...func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	s.Register(ctx, r)
	for _, fn := range extra {
		fn(r)
	}
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail writes err with the status it maps to. Server errors are logged.
func fail(ctx context.Context, log logger.Logger, w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", logger.Error(err))
	}
	writeError(w, status, code, err)
}
