package api

import (
	"context"
	"net/http"

	"github.com/okian/pedalrank/internal/domain/analysis"
	"github.com/okian/pedalrank/pkg/logger"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, limit int, brands []string) ([]analysis.Standing, error)
	Rank(ctx context.Context, id string) (analysis.Standing, error)
}

// LeaderboardHandler handles leaderboard and rank requests.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
	log  logger.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, log logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps, log: log}
}

// HandleGetLeaderboard handles GET /leaderboard?limit=N&brands=a,b requests.
// Without a limit the service maximum applies.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	n, err := queryInt(op, r, "limit")
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	entries, err := h.deps.Leaderboard(r.Context(), n, queryList(r, "brands"))
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleGetRank handles GET /rank/{id} requests.
func (h *LeaderboardHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	id := pathParam(r, "id")
	if id == "" {
		fail(r.Context(), h.log, w, NewKind(op, ErrBadRequest))
		return
	}
	entry, err := h.deps.Rank(r.Context(), id)
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
