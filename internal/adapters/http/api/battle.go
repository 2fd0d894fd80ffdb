package api

import (
	"context"
	"net/http"

	service "github.com/okian/pedalrank/internal/app"
	"github.com/okian/pedalrank/pkg/logger"
)

// BattleDependencies defines the brand battle operations.
type BattleDependencies interface {
	NextBattleMatchup(ctx context.Context, brandA, brandB string) (service.Matchup, error)
	BattleVote(ctx context.Context, brandA, brandB string, req service.VoteRequest) (service.VoteResult, error)
}

// BattleHandler serves brand battles.
type BattleHandler struct {
	deps BattleDependencies
	log  logger.Logger
}

// NewBattleHandler creates a new battle handler.
func NewBattleHandler(deps BattleDependencies, log logger.Logger) *BattleHandler {
	return &BattleHandler{deps: deps, log: log}
}

// HandleGetMatchup handles GET /battles/{brandA}/{brandB}/matchup requests.
func (h *BattleHandler) HandleGetMatchup(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_battle_matchup"
	m, err := h.deps.NextBattleMatchup(r.Context(), pathParam(r, "brandA"), pathParam(r, "brandB"))
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandlePostVote handles POST /battles/{brandA}/{brandB}/votes requests.
func (h *BattleHandler) HandlePostVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_battle_vote"
	req, err := decodeVote(op, w, r)
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	res, err := h.deps.BattleVote(r.Context(), pathParam(r, "brandA"), pathParam(r, "brandB"), req.toService())
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
