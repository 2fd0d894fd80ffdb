package api

import (
	"context"
	"net/http"

	service "github.com/okian/pedalrank/internal/app"
	"github.com/okian/pedalrank/pkg/logger"
)

// MatchupDependencies defines the global voting operations.
type MatchupDependencies interface {
	NextMatchup(ctx context.Context, brands []string) (service.Matchup, error)
	Vote(ctx context.Context, req service.VoteRequest) (service.VoteResult, error)
	Skip(ctx context.Context) error
}

// MatchupHandler serves matchups and accepts votes.
type MatchupHandler struct {
	deps MatchupDependencies
	log  logger.Logger
}

// NewMatchupHandler creates a new matchup handler.
func NewMatchupHandler(deps MatchupDependencies, log logger.Logger) *MatchupHandler {
	return &MatchupHandler{deps: deps, log: log}
}

// HandleGetMatchup handles GET /matchup?brands=a,b requests.
func (h *MatchupHandler) HandleGetMatchup(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_matchup"
	m, err := h.deps.NextMatchup(r.Context(), queryList(r, "brands"))
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandlePostVote handles POST /votes requests.
func (h *MatchupHandler) HandlePostVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_vote"
	req, err := decodeVote(op, w, r)
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	res, err := h.deps.Vote(r.Context(), req.toService())
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleSkip handles POST /skip requests.
func (h *MatchupHandler) HandleSkip(w http.ResponseWriter, r *http.Request) {
	const op = "api.skip"
	if err := h.deps.Skip(r.Context()); err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
