package api

import (
	"context"
	"net/http"

	"github.com/okian/pedalrank/pkg/logger"
)

// AdminDependencies defines destructive maintenance operations.
type AdminDependencies interface {
	Reset(ctx context.Context) error
}

// AdminHandler serves maintenance routes.
type AdminHandler struct {
	deps AdminDependencies
	log  logger.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies, log logger.Logger) *AdminHandler {
	return &AdminHandler{deps: deps, log: log}
}

// HandleReset handles POST /admin/reset requests.
func (h *AdminHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	const op = "api.reset"
	if err := h.deps.Reset(r.Context()); err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
