package api

import (
	"context"
	"net/http"

	"github.com/okian/pedalrank/internal/domain/analysis"
	"github.com/okian/pedalrank/internal/domain/model"
	"github.com/okian/pedalrank/pkg/logger"
)

// AnalysisDependencies defines the read-only reporting operations.
type AnalysisDependencies interface {
	History(ctx context.Context, mode string, limit int) ([]model.MatchRecord, error)
	Analysis(ctx context.Context, brands []string) (analysis.Report, error)
	Brands(ctx context.Context) ([]analysis.BrandCount, error)
	Search(ctx context.Context, q string, limit int) ([]analysis.Standing, error)
}

// AnalysisHandler serves history, reports, brands and search.
type AnalysisHandler struct {
	deps AnalysisDependencies
	log  logger.Logger
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(deps AnalysisDependencies, log logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{deps: deps, log: log}
}

// HandleGetHistory handles GET /history?limit=N&mode=global|battle requests.
func (h *AnalysisHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_history"
	n, err := queryInt(op, r, "limit")
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	mode := r.URL.Query().Get("mode")
	if mode != "" && mode != model.ModeGlobal && mode != model.ModeBattle {
		fail(r.Context(), h.log, w, NewKind(op, ErrBadRequest))
		return
	}
	records, err := h.deps.History(r.Context(), mode, n)
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleGetAnalysis handles GET /analysis?brands=a,b requests.
func (h *AnalysisHandler) HandleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_analysis"
	report, err := h.deps.Analysis(r.Context(), queryList(r, "brands"))
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleGetBrands handles GET /brands requests.
func (h *AnalysisHandler) HandleGetBrands(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_brands"
	brands, err := h.deps.Brands(r.Context())
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, brands)
}

// HandleSearch handles GET /search?q=...&limit=N requests.
func (h *AnalysisHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	const op = "api.search"
	n, err := queryInt(op, r, "limit")
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	q := searchQuery{Q: r.URL.Query().Get("q"), Limit: n}
	if err := validate.Struct(q); err != nil {
		fail(r.Context(), h.log, w, WrapKind(op, ErrBadRequest, err))
		return
	}
	hits, err := h.deps.Search(r.Context(), q.Q, q.Limit)
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, hits)
}
