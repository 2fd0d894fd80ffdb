package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	service "github.com/okian/pedalrank/internal/app"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 16

var validate = validator.New(validator.WithRequiredStructEnabled())

// voteRequest mirrors the OpenAPI schema for POST /votes.
type voteRequest struct {
	MatchupID string `json:"matchup_id" validate:"omitempty,uuid4"`
	WinnerID  string `json:"winner_id" validate:"required,max=512"`
	LoserID   string `json:"loser_id" validate:"required,max=512,nefield=WinnerID"`
}

func (v voteRequest) toService() service.VoteRequest {
	return service.VoteRequest{MatchupID: v.MatchupID, WinnerID: v.WinnerID, LoserID: v.LoserID}
}

// searchQuery mirrors the query parameters of GET /search.
type searchQuery struct {
	Q     string `validate:"required,max=100"`
	Limit int    `validate:"min=0,max=100"`
}

func decodeVote(op string, w http.ResponseWriter, r *http.Request) (voteRequest, error) {
	var req voteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return voteRequest{}, WrapKind(op, ErrBadRequest, err)
	}
	if err := validate.Struct(req); err != nil {
		return voteRequest{}, WrapKind(op, ErrBadRequest, err)
	}
	return req, nil
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(op string, r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, NewKind(op, ErrBadRequest)
	}
	return n, nil
}

// queryList splits a comma separated query parameter, dropping blanks.
func queryList(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// pathParam returns an unescaped chi URL parameter.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}
