// Package proxy exposes a narrow passthrough to the Upstash REST API so
// browser clients never see the database token. Only GET and SET are
// forwarded.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/pedalrank/internal/adapters/repository"
	"github.com/okian/pedalrank/pkg/logger"
)

// Path is where the proxy is mounted.
const Path = "/api/redis"

const maxBodyBytes = 1 << 20

var allowed = map[string]int{
	"GET": 2,
	"SET": 3,
}

// Upstream runs commands against Upstash. *repository.UpstashStore
// satisfies it.
type Upstream interface {
	Fetch(ctx context.Context, key string) (repository.Reply, error)
	Exec(ctx context.Context, args ...string) (repository.Reply, error)
}

// Handler serves Path.
type Handler struct {
	upstream Upstream
	log      logger.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// New creates a proxy for upstream. A nil upstream answers every request
// with 503.
func New(upstream Upstream, opts ...Option) *Handler {
	h := &Handler{upstream: upstream, log: logger.Get().Named("proxy")}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts h on r at Path for every method.
func Register(_ context.Context, r chi.Router, h *Handler) {
	r.Handle(Path, h)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.upstream == nil {
		writeError(w, http.StatusServiceUnavailable, "Redis not configured on this server.")
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPost:
		h.post(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "Missing key parameter.")
		return
	}
	rep, err := h.upstream.Fetch(r.Context(), key)
	h.relay(w, r, rep, err)
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	args, err := parseCommand(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Only GET and SET commands are permitted.")
		return
	}
	rep, err := h.upstream.Exec(r.Context(), args...)
	h.relay(w, r, rep, err)
}

func (h *Handler) relay(w http.ResponseWriter, r *http.Request, rep repository.Reply, err error) {
	if err != nil {
		h.log.Error(r.Context(), "proxy error", logger.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrUpstream) {
			status = http.StatusBadGateway
		}
		writeError(w, status, "Internal proxy error.")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.Status)
	_, _ = w.Write(rep.Body)
}

var errCommand = errors.New("unsupported command")

// parseCommand decodes a JSON command array. The command name is matched
// case-insensitively; non-string arguments are passed as their JSON text.
func parseCommand(body io.Reader) ([]string, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", errCommand, err)
	}
	if len(raw) == 0 {
		return nil, errCommand
	}
	var name string
	if err := json.Unmarshal(raw[0], &name); err != nil {
		return nil, errCommand
	}
	name = strings.ToUpper(name)
	arity, ok := allowed[name]
	if !ok || len(raw) != arity {
		return nil, errCommand
	}
	args := []string{name}
	for _, a := range raw[1:] {
		var s string
		if err := json.Unmarshal(a, &s); err != nil {
			s = string(a)
		}
		args = append(args, s)
	}
	return args, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
