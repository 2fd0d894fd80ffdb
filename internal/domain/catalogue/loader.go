package catalogue

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/okian/pedalrank/internal/domain/model"
	"github.com/okian/pedalrank/pkg/logger"
)

// DefaultURL is the public pedal listing.
const DefaultURL = "https://raw.githubusercontent.com/PedalPlayground/pedalplayground/master/public/data/pedals.json"

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 32 << 20
)

// Source names where a catalogue came from.
type Source string

// Sources.
const (
	SourceFile    Source = "file"
	SourceRemote  Source = "remote"
	SourceStarter Source = "starter"
)

// Loader loads the catalogue with a three-tier fallback.
type Loader struct {
	file    string
	url     string
	timeout time.Duration
	client  *http.Client
	log     logger.Logger
}

// NewLoader creates a Loader. With no options only the remote default URL
// and the starter list are tried.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		url:     DefaultURL,
		timeout: defaultTimeout,
		client:  http.DefaultClient,
		log:     logger.Get().Named("catalogue"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the first catalogue that loads and is non-empty. The starter
// list is the last resort so Load only fails if it is itself broken.
func (l *Loader) Load(ctx context.Context) ([]model.Pedal, Source, error) {
	if l.file != "" {
		pedals, err := l.LoadFile(l.file)
		if err == nil {
			l.log.Info(ctx, "catalogue loaded", logger.String("source", l.file), logger.Int("pedals", len(pedals)))
			return pedals, SourceFile, nil
		}
		l.log.Warn(ctx, "catalogue file failed", logger.String("path", l.file), logger.Error(err))
	}
	if l.url != "" {
		body, err := l.Fetch(ctx)
		if err == nil {
			var pedals []model.Pedal
			if pedals, err = Parse(body); err == nil {
				l.log.Info(ctx, "catalogue loaded", logger.String("source", l.url), logger.Int("pedals", len(pedals)))
				return pedals, SourceRemote, nil
			}
		}
		l.log.Warn(ctx, "catalogue fetch failed", logger.String("url", l.url), logger.Error(err))
	}
	pedals, err := Starter()
	if err != nil {
		return nil, "", err
	}
	l.log.Warn(ctx, "using built-in starter catalogue", logger.Int("pedals", len(pedals)))
	return pedals, SourceStarter, nil
}

// LoadFile parses a local listing.
func (l *Loader) LoadFile(path string) ([]model.Pedal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data)
}

// Fetch downloads the remote listing and returns its raw body.
func (l *Loader) Fetch(ctx context.Context) ([]byte, error) {
	if l.url == "" {
		return nil, ErrNoSource
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", l.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: %w: %d", l.url, ErrHTTPStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
