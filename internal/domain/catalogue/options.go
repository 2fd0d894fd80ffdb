package catalogue

import (
	"net/http"
	"time"

	"github.com/okian/pedalrank/pkg/logger"
)

// Option applies a configuration option to the Loader.
type Option func(*Loader)

// WithFile sets the local listing path tried first.
func WithFile(path string) Option {
	return func(l *Loader) { l.file = path }
}

// WithURL sets the remote listing URL tried second.
func WithURL(url string) Option {
	return func(l *Loader) { l.url = url }
}

// WithTimeout bounds the remote fetch.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithHTTPClient sets the client used for the remote fetch.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		if c != nil {
			l.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}
