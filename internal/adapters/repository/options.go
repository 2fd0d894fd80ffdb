package repository

import "github.com/okian/pedalrank/pkg/logger"

// Option applies a configuration option to Ratings.
type Option func(*Ratings)

// WithWriter routes saves through w instead of writing to the store
// synchronously.
func WithWriter(w Writer) Option {
	return func(r *Ratings) {
		if w != nil {
			r.writer = w
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Ratings) {
		if l != nil {
			r.log = l
		}
	}
}
