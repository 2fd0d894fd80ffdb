package service

import (
	"github.com/okian/pedalrank/internal/domain/matchmaking"
	"github.com/okian/pedalrank/internal/domain/model"
	"github.com/okian/pedalrank/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithRatings sets the rating store. Defaults to an in-memory store.
func WithRatings(r RatingStore) Option {
	return func(s *Service) {
		if r != nil {
			s.ratings = r
		}
	}
}

// WithCatalogue sets the catalogue provider used by Start.
func WithCatalogue(c Catalogue) Option {
	return func(s *Service) {
		if c != nil {
			s.catalogue = c
		}
	}
}

// WithPedals fixes the catalogue. Start then skips the catalogue provider.
func WithPedals(pedals []model.Pedal) Option {
	return func(s *Service) {
		s.fixed = pedals
	}
}

// WithMatchmaker sets the matchmaker.
func WithMatchmaker(m *matchmaking.Matchmaker) Option {
	return func(s *Service) {
		if m != nil {
			s.matcher = m
		}
	}
}

// WithRecentSize bounds the window of recently shown pedals.
func WithRecentSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recentSize = n
		}
	}
}

// WithVotedSize bounds the window of applied matchup ids.
func WithVotedSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.votedSize = n
		}
	}
}

// WithMaxLeaderboardLimit caps the leaderboard page size.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
