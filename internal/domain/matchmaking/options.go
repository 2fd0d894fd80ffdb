package matchmaking

// Params holds the empirically tuned matchmaking constants.
type Params struct {
	// BootstrapSpread is the rating standard deviation below which pairing
	// is pure exploration.
	BootstrapSpread float64
	// MaxAttempts bounds the randomized ranked search.
	MaxAttempts int
	// AnchorPhaseEnd is the first attempt that no longer requires an anchor.
	AnchorPhaseEnd int
	// BrandPhaseEnd is the first attempt that no longer requires two brands.
	BrandPhaseEnd int
	// MaxOffset caps how far apart in the sorted pool two candidates may sit.
	MaxOffset int
	// AnchorMatches is the match count that makes a pedal an anchor.
	AnchorMatches int
	// BattleAttempts bounds the battle search.
	BattleAttempts int
	// BattleDepth is how many top-rated pedals per brand a battle draws from.
	BattleDepth int
}

// DefaultParams returns the production constants.
func DefaultParams() Params {
	return Params{
		BootstrapSpread: 50,
		MaxAttempts:     80,
		AnchorPhaseEnd:  45,
		BrandPhaseEnd:   70,
		MaxOffset:       12,
		AnchorMatches:   50,
		BattleAttempts:  60,
		BattleDepth:     8,
	}
}

// Option applies a configuration option to the Matchmaker.
type Option func(*Matchmaker)

// WithSource sets the random source.
func WithSource(src Source) Option {
	return func(m *Matchmaker) {
		if src != nil {
			m.src = src
		}
	}
}

// WithParams replaces the matchmaking constants.
func WithParams(p Params) Option {
	return func(m *Matchmaker) {
		m.params = p
	}
}
