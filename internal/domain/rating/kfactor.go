package rating

// K-factor tiers. New pedals move fast so a few idiosyncratic early votes
// cannot anchor a wrong rating; established pedals move slowly so a short
// run of atypical voters cannot overturn a well-evidenced consensus.
const (
	kNew         = 64
	kSettling    = 32
	kEstablished = 16

	settlingMatches    = 30
	establishedMatches = 100
)

// KFactor maps the number of matches played to a volatility coefficient.
func KFactor(matches int) int {
	switch {
	case matches < settlingMatches:
		return kNew
	case matches < establishedMatches:
		return kSettling
	default:
		return kEstablished
	}
}
