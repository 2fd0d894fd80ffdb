// Package rating implements Elo expected scores and post-match updates.
package rating

import (
	"math"

	"github.com/okian/pedalrank/internal/domain/model"
)

// scale is the rating difference at which the favourite is expected to win
// ten times as often.
const scale = 400.0

// Result is the outcome of resolving one match.
type Result struct {
	NewWinnerRating float64
	NewLoserRating  float64
	// Delta is the winner's gain, always >= 0.
	Delta float64
	// Gap is winner minus loser before the match, unrounded.
	Gap float64
}

// ExpectedScore is the probability that a pedal rated a beats one rated b.
func ExpectedScore(a, b float64) float64 {
	return 1 / (1 + math.Pow(10, (b-a)/scale))
}

// Resolve computes new ratings after winner beat loser. Each side is scaled
// by its own K, so the winner's gain and the loser's drop differ in size
// whenever the two K-factors differ.
func Resolve(winner, loser model.RatingRecord) Result {
	kW := float64(KFactor(winner.Matches))
	kL := float64(KFactor(loser.Matches))

	eW := ExpectedScore(winner.Rating, loser.Rating)
	eL := ExpectedScore(loser.Rating, winner.Rating)

	delta := round(kW * (1 - eW))
	return Result{
		NewWinnerRating: winner.Rating + delta,
		NewLoserRating:  round(loser.Rating + kL*(0-eL)),
		Delta:           delta,
		Gap:             winner.Rating - loser.Rating,
	}
}

// Apply returns the winner and loser records after res has been resolved.
func Apply(winner, loser model.RatingRecord, res Result) (model.RatingRecord, model.RatingRecord) {
	w := model.RatingRecord{
		Rating:  res.NewWinnerRating,
		Wins:    winner.Wins + 1,
		Losses:  winner.Losses,
		Matches: winner.Matches + 1,
	}
	l := model.RatingRecord{
		Rating:  res.NewLoserRating,
		Wins:    loser.Wins,
		Losses:  loser.Losses + 1,
		Matches: loser.Matches + 1,
	}
	return w, l
}

// round rounds half away from zero for both signs.
func round(x float64) float64 {
	return math.Round(x)
}
