// Package population computes dispersion statistics over a candidate pool.
package population

import (
	"math"

	"github.com/okian/pedalrank/internal/domain/model"
)

// Spread returns the population standard deviation (divide by N) of the
// ratings in pool. Pools with fewer than two members have no spread.
func Spread(pool []model.Entity) float64 {
	n := len(pool)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, e := range pool {
		sum += e.Rating
	}
	mean := sum / float64(n)

	var sq float64
	for _, e := range pool {
		d := e.Rating - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(n))
}

// Mean returns the average rating of pool, or the initial rating when empty.
func Mean(pool []model.Entity) float64 {
	if len(pool) == 0 {
		return model.InitialRating
	}
	var sum float64
	for _, e := range pool {
		sum += e.Rating
	}
	return sum / float64(len(pool))
}
