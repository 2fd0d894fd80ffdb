// Package analysis derives read-only views over a rated pool: standings,
// brand reports, contested pedals, upsets and search.
package analysis

import (
	"sort"

	"github.com/okian/pedalrank/internal/domain/model"
)

// Standing is a pedal with its position in the rating order. Unranked
// pedals (no matches yet) carry Rank 0.
type Standing struct {
	model.Entity
	Rank    int     `json:"rank"`
	WinRate float64 `json:"winRate"`
}

// Ranked reports whether the pedal has played at least one match.
func (s Standing) Ranked() bool { return s.Rank > 0 }

// Ranked returns the pedals with at least one match, highest rating first,
// numbered from 1. Ties are ordered by name then id.
func Ranked(pool []model.Entity) []Standing {
	out := make([]Standing, 0, len(pool))
	for _, e := range pool {
		if e.Matches > 0 {
			out = append(out, standing(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Standings returns every pedal: the ranked ones in rating order followed
// by the unranked ones by name.
func Standings(pool []model.Entity) []Standing {
	out := Ranked(pool)
	var unranked []Standing
	for _, e := range pool {
		if e.Matches == 0 {
			unranked = append(unranked, standing(e))
		}
	}
	sort.SliceStable(unranked, func(i, j int) bool {
		if unranked[i].Name != unranked[j].Name {
			return unranked[i].Name < unranked[j].Name
		}
		return unranked[i].ID < unranked[j].ID
	})
	return append(out, unranked...)
}

// Find returns the standing of id.
func Find(standings []Standing, id string) (Standing, bool) {
	for _, s := range standings {
		if s.ID == id {
			return s, true
		}
	}
	return Standing{}, false
}

// Top returns the first n standings.
func Top(standings []Standing, n int) []Standing {
	if n <= 0 || n >= len(standings) {
		return standings
	}
	return standings[:n]
}

// Bottom returns the last n standings, lowest rated first.
func Bottom(standings []Standing, n int) []Standing {
	if n <= 0 || n > len(standings) {
		n = len(standings)
	}
	out := make([]Standing, 0, n)
	for i := len(standings) - 1; i >= len(standings)-n; i-- {
		out = append(out, standings[i])
	}
	return out
}

// FilterBrands keeps the standings whose brand is in brands. An empty set
// keeps everything.
func FilterBrands(standings []Standing, brands map[string]bool) []Standing {
	if len(brands) == 0 {
		return standings
	}
	out := make([]Standing, 0, len(standings))
	for _, s := range standings {
		if brands[s.Brand] {
			out = append(out, s)
		}
	}
	return out
}

func standing(e model.Entity) Standing {
	s := Standing{Entity: e}
	if e.Matches > 0 {
		s.WinRate = float64(e.Wins) / float64(e.Matches)
	}
	return s
}
