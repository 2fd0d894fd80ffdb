package analysis

import (
	"math"
	"sort"

	"github.com/okian/pedalrank/internal/domain/history"
	"github.com/okian/pedalrank/internal/domain/model"
)

// Report limits.
const (
	ContestedMinMatches = 8
	ContestedLimit      = 8
	UpsetLimit          = 6
	RecentLimit         = 20
)

// BrandStat aggregates the ranked pedals of one brand.
type BrandStat struct {
	Brand     string   `json:"brand"`
	Count     int      `json:"count"`
	AvgRating int      `json:"avgElo"`
	Wins      int      `json:"wins"`
	Matches   int      `json:"matches"`
	Top       Standing `json:"topPedal"`
}

// BrandCount is the number of catalogue pedals of one brand.
type BrandCount struct {
	Brand string `json:"brand"`
	Count int    `json:"count"`
}

// Report is the full analysis view.
type Report struct {
	RankedCount int                 `json:"rankedCount"`
	TotalCount  int                 `json:"totalCount"`
	Brands      []BrandStat         `json:"brands"`
	Contested   []Standing          `json:"contested"`
	Upsets      []model.MatchRecord `json:"upsets"`
	Recent      []model.MatchRecord `json:"recent"`
}

// Build assembles a Report from the pool and the history log.
func Build(pool []model.Entity, log []model.MatchRecord) Report {
	ranked := Ranked(pool)
	return Report{
		RankedCount: len(ranked),
		TotalCount:  len(pool),
		Brands:      BrandReport(ranked),
		Contested:   Contested(ranked, ContestedMinMatches, ContestedLimit),
		Upsets:      history.Upsets(log, UpsetLimit),
		Recent:      history.Recent(log, model.ModeGlobal, RecentLimit),
	}
}

// BrandReport groups ranked standings by brand, highest average rating
// first. The top pedal of a brand is its best ranked one.
func BrandReport(ranked []Standing) []BrandStat {
	type acc struct {
		stat  BrandStat
		total float64
	}
	byBrand := make(map[string]*acc)
	var order []string
	for _, s := range ranked {
		a, ok := byBrand[s.Brand]
		if !ok {
			a = &acc{stat: BrandStat{Brand: s.Brand, Top: s}}
			byBrand[s.Brand] = a
			order = append(order, s.Brand)
		}
		a.stat.Count++
		a.stat.Wins += s.Wins
		a.stat.Matches += s.Matches
		a.total += s.Rating
	}

	out := make([]BrandStat, 0, len(order))
	for _, brand := range order {
		a := byBrand[brand]
		a.stat.AvgRating = int(math.Round(a.total / float64(a.stat.Count)))
		out = append(out, a.stat)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AvgRating != out[j].AvgRating {
			return out[i].AvgRating > out[j].AvgRating
		}
		return out[i].Brand < out[j].Brand
	})
	return out
}

// Contested returns pedals with at least minMatches matches whose win rate
// is closest to one half.
func Contested(ranked []Standing, minMatches, limit int) []Standing {
	out := make([]Standing, 0)
	for _, s := range ranked {
		if s.Matches >= minMatches {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].WinRate-0.5) < math.Abs(out[j].WinRate-0.5)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Brands counts catalogue pedals per brand, largest first then by name.
func Brands(pedals []model.Pedal) []BrandCount {
	counts := make(map[string]int)
	for _, p := range pedals {
		counts[p.Brand]++
	}
	out := make([]BrandCount, 0, len(counts))
	for b, c := range counts {
		out = append(out, BrandCount{Brand: b, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Brand < out[j].Brand
	})
	return out
}
