// Package history maintains the capped, newest-first log of resolved matches.
package history

import (
	"sort"

	"github.com/okian/pedalrank/internal/domain/model"
)

// MaxEntries is the number of records retained.
const MaxEntries = 200

// UpsetGap is the rating gap below which a win counts as a major upset.
const UpsetGap = -50.0

// Append returns a new log with rec at the front, truncated to MaxEntries.
// The input slice is not modified.
func Append(log []model.MatchRecord, rec model.MatchRecord) []model.MatchRecord {
	n := min(len(log)+1, MaxEntries)
	out := make([]model.MatchRecord, 0, n)
	out = append(out, rec)
	out = append(out, log[:n-1]...)
	return out
}

// Recent returns up to limit records of the given mode, newest first.
// An empty mode matches every record. A non-positive limit means no limit.
func Recent(log []model.MatchRecord, mode string, limit int) []model.MatchRecord {
	out := make([]model.MatchRecord, 0)
	for _, r := range log {
		if mode != "" && r.Mode != mode {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Upsets returns up to limit records whose gap is below UpsetGap, most
// extreme first.
func Upsets(log []model.MatchRecord, limit int) []model.MatchRecord {
	out := make([]model.MatchRecord, 0)
	for _, r := range log {
		if r.Gap < UpsetGap {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Gap < out[j].Gap })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
