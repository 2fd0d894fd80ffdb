package model

// Vote modes recorded in history.
const (
	ModeGlobal = "global"
	ModeBattle = "battle"
)

// Side captures one participant of a resolved match.
type Side struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Brand        string  `json:"brand"`
	RatingBefore float64 `json:"eloBefore"`
	RatingAfter  float64 `json:"eloAfter"`
}

// MatchRecord is one resolved vote as stored in the history log.
// Gap is winner-before minus loser-before; negative means an upset.
type MatchRecord struct {
	ID     string  `json:"id,omitempty"`
	TS     int64   `json:"ts"`
	Mode   string  `json:"mode"`
	Battle string  `json:"battle,omitempty"`
	Winner Side    `json:"winner"`
	Loser  Side    `json:"loser"`
	Delta  float64 `json:"delta"`
	Gap    float64 `json:"eloGap"`
}

// Upset reports whether the lower-rated pedal won.
func (r MatchRecord) Upset() bool { return r.Gap < 0 }
