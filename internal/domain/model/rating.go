package model

// InitialRating is assigned to every pedal that has never played a match.
const InitialRating = 1200.0

// RatingRecord is the persisted rating state of one pedal.
// Matches always equals Wins + Losses.
type RatingRecord struct {
	Rating  float64 `json:"elo"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	Matches int     `json:"matches"`
}

// NewRatingRecord returns the record of a never-matched pedal.
func NewRatingRecord() RatingRecord {
	return RatingRecord{Rating: InitialRating}
}

// RatingRecordOrDefault returns *r, or the initial record when r is nil.
func RatingRecordOrDefault(r *RatingRecord) RatingRecord {
	if r == nil {
		return NewRatingRecord()
	}
	return *r
}

// Lookup returns the record for id, defaulting when absent.
func Lookup(rankings map[string]RatingRecord, id string) RatingRecord {
	if r, ok := rankings[id]; ok {
		return RatingRecordOrDefault(&r)
	}
	return RatingRecordOrDefault(nil)
}

// PoolData is the persisted state of one rating pool (global or a brand battle).
type PoolData struct {
	Rankings   map[string]RatingRecord `json:"rankings"`
	TotalVotes int                     `json:"totalVotes"`
}

// NewPoolData returns an empty pool.
func NewPoolData() PoolData {
	return PoolData{Rankings: make(map[string]RatingRecord)}
}

// Clone returns a deep copy so the caller can mutate it freely.
func (p PoolData) Clone() PoolData {
	c := PoolData{Rankings: make(map[string]RatingRecord, len(p.Rankings)), TotalVotes: p.TotalVotes}
	for id, r := range p.Rankings {
		c.Rankings[id] = r
	}
	return c
}

// Blank returns a pool where every pedal holds the initial record.
func Blank(pedals []Pedal) PoolData {
	p := PoolData{Rankings: make(map[string]RatingRecord, len(pedals))}
	for _, pedal := range pedals {
		p.Rankings[pedal.ID] = NewRatingRecord()
	}
	return p
}
