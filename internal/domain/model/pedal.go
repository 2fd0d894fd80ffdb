// Package model contains domain models passed between layers.
package model

// Pedal is one catalogue item. ID is derived from brand, name and filename,
// never from the item's position in the source list.
type Pedal struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Brand    string  `json:"brand"`
	Filename string  `json:"filename"`
	Image    string  `json:"image,omitempty"`
	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
}

// Entity is a pedal merged with its current rating record. This is the shape
// the matchmaker, population statistics and analysis operate on.
type Entity struct {
	Pedal
	RatingRecord
}

// Merge pairs every pedal with its record from rankings, assigning the
// initial record to pedals that have never been rated.
func Merge(pedals []Pedal, rankings map[string]RatingRecord) []Entity {
	out := make([]Entity, len(pedals))
	for i, p := range pedals {
		out[i] = Entity{Pedal: p, RatingRecord: Lookup(rankings, p.ID)}
	}
	return out
}
