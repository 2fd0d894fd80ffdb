// Package catalogue turns raw pedal listings into normalised model.Pedal
// values and loads them from a local file, a remote URL or the built-in
// starter list, in that order.
package catalogue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/okian/pedalrank/internal/domain/model"
)

// ImageBase is the prefix of derived pedal image URLs.
const ImageBase = "https://pedalplayground.com/public/images/pedals/"

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// Raw is one record as found in a source listing.
type Raw struct {
	Name         string          `json:"name" yaml:"name"`
	Brand        string          `json:"brand" yaml:"brand"`
	Manufacturer string          `json:"manufacturer" yaml:"manufacturer"`
	Filename     string          `json:"filename" yaml:"filename"`
	Width        json.RawMessage `json:"width" yaml:"-"`
	Height       json.RawMessage `json:"height" yaml:"-"`
}

// Slug lowercases s and replaces every character outside [a-z0-9] with '-'.
func Slug(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "-")
}

// ImageURL returns the image URL for filename, or "" when it is empty.
func ImageURL(filename string) string {
	if filename == "" {
		return ""
	}
	return ImageBase + filename + ".png"
}

// Normalise converts a raw record. The id depends only on brand, name and
// filename so it survives reordering of the source list.
func Normalise(r Raw) model.Pedal {
	filename := r.Filename
	if filename == "" {
		filename = Slug(orDefault(r.Brand, "unknown")) + "-" + Slug(orDefault(r.Name, "pedal"))
	}
	brand := orDefault(r.Brand, orDefault(r.Manufacturer, "Unknown"))
	return model.Pedal{
		ID:       Slug(r.Brand) + "__" + Slug(r.Name) + "__" + filename,
		Name:     orDefault(r.Name, filename),
		Brand:    brand,
		Filename: filename,
		Image:    ImageURL(filename),
		Width:    number(r.Width),
		Height:   number(r.Height),
	}
}

// NormaliseAll applies Normalise to every usable record, skipping those with
// neither a name nor a filename and dropping later duplicates of an id.
func NormaliseAll(raws []Raw) []model.Pedal {
	seen := make(map[string]struct{}, len(raws))
	out := make([]model.Pedal, 0, len(raws))
	for _, r := range raws {
		if r.Name == "" && r.Filename == "" {
			continue
		}
		p := Normalise(r)
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Parse decodes a listing that is either a JSON array of records or a JSON
// object whose values are records. Object values keep document order.
func Parse(data []byte) ([]model.Pedal, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	var raws []Raw
	switch data[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decode array: %w", err)
		}
		raws = decodeRecords(items)
	case '{':
		items, err := objectValues(data)
		if err != nil {
			return nil, err
		}
		raws = decodeRecords(items)
	default:
		return nil, fmt.Errorf("decode: unexpected %q", data[0])
	}
	pedals := NormaliseAll(raws)
	if len(pedals) == 0 {
		return nil, ErrEmpty
	}
	return pedals, nil
}

func objectValues(data []byte) ([]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	var out []json.RawMessage
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("decode object key: %w", err)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode object value: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// decodeRecords keeps only entries that are JSON objects.
func decodeRecords(items []json.RawMessage) []Raw {
	out := make([]Raw, 0, len(items))
	for _, it := range items {
		var r Raw
		if err := json.Unmarshal(it, &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

// number accepts a JSON number or a numeric string.
func number(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return 0
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
