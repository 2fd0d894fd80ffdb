package catalogue

import (
	_ "embed"
	"fmt"

	"github.com/okian/pedalrank/internal/domain/model"
	"gopkg.in/yaml.v3"
)

//go:embed starter.yaml
var starterYAML []byte

// Starter returns the built-in starter list.
func Starter() ([]model.Pedal, error) {
	var raws []Raw
	if err := yaml.Unmarshal(starterYAML, &raws); err != nil {
		return nil, fmt.Errorf("decode starter list: %w", err)
	}
	pedals := NormaliseAll(raws)
	if len(pedals) == 0 {
		return nil, ErrEmpty
	}
	return pedals, nil
}
