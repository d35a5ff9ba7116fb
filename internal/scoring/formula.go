// Package scoring ranks supplier bids with a weighted, direction-aware formula.
package scoring

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/quote"
)

// Direction says whether a larger raw value is better.
type Direction string

const (
	Higher Direction = "higher"
	Lower  Direction = "lower"
)

// ParseDirection accepts "higher" or "lower" in any case.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Higher:
		return Higher, true
	case Lower:
		return Lower, true
	default:
		return "", false
	}
}

// Formula holds per-component weights, directions and optional explicit
// normalization bounds. Weights are expected to sum to 1.0 but this is not
// enforced: a partial weight set excludes the missing components.
type Formula struct {
	Weights    map[string]float64   `json:"weights" yaml:"weights" mapstructure:"weights" validate:"required,min=1,dive,keys,required,endkeys,gte=0"`
	Directions map[string]Direction `json:"directions" yaml:"directions" mapstructure:"directions" validate:"dive,keys,required,endkeys,oneof=higher lower"`
	MinValues  map[string]float64   `json:"min_values,omitempty" yaml:"min_values,omitempty" mapstructure:"min_values"`
	MaxValues  map[string]float64   `json:"max_values,omitempty" yaml:"max_values,omitempty" mapstructure:"max_values"`
}

// DefaultFormula returns a fresh copy of the static fallback formula.
func DefaultFormula() *Formula {
	return &Formula{
		Weights: map[string]float64{
			quote.ComponentPrice:           0.5,
			quote.ComponentOTIF:            0.2,
			quote.ComponentPaymentTimeline: 0.2,
			quote.ComponentSpecification:   0.1,
		},
		Directions: map[string]Direction{
			quote.ComponentPrice:           Lower,
			quote.ComponentOTIF:            Higher,
			quote.ComponentPaymentTimeline: Higher,
			quote.ComponentSpecification:   Higher,
		},
	}
}

// DirectionOf returns the component's direction, Higher when unset.
func (f *Formula) DirectionOf(component string) Direction {
	if f == nil {
		return Higher
	}
	if d, ok := f.Directions[component]; ok && d == Lower {
		return Lower
	}
	return Higher
}

// WeightNames returns the weighted component names in sorted order.
func (f *Formula) WeightNames() []string {
	if f == nil {
		return nil
	}
	names := make([]string, 0, len(f.Weights))
	for name := range f.Weights {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WeightSum adds up all weights.
func (f *Formula) WeightSum() float64 {
	if f == nil {
		return 0
	}
	var sum float64
	for _, name := range f.WeightNames() {
		sum += f.Weights[name]
	}
	return sum
}

// Clone deep-copies the formula.
func (f *Formula) Clone() *Formula {
	if f == nil {
		return nil
	}
	return &Formula{
		Weights:    maps.Clone(f.Weights),
		Directions: maps.Clone(f.Directions),
		MinValues:  maps.Clone(f.MinValues),
		MaxValues:  maps.Clone(f.MaxValues),
	}
}

// Validate checks the formula's structure. Bounds given for both ends must
// not be inverted.
func (f *Formula) Validate() error {
	if f == nil {
		return errors.New("formula is empty")
	}
	if err := validator.New().Struct(f); err != nil {
		return fmt.Errorf("invalid formula: %w", err)
	}
	for name, lo := range f.MinValues {
		if hi, ok := f.MaxValues[name]; ok && lo > hi {
			return fmt.Errorf("invalid formula: min_values[%s]=%g exceeds max_values[%s]=%g", name, lo, name, hi)
		}
	}
	return nil
}

// LoadFormulaFile reads and strictly validates a YAML formula.
func LoadFormulaFile(path string) (*Formula, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read formula file %s: %w", path, err)
	}
	f, err := ParseFormula(data)
	if err != nil {
		return nil, fmt.Errorf("formula file %s: %w", path, err)
	}
	return f, nil
}

// ParseFormula decodes YAML (or JSON, which is valid YAML). Unknown keys are rejected.
func ParseFormula(data []byte) (*Formula, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f Formula
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("formula is empty")
		}
		return nil, fmt.Errorf("decode formula: %w", err)
	}

	for name, d := range f.Directions {
		if parsed, ok := ParseDirection(string(d)); ok {
			f.Directions[name] = parsed
		}
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}
