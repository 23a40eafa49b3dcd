package draw

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

var (
	ErrEmptyCatalog  = errors.New("catalog has no segments")
	ErrInvalidWeight = errors.New("segment weight must be a positive finite number")
	ErrInvalidKind   = errors.New("segment kind must be text or image")
)

// Kind is how a segment is rendered, and decides how its prize is fulfilled.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Fulfillment names the external flow that hands a prize over.
type Fulfillment string

const (
	FulfillDelivery Fulfillment = "delivery"
	FulfillCash     Fulfillment = "cash"
)

// Fulfillment maps image prizes to delivery and text prizes to cash payout.
func (k Kind) Fulfillment() Fulfillment {
	if k == KindImage {
		return FulfillDelivery
	}

	return FulfillCash
}

// Segment is one slot of the wheel. Its position in the catalog is its id.
type Segment struct {
	Label    string  `json:"label"`
	Kind     Kind    `json:"kind"`
	Weight   float64 `json:"weight"`
	ImageRef string  `json:"imageRef,omitempty"`
	Losing   bool    `json:"losing,omitempty"`
}

// Catalog is the ordered list of segments. Order is stable: index i is the
// segment shown at position i of the wheel.
type Catalog []Segment

// Validate checks that the catalog can be drawn from.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return ErrEmptyCatalog
	}

	for i, s := range c {
		if !(s.Weight > 0) || math.IsInf(s.Weight, 0) {
			return fmt.Errorf("segment %d (%q): %w", i, s.Label, ErrInvalidWeight)
		}

		if s.Kind != KindText && s.Kind != KindImage {
			return fmt.Errorf("segment %d (%q): %w", i, s.Label, ErrInvalidKind)
		}
	}

	return nil
}

// TotalWeight is the normalization denominator.
func (c Catalog) TotalWeight() float64 {
	var total float64
	for _, s := range c {
		total += s.Weight
	}

	return total
}

// Probabilities returns weight_i / total for every segment.
func (c Catalog) Probabilities() []float64 {
	total := c.TotalWeight()
	out := make([]float64, len(c))

	for i, s := range c {
		out[i] = s.Weight / total
	}

	return out
}

// DefaultCatalog is the launch wheel.
func DefaultCatalog() Catalog {
	return Catalog{
		{Label: "Ordinateur portable HP Elitebook core i5 Tactile", Kind: KindImage, ImageRef: "pc.png", Weight: 1.5},
		{Label: "Nintendo switch 2", Kind: KindImage, ImageRef: "nintendo.png", Weight: 2},
		{Label: "Perdu", Kind: KindText, Weight: 17.167, Losing: true},
		{Label: "Samsung A16", Kind: KindImage, ImageRef: "samsung.png", Weight: 3},
		{Label: "1000 CFA", Kind: KindText, Weight: 15},
		{Label: "2000 CFA", Kind: KindText, Weight: 12},
		{Label: "Perdu", Kind: KindText, Weight: 17.167, Losing: true},
		{Label: "3000 CFA", Kind: KindText, Weight: 10},
		{Label: "5000 CFA", Kind: KindText, Weight: 8},
		{Label: "Perdu", Kind: KindText, Weight: 17.167, Losing: true},
	}
}

// LoadCatalog reads a JSON array of segments from path. An empty path yields
// the default catalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var c Catalog

	err = json.Unmarshal(raw, &c)
	if err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	err = c.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}

	return c, nil
}
