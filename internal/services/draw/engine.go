package draw

import (
	"math/rand/v2"
	"sync"
)

// Source yields uniform samples in [0, 1).
type Source interface {
	Float64() float64
}

// Engine picks a segment with probability proportional to its weight.
// It has no side effects; the index it returns is the only authority on
// which prize was won.
type Engine struct {
	mu  sync.Mutex
	src Source
}

// NewEngine returns an engine backed by the runtime's random generator.
func NewEngine() *Engine {
	return &Engine{src: runtimeSource{}}
}

// NewEngineWithSource returns an engine with a fixed source, for tests and
// replays.
func NewEngineWithSource(src Source) *Engine {
	return &Engine{src: src}
}

// NewSeededEngine returns a reproducible engine.
func NewSeededEngine(seed uint64) *Engine {
	return &Engine{src: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Reseed swaps the source in place.
func (e *Engine) Reseed(src Source) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.src = src
}

// Draw returns the index of the selected segment. The catalog must be valid
// (see Catalog.Validate).
func (e *Engine) Draw(c Catalog) (int, error) {
	err := c.Validate()
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	u := e.src.Float64()
	e.mu.Unlock()

	return Pick(c, u), nil
}

// Pick maps a uniform sample u in [0, 1) onto the catalog. The last segment
// absorbs any floating point remainder.
func Pick(c Catalog, u float64) int {
	r := u * c.TotalWeight()

	var cumulative float64
	for i, s := range c {
		cumulative += s.Weight
		if r < cumulative {
			return i
		}
	}

	return len(c) - 1
}

type runtimeSource struct{}

func (runtimeSource) Float64() float64 { return rand.Float64() }
