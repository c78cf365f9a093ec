package usecase

import (
	"math"
	"sync/atomic"
)

// progress holds a fraction in [0,1] that only grows until Reset.
type progress struct {
	bits atomic.Uint64
}

func (p *progress) Load() float64 {
	return math.Float64frombits(p.bits.Load())
}

func (p *progress) Reset() {
	p.bits.Store(math.Float64bits(0))
}

// Advance raises the value to f and reports whether it changed.
func (p *progress) Advance(f float64) bool {
	if f > 1 {
		f = 1
	}
	for {
		old := p.bits.Load()
		if math.Float64frombits(old) >= f {
			return false
		}
		if p.bits.CompareAndSwap(old, math.Float64bits(f)) {
			return true
		}
	}
}
