package propagation

import (
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"
)

// GaussianShadowing draws zero-mean normal shadowing. It is safe for
// concurrent use.
type GaussianShadowing struct {
	src rand.Source // nil uses the runtime's global source
}

// NewGaussianShadowing returns a reproducible source for the given seed.
// Draw order across goroutines is not deterministic, so bit-for-bit
// reproducibility additionally needs sequential evaluation.
func NewGaussianShadowing(seed uint64) *GaussianShadowing {
	return &GaussianShadowing{src: &lockedSource{src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}}
}

// NewEntropyShadowing returns a source seeded by the runtime.
func NewEntropyShadowing() *GaussianShadowing {
	return &GaussianShadowing{}
}

// Sample draws one N(0, sigma) value in dB.
func (g *GaussianShadowing) Sample(sigma float64) float64 {
	if sigma == 0 {
		return 0
	}
	return distuv.Normal{Mu: 0, Sigma: sigma, Src: g.src}.Rand()
}

// NoShadowing makes path loss deterministic.
type NoShadowing struct{}

func (NoShadowing) Sample(float64) float64 { return 0 }

type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (l *lockedSource) Uint64() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Uint64()
}
