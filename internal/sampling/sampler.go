// Package sampling draws node lifetimes, wake intervals and the uniform
// choices the evolution rules make, all from one seedable random stream.
package sampling

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Params holds the distribution parameters of the model.
type Params struct {
	// Lambda is the rate of the exponential lifetime distribution.
	Lambda float64 `json:"lambda" yaml:"lambda"`

	// Alpha is the power-law exponent of the time-gap distribution. Must be < 1.
	Alpha float64 `json:"alpha" yaml:"alpha"`

	// Beta scales the exponential cutoff of the time-gap distribution by degree.
	Beta float64 `json:"beta" yaml:"beta"`
}

// Validate checks that the parameters define proper distributions.
func (p Params) Validate() error {
	if !(p.Lambda > 0) {
		return fmt.Errorf("lambda must be positive, got %v", p.Lambda)
	}
	if !(p.Alpha < 1) {
		return fmt.Errorf("alpha must be less than 1, got %v", p.Alpha)
	}
	if !(p.Beta > 0) {
		return fmt.Errorf("beta must be positive, got %v", p.Beta)
	}
	return nil
}

// Sampler draws every random quantity of a simulation from a single stream.
// It is not safe for concurrent use.
type Sampler struct {
	params   Params
	rng      *rand.Rand
	lifetime distuv.Exponential

	// gapScale is Γ(2−α)/Γ(1−α), the degree-independent part of the mean gap.
	gapScale float64
}

// New creates a Sampler drawing from src.
func New(params Params, src rand.Source) (*Sampler, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sampling parameters: %w", err)
	}
	if src == nil {
		return nil, fmt.Errorf("random source is required")
	}
	return &Sampler{
		params:   params,
		rng:      rand.New(src),
		lifetime: distuv.Exponential{Rate: params.Lambda, Src: src},
		gapScale: math.Gamma(2-params.Alpha) / math.Gamma(1-params.Alpha),
	}, nil
}

// NewSeeded creates a Sampler over a PCG stream derived from seed.
func NewSeeded(params Params, seed uint64) (*Sampler, error) {
	return New(params, rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Params returns the parameters the sampler was built with.
func (s *Sampler) Params() Params {
	return s.params
}

// Lifetime draws a lifetime from the exponential distribution with rate λ,
// rounded to the nearest integer. Zero draws are redrawn, so the result is
// always at least 1.
func (s *Sampler) Lifetime() int {
	for {
		if life := int(math.Round(s.lifetime.Rand())); life > 0 {
			return life
		}
	}
}

// TimeGap returns the sleep interval of a node with the given degree: the
// mean of the power law with exponential cutoff p(δ) ∝ δ^−α·exp(−β·d·δ),
// Γ(2−α) / (β·d·Γ(1−α)), rounded. The result is at least 1 and never more
// than lifetime; for lifetime < 1 the node is inactive and lifetime is
// returned unchanged.
func (s *Sampler) TimeGap(degree, lifetime int) int {
	if lifetime < 1 {
		return lifetime
	}
	if degree < 1 {
		degree = 1
	}
	mean := s.gapScale / (s.params.Beta * float64(degree))
	if !(mean < float64(lifetime)) {
		return lifetime
	}
	gap := int(math.Round(mean))
	if gap < 1 {
		// High degrees round the mean down to zero.
		gap = 1
	}
	return gap
}

// Pick returns an index drawn uniformly from [0, n). n must be positive.
func (s *Sampler) Pick(n int) int {
	return s.rng.IntN(n)
}

// Between returns an integer drawn uniformly from [lo, hi] inclusive.
func (s *Sampler) Between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.IntN(hi-lo+1)
}
