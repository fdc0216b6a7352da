package privacy

import (
	"math"
	"math/rand/v2"

	. "cohort/internal/models"
)

// MetricDomain describes the valid range and sensitivity of the
// primary numeric metric of one data type. Sensitivity and epsilon are
// configuration, never hard-coded at call sites, so the privacy/utility
// tradeoff stays tunable per category.
type MetricDomain struct {
	Sensitivity float64
	Min         float64
	Max         float64
}

var metricDomains = map[string]MetricDomain{
	DataTypeAdherence:  {Sensitivity: 1.0, Min: 0, Max: 100},
	DataTypeSideEffect: {Sensitivity: 1.0, Min: 0, Max: 10},
	DataTypePattern:    {Sensitivity: 1.0, Min: 0, Max: 100},
	DataTypeRisk:       {Sensitivity: 1.0, Min: 0, Max: 100},
}

// NoiseInjector applies the Laplace mechanism. Each draw pulls fresh
// uniform randomness, so noise across fields of one record stays
// independent and leaks nothing through covariance.
type NoiseInjector struct {
	epsilon float64
	scale   float64
	uniform func() float64
}

func NewNoiseInjector(epsilon, scaleMultiplier float64) *NoiseInjector {
	return &NoiseInjector{
		epsilon: epsilon,
		scale:   scaleMultiplier,
		uniform: rand.Float64,
	}
}

// NewNoiseInjectorWithSource fixes the uniform source. Distributional
// tests use this to make draws reproducible.
func NewNoiseInjectorWithSource(epsilon, scaleMultiplier float64, uniform func() float64) *NoiseInjector {
	return &NoiseInjector{epsilon: epsilon, scale: scaleMultiplier, uniform: uniform}
}

// uniformTail keeps |u| strictly below 0.5 so the inverse CDF never
// hits log(0). A source returning exactly 0 or 1 yields a large finite
// draw instead of ±Inf.
const uniformTail = 1e-12

// Laplace draws one sample from Laplace(0, sensitivity*scale/epsilon)
// via inverse transform sampling.
func (n *NoiseInjector) Laplace(sensitivity float64) float64 {
	b := n.noiseScale(sensitivity)
	u := n.uniform() - 0.5
	switch {
	case u == 0:
		return 0
	case u <= -0.5+uniformTail:
		u = -0.5 + uniformTail
	case u >= 0.5-uniformTail:
		u = 0.5 - uniformTail
	}
	return -b * sign(u) * math.Log(1-2*math.Abs(u))
}

// AddNoise perturbs value and clamps to [min, max]. Clamping happens
// after the draw: clamping the input first would bias the mechanism.
func (n *NoiseInjector) AddNoise(value, sensitivity, min, max float64) (float64, float64) {
	noised := value + n.Laplace(sensitivity)
	if noised < min {
		noised = min
	}
	if noised > max {
		noised = max
	}
	return noised, n.noiseScale(sensitivity)
}

// AddNoiseFor perturbs the primary metric of a data type using its
// configured domain.
func (n *NoiseInjector) AddNoiseFor(dataType string, value float64) (float64, float64) {
	domain, ok := metricDomains[dataType]
	if !ok {
		domain = MetricDomain{Sensitivity: 1.0, Min: 0, Max: 100}
	}
	return n.AddNoise(value, domain.Sensitivity, domain.Min, domain.Max)
}

// MinimumNoiseLevel is the smallest Laplace scale a record may carry
// and still pass the noise-sufficiency check for this injector.
func (n *NoiseInjector) MinimumNoiseLevel() float64 {
	return n.noiseScale(1.0)
}

func (n *NoiseInjector) noiseScale(sensitivity float64) float64 {
	return sensitivity * n.scale / n.epsilon
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
