package privacy

import (
	"math"
	"math/rand/v2"
	"testing"

	. "cohort/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestNoiseInjector_ScaleFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		epsilon  float64
		scale    float64
		expected float64
	}{
		{name: "unit scale", epsilon: 1.0, scale: 1.0, expected: 1.0},
		{name: "stronger privacy means more noise", epsilon: 0.5, scale: 1.0, expected: 2.0},
		{name: "multiplier widens noise", epsilon: 1.0, scale: 1.5, expected: 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNoiseInjector(tt.epsilon, tt.scale)
			assert.InDelta(t, tt.expected, n.MinimumNoiseLevel(), 1e-9)
		})
	}
}

func TestNoiseInjector_LaplaceSymmetry(t *testing.T) {
	// Mirrored uniform draws must produce mirrored noise.
	n1 := NewNoiseInjectorWithSource(1.0, 1.0, func() float64 { return 0.9 })
	n2 := NewNoiseInjectorWithSource(1.0, 1.0, func() float64 { return 0.1 })

	a := n1.Laplace(1.0)
	b := n2.Laplace(1.0)

	assert.Greater(t, a, 0.0)
	assert.Less(t, b, 0.0)
	assert.InDelta(t, a, -b, 1e-9)
}

func TestNoiseInjector_LaplaceMedianZero(t *testing.T) {
	n := NewNoiseInjectorWithSource(1.0, 1.0, func() float64 { return 0.5 })
	assert.Zero(t, n.Laplace(1.0))
}

func TestNoiseInjector_LaplaceFiniteAtUniformEndpoints(t *testing.T) {
	low := NewNoiseInjectorWithSource(1.0, 1.0, func() float64 { return 0 })
	high := NewNoiseInjectorWithSource(1.0, 1.0, func() float64 { return 1 })

	a := low.Laplace(1.0)
	b := high.Laplace(1.0)

	assert.False(t, math.IsInf(a, 0), "endpoint draw must stay finite")
	assert.False(t, math.IsInf(b, 0), "endpoint draw must stay finite")
	assert.Less(t, a, 0.0)
	assert.Greater(t, b, 0.0)
	assert.InDelta(t, a, -b, 1e-9)
}

func TestNoiseInjector_LaplaceDistribution(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	n := NewNoiseInjectorWithSource(1.0, 1.0, rng.Float64)

	const draws = 20000
	var sum, sumAbs float64
	for i := 0; i < draws; i++ {
		v := n.Laplace(1.0)
		sum += v
		sumAbs += math.Abs(v)
	}

	// Laplace(0, b): mean 0, mean absolute deviation b.
	assert.InDelta(t, 0.0, sum/draws, 0.05)
	assert.InDelta(t, 1.0, sumAbs/draws, 0.05)
}

func TestNoiseInjector_AddNoiseClampsAfterDraw(t *testing.T) {
	// A draw far below the floor must clamp to the floor, not re-center.
	n := NewNoiseInjectorWithSource(0.1, 1.0, func() float64 { return 0.001 })

	noised, noiseLevel := n.AddNoise(5, 1.0, 0, 100)

	assert.Equal(t, 0.0, noised)
	assert.InDelta(t, 10.0, noiseLevel, 1e-9)
}

func TestNoiseInjector_AddNoiseClampCeiling(t *testing.T) {
	n := NewNoiseInjectorWithSource(0.1, 1.0, func() float64 { return 0.999 })

	noised, _ := n.AddNoise(95, 1.0, 0, 100)
	assert.Equal(t, 100.0, noised)
}

func TestNoiseInjector_AddNoiseForDomains(t *testing.T) {
	tests := []struct {
		name     string
		dataType string
		value    float64
		max      float64
	}{
		{name: "adherence 0-100", dataType: DataTypeAdherence, value: 80, max: 100},
		{name: "side effect 0-10", dataType: DataTypeSideEffect, value: 9, max: 10},
		{name: "pattern 0-100", dataType: DataTypePattern, value: 50, max: 100},
		{name: "risk 0-100", dataType: DataTypeRisk, value: 10, max: 100},
		{name: "unknown type defaults to 0-100", dataType: "bogus", value: 50, max: 100},
	}

	rng := rand.New(rand.NewPCG(7, 0))
	n := NewNoiseInjectorWithSource(1.0, 1.0, rng.Float64)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 200; i++ {
				noised, noiseLevel := n.AddNoiseFor(tt.dataType, tt.value)
				assert.GreaterOrEqual(t, noised, 0.0)
				assert.LessOrEqual(t, noised, tt.max)
				assert.Equal(t, n.MinimumNoiseLevel(), noiseLevel)
			}
		})
	}
}

func TestNoiseInjector_IndependentDraws(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 0))
	n := NewNoiseInjectorWithSource(1.0, 1.0, rng.Float64)

	first, _ := n.AddNoiseFor(DataTypeAdherence, 50)
	second, _ := n.AddNoiseFor(DataTypeAdherence, 50)

	assert.NotEqual(t, first, second, "consecutive draws must not repeat noise")
}
