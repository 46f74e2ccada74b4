package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradient(t *testing.T) {
	assert.Equal(t, []float64{1, 1.5, 2.5, 3}, gradient([]float64{1, 2, 4, 7}))
	assert.Equal(t, []float64{0}, gradient([]float64{5}))
	assert.Empty(t, gradient(nil))
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"empty", nil, 10, 0},
		{"single", []float64{0.7}, 10, 0.7},
		{"interpolated low rank", []float64{5, 1, 4, 2, 3}, 10, 1.4},
		{"median", []float64{5, 1, 4, 2, 3}, 50, 3},
		{"maximum", []float64{5, 1, 4, 2, 3}, 100, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, percentile(tt.values, tt.p), 1e-12)
		})
	}
}

func TestPercentile_DoesNotReorderInput(t *testing.T) {
	values := []float64{3, 1, 2}
	percentile(values, 50)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestFindPeaks(t *testing.T) {
	tests := []struct {
		name      string
		x         []float64
		minHeight float64
		distance  int
		want      []int
	}{
		{"two separated peaks", []float64{0, 1, 0, 2, 0}, 0, 2, []int{1, 3}},
		{"height filter", []float64{0, 1, 0, 3, 0}, 2, 2, []int{3}},
		{"closer than distance keeps higher", []float64{0, 2, 0, 3, 0}, 0, 3, []int{3}},
		{"odd plateau takes middle", []float64{0, 1, 1, 1, 0}, 0, 2, []int{2}},
		{"even plateau takes left middle", []float64{0, 1, 1, 0}, 0, 2, []int{1}},
		{"plateau at end is not a peak", []float64{0, 1, 1}, 0, 2, nil},
		{"edges are never peaks", []float64{3, 1, 2}, 0, 2, nil},
		{"monotonic", []float64{1, 2, 3, 4}, 0, 2, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findPeaks(tt.x, tt.minHeight, tt.distance))
		})
	}
}
