package pipeline

import (
	"testing"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestInterpolateNDVI(t *testing.T) {
	d0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	series := []domain.Point{
		{Date: d0, Value: 0.4},
		{Date: d0.AddDate(0, 0, 16), Value: 0.8},
	}

	tests := []struct {
		name   string
		date   time.Time
		want   float64
		wantOK bool
	}{
		{"before first sample", d0.AddDate(0, 0, -1), 0, false},
		{"on a sample", d0, 0.4, true},
		{"between samples", d0.AddDate(0, 0, 4), 0.5, true},
		{"on last sample", d0.AddDate(0, 0, 16), 0.8, true},
		{"after last sample holds", d0.AddDate(0, 0, 30), 0.8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := interpolateNDVI(series, tt.date)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestYearsOrDefault(t *testing.T) {
	y, err := yearsOrDefault(0)
	assert.NoError(t, err)
	assert.Equal(t, defaultYears, y)

	y, err = yearsOrDefault(maxYears)
	assert.NoError(t, err)
	assert.Equal(t, maxYears, y)

	_, err = yearsOrDefault(maxYears + 1)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
