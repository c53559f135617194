package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateAverageFirstSample(t *testing.T) {
	tests := []struct {
		name    string
		average float64
		value   float64
	}{
		{name: "Zero prior average", average: 0, value: 42},
		{name: "Garbage prior average is ignored", average: 1e9, value: -3.5},
		{name: "Negative value", average: 7, value: -7},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.value, UpdateAverage(tc.average, tc.value, 0))
		})
	}
}

func TestUpdateAverageMatchesArithmeticMean(t *testing.T) {
	samples := []float64{4, 8, 15, 16, 23, 42, -7, 0.5, 1000, -273.15}

	avg := 0.0
	sum := 0.0
	for n, v := range samples {
		avg = UpdateAverage(avg, v, n)
		sum += v

		assert.InDelta(t, sum/float64(n+1), avg, 1e-9)
	}
}

func TestUpdateAverageSingleStep(t *testing.T) {
	// mean of {10, 20} is 15
	assert.InDelta(t, 15.0, UpdateAverage(10, 20, 1), 1e-12)
	// mean of three 5s stays 5
	assert.InDelta(t, 5.0, UpdateAverage(5, 5, 2), 1e-12)
}
