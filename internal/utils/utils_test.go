package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineSymmetricAndZero(t *testing.T) {
	points := [][2]float64{
		{30.2672, -97.7431},
		{29.7604, -95.3698},
		{32.7767, -96.7970},
		{47.6062, -122.3321},
		{-33.8688, 151.2093},
	}
	for _, a := range points {
		assert.Zero(t, HaversineKm(a[0], a[1], a[0], a[1]))
		for _, b := range points {
			ab := HaversineKm(a[0], a[1], b[0], b[1])
			ba := HaversineKm(b[0], b[1], a[0], a[1])
			assert.InDelta(t, ab, ba, 1e-9)
			if a != b {
				assert.Greater(t, ab, 0.0)
			}
		}
	}
}

func TestHaversineKnownDistances(t *testing.T) {
	assert.InDelta(t, 235, HaversineKm(30.2672, -97.7431, 29.7604, -95.3698), 5)
	assert.InDelta(t, 293, HaversineKm(30.2672, -97.7431, 32.7767, -96.7970), 5)
}

func TestKmToMiles(t *testing.T) {
	assert.InDelta(t, 62.1371, KmToMiles(100), 1e-9)
	assert.False(t, math.IsNaN(KmToMiles(0)))
}

func TestETagStable(t *testing.T) {
	a := ETag([]byte("rotation"))
	assert.Equal(t, a, ETag([]byte("rotation")))
	assert.NotEqual(t, a, ETag([]byte("rotation2")))
	assert.Equal(t, byte('"'), a[0])
}
