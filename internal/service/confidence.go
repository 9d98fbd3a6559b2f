package service

import "github.com/oncall-dispatch/backend/internal/models"

// Travel-time model and rating thresholds. These are tunable business rules.
const (
	RoadFactor      = 1.25
	AverageSpeedKmh = 95.0

	HighSeparationKm   = 150.0
	MediumSeparationKm = 75.0

	SupportedETAHours = 3.0
	MaxETAHours       = 3.5
)

// ETAHours estimates driving time from a straight-line distance.
func ETAHours(distanceKm float64) float64 {
	return distanceKm * RoadFactor / AverageSpeedKmh
}

// Classify rates how clearly the best candidate beats the runner-up, then caps
// the rating by travel time. delta is nil when there is no runner-up, eta is
// nil when the best distance is unknown.
func Classify(delta, eta *float64) models.Confidence {
	conf := models.ConfidenceLow
	switch {
	case delta == nil || *delta >= HighSeparationKm:
		conf = models.ConfidenceHigh
	case *delta >= MediumSeparationKm:
		conf = models.ConfidenceMedium
	}
	if eta == nil {
		return conf
	}
	switch {
	case *eta > MaxETAHours:
		conf = models.ConfidenceLow
	case *eta > SupportedETAHours && conf == models.ConfidenceHigh:
		conf = models.ConfidenceMedium
	}
	return conf
}

// CoverageFor buckets a travel time for display. It never gates a result.
func CoverageFor(eta *float64) models.Coverage {
	switch {
	case eta == nil || *eta <= SupportedETAHours:
		return models.CoverageSupported
	case *eta <= MaxETAHours:
		return models.CoverageVerify
	}
	return models.CoverageUnsupported
}

func etaPtr(distanceKm *float64) *float64 {
	if distanceKm == nil {
		return nil
	}
	v := ETAHours(*distanceKm)
	return &v
}

func floatPtr(v float64) *float64 { return &v }
