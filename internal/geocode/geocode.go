// Package geocode holds the postal/ZIP index and the optional external
// geocoder used when a city/state pair is not in the index.
package geocode

import (
	"context"
	"errors"
	"strings"
)

var ErrNotFound = errors.New("geocode not found")

type Geocoder interface {
	Geocode(ctx context.Context, query string) (lat float64, lon float64, displayName string, confidence float64, err error)
}

// BuildGeocodeQuery joins the non-empty parts into a free-form query,
// "Austin, TX, USA".
func BuildGeocodeQuery(city string, state string, country string) string {
	parts := []string{}
	for _, p := range []string{city, state, country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// CountryFor guesses the country of a two-letter region code.
func CountryFor(state string) string {
	if canadianProvinces[strings.ToUpper(strings.TrimSpace(state))] {
		return "Canada"
	}
	return "USA"
}

var canadianProvinces = map[string]bool{
	"AB": true, "BC": true, "MB": true, "NB": true, "NL": true, "NS": true, "NT": true,
	"NU": true, "ON": true, "PE": true, "QC": true, "SK": true, "YT": true,
}
