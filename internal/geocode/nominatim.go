package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// NominatimGeocoder queries an OSM Nominatim search endpoint. Results are
// cached per query and requests are throttled to RequestsPerSecond, Nominatim's
// public usage policy allows one per second.
type NominatimGeocoder struct {
	BaseURL           string
	UserAgent         string
	RequestsPerSecond float64
	Client            *http.Client

	mu      sync.Mutex
	limiter *rate.Limiter
	cache   map[string]nominatimResult
}

type nominatimResult struct {
	Lat         float64
	Lon         float64
	DisplayName string
	Confidence  float64
}

type nominatimItem struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
}

func (g *NominatimGeocoder) init() {
	if g.Client == nil {
		g.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if g.BaseURL == "" {
		g.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if g.UserAgent == "" {
		g.UserAgent = "oncall-dispatch-lookup"
	}
	if g.RequestsPerSecond <= 0 {
		g.RequestsPerSecond = 1
	}
	if g.cache == nil {
		g.cache = map[string]nominatimResult{}
	}
	if g.limiter == nil {
		g.limiter = rate.NewLimiter(rate.Limit(g.RequestsPerSecond), 1)
	}
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, query string) (float64, float64, string, float64, error) {
	g.mu.Lock()
	g.init()
	if cached, ok := g.cache[query]; ok {
		g.mu.Unlock()
		return cached.Lat, cached.Lon, cached.DisplayName, cached.Confidence, nil
	}
	limiter, client, baseURL, userAgent := g.limiter, g.Client, g.BaseURL, g.UserAgent
	g.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return 0, 0, "", 0, err
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&format=json&countrycodes=us,ca&limit=1", baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, 0, "", 0, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return 0, 0, "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, 0, "", 0, fmt.Errorf("nominatim http error: %s", resp.Status)
	}

	var items []nominatimItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return 0, 0, "", 0, err
	}
	result, err := parseNominatimItems(items)
	if err != nil {
		return 0, 0, "", 0, err
	}

	g.mu.Lock()
	g.cache[query] = result
	g.mu.Unlock()

	return result.Lat, result.Lon, result.DisplayName, result.Confidence, nil
}

func parseNominatimItems(items []nominatimItem) (nominatimResult, error) {
	if len(items) == 0 {
		return nominatimResult{}, ErrNotFound
	}
	lat, err := strconv.ParseFloat(items[0].Lat, 64)
	if err != nil {
		return nominatimResult{}, err
	}
	lon, err := strconv.ParseFloat(items[0].Lon, 64)
	if err != nil {
		return nominatimResult{}, err
	}
	if lat == 0 && lon == 0 {
		return nominatimResult{}, ErrNotFound
	}
	return nominatimResult{
		Lat:         lat,
		Lon:         lon,
		DisplayName: items[0].DisplayName,
		Confidence:  items[0].Importance,
	}, nil
}
