package geocode

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dhconnelly/rtreego"

	"github.com/oncall-dispatch/backend/internal/grid"
	"github.com/oncall-dispatch/backend/internal/models"
	"github.com/oncall-dispatch/backend/internal/utils"
)

// nearestCandidates is how many planar neighbours are re-ranked by
// great-circle distance when snapping a coordinate to a ZIP.
const nearestCandidates = 8

// Index is the in-memory postal/ZIP table. It is immutable after NewIndex.
type Index struct {
	records     map[string]models.GeoRecord
	byCityState map[string][]string
	tree        *rtreego.Rtree
	skipped     int
}

type zipPoint struct {
	code string
	rect rtreego.Rect
}

func (z zipPoint) Bounds() rtreego.Rect { return z.rect }

// NewIndex builds the table from [code, lat, lon, city, state] rows. Rows
// without a code or with unparseable coordinates are skipped; a repeated
// code overwrites the earlier row.
func NewIndex(rows [][]string) *Index {
	idx := &Index{
		records:     make(map[string]models.GeoRecord, len(rows)),
		byCityState: map[string][]string{},
	}
	for _, row := range rows {
		rec, ok := parseGeoRow(row)
		if !ok {
			idx.skipped++
			continue
		}
		idx.records[rec.Code] = rec
	}

	idx.tree = rtreego.NewTree(2, 25, 50)
	for code, rec := range idx.records {
		key := cityStateKey(rec.City, rec.State)
		idx.byCityState[key] = append(idx.byCityState[key], code)
		idx.tree.Insert(zipPoint{code: code, rect: rtreego.Point{rec.Lat, rec.Lon}.ToRect(0.0001)})
	}
	for key := range idx.byCityState {
		sortCodes(idx.byCityState[key])
	}
	return idx
}

func parseGeoRow(row []string) (models.GeoRecord, bool) {
	field := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	code := grid.NormalizePostal(field(0))
	if code == "" {
		return models.GeoRecord{}, false
	}
	lat, err := strconv.ParseFloat(field(1), 64)
	if err != nil {
		return models.GeoRecord{}, false
	}
	lon, err := strconv.ParseFloat(field(2), 64)
	if err != nil {
		return models.GeoRecord{}, false
	}
	return models.GeoRecord{
		Code:  code,
		Lat:   lat,
		Lon:   lon,
		City:  strings.ToLower(field(3)),
		State: strings.ToUpper(field(4)),
	}, true
}

func cityStateKey(city, state string) string {
	return strings.ToLower(strings.Join(strings.Fields(city), " ")) + "|" + strings.ToUpper(strings.TrimSpace(state))
}

// sortCodes orders numeric ZIPs numerically and anything else lexically.
func sortCodes(codes []string) {
	sort.Slice(codes, func(i, j int) bool {
		a, errA := strconv.Atoi(codes[i])
		b, errB := strconv.Atoi(codes[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return codes[i] < codes[j]
	})
}

func (x *Index) Len() int { return len(x.records) }

// Skipped counts source rows dropped during NewIndex.
func (x *Index) Skipped() int { return x.skipped }

func (x *Index) Lookup(code string) (models.GeoRecord, bool) {
	if x == nil {
		return models.GeoRecord{}, false
	}
	rec, ok := x.records[grid.NormalizePostal(code)]
	return rec, ok
}

// FindByCityState returns the middle ZIP of all ZIPs for the city/state pair.
func (x *Index) FindByCityState(city, state string) (string, bool) {
	if x == nil {
		return "", false
	}
	codes := x.byCityState[cityStateKey(city, state)]
	if len(codes) == 0 {
		return "", false
	}
	return codes[len(codes)/2], true
}

// Nearest snaps a coordinate to the closest indexed ZIP.
func (x *Index) Nearest(lat, lon float64) (models.GeoRecord, bool) {
	if x == nil || len(x.records) == 0 {
		return models.GeoRecord{}, false
	}
	var (
		best   models.GeoRecord
		bestKm = -1.0
	)
	for _, s := range x.tree.NearestNeighbors(nearestCandidates, rtreego.Point{lat, lon}) {
		zp, ok := s.(zipPoint)
		if !ok {
			continue
		}
		rec := x.records[zp.code]
		km := utils.HaversineKm(lat, lon, rec.Lat, rec.Lon)
		if bestKm < 0 || km < bestKm || (km == bestKm && rec.Code < best.Code) {
			best, bestKm = rec, km
		}
	}
	return best, bestKm >= 0
}
