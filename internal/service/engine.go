package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oncall-dispatch/backend/internal/directory"
	"github.com/oncall-dispatch/backend/internal/errs"
	"github.com/oncall-dispatch/backend/internal/geocode"
	"github.com/oncall-dispatch/backend/internal/models"
	"github.com/oncall-dispatch/backend/internal/rotation"
	"github.com/oncall-dispatch/backend/internal/utils"
)

// Search tiers, in the order they are tried.
const (
	TierPrimary         = "primary"
	TierNextWeek        = "next_week"
	TierPreviousWeek    = "previous_week"
	TierAllMarkets      = "all_markets"
	TierAllNextWeek     = "all_markets_next_week"
	TierAllPreviousWeek = "all_markets_previous_week"
)

var ErrInvalidChoice = errors.New("choice is not one of the offered alternates")

// Dataset is everything one resolution reads. It is assembled from a session
// snapshot and never mutated.
type Dataset struct {
	Schedule  *rotation.Schedule
	Directory *directory.Directory
	Geo       *geocode.Index
	Catalog   *rotation.Catalog
}

type ResolveRequest struct {
	LocationCode string
	State        string
	WeekIndex    int
	// Date is the effective lookup date; Today the effective current date.
	Date  time.Time
	Today time.Time
}

type skipCounts struct {
	reserved    int
	noTechID    int
	notInDB     int
	noTechZip   int
	zipNotInGeo int
}

type pool struct {
	normal   []models.CandidateScore
	reserved []models.CandidateScore
	skipped  skipCounts
}

func (p pool) working() ([]models.CandidateScore, bool) {
	if len(p.normal) > 0 {
		return p.normal, false
	}
	return p.reserved, len(p.reserved) > 0
}

type attempt struct {
	tier    string
	markets []models.MarketRow
	week    int
	// note is added to the warnings when this attempt wins.
	note string
	// before is added to the warnings as soon as this attempt runs.
	before string
}

// Resolve finds the on-call market and technician nearest the ticket
// location, widening the search tier by tier until a candidate turns up.
func Resolve(ds Dataset, req ResolveRequest) (models.Resolution, error) {
	if ds.Catalog == nil {
		ds.Catalog = rotation.DefaultCatalog()
	}
	loc, ok := ds.Geo.Lookup(req.LocationCode)
	if !ok {
		return models.Resolution{}, &errs.UnknownLocationError{PostalCode: req.LocationCode}
	}
	sched := ds.Schedule
	if req.WeekIndex < 0 || req.WeekIndex >= len(sched.Weeks) {
		return models.Resolution{}, &errs.OutOfRangeError{Date: req.Date.Format(models.DateLayout)}
	}
	state := strings.ToUpper(strings.TrimSpace(req.State))
	isToday := req.Date.Equal(req.Today)

	var warnings []string
	markets := make([]models.MarketRow, 0, len(sched.Markets))
	for _, m := range sched.Markets {
		if ds.Catalog.AcceptsState(m, state) {
			markets = append(markets, m)
		}
	}
	usedStateFilter := state != ""
	if len(markets) == 0 {
		warnings = append(warnings, fmt.Sprintf("State %s is not covered in the OnCall markets list. Using ZIP-only matching across all markets.", state))
		markets = sched.Markets
		usedStateFilter = false
	}

	attempts := weekAttempts(sched.Weeks, markets, req.WeekIndex, TierPrimary, TierNextWeek, TierPreviousWeek,
		"No candidates found in the selected week column. Auto-switched to nearest available week: %s.")
	if usedStateFilter {
		relaxed := weekAttempts(sched.Weeks, sched.Markets, req.WeekIndex, TierAllMarkets, TierAllNextWeek, TierAllPreviousWeek,
			"Auto-switched to nearest available week: %s.")
		relaxed[0].before = fmt.Sprintf("No candidates found after applying State filter (%s). Retrying ZIP-only across all markets...", state)
		attempts = append(attempts, relaxed...)
	}

	var tiers []string
	for _, a := range attempts {
		tiers = append(tiers, a.tier)
		if a.before != "" {
			warnings = append(warnings, a.before)
		}
		p := collect(ds, loc, a.markets, a.week, isToday)
		cands, allReserved := p.working()
		if len(cands) == 0 {
			continue
		}
		if a.note != "" {
			warnings = append(warnings, a.note)
		}
		res := rank(cands, p.skipped, allReserved, warnings)
		res.Location = loc
		res.State = state
		res.Date = req.Date
		res.WeekIndex = a.week
		res.Week = sched.Weeks[a.week]
		res.Tiers = tiers
		attachTechnician(ds, &res, sched.Cell(res.Market, a.week), isToday)
		return res, nil
	}
	return models.Resolution{}, &errs.NoCandidatesError{State: state, Tiers: tiers}
}

// weekAttempts lists the selected week followed by its next and previous
// neighbours, when they exist.
func weekAttempts(weeks []models.WeekInterval, markets []models.MarketRow, week int, base, next, prev, note string) []attempt {
	out := []attempt{{tier: base, markets: markets, week: week}}
	if week+1 < len(weeks) {
		out = append(out, attempt{tier: next, markets: markets, week: week + 1, note: fmt.Sprintf(note, weeks[week+1].Range())})
	}
	if week-1 >= 0 {
		out = append(out, attempt{tier: prev, markets: markets, week: week - 1, note: fmt.Sprintf(note, weeks[week-1].Range())})
	}
	return out
}

func collect(ds Dataset, loc models.GeoRecord, markets []models.MarketRow, week int, isToday bool) pool {
	var p pool
	for _, m := range markets {
		cell := ds.Schedule.Cell(m, week)
		if cell.TechID == "" {
			p.skipped.noTechID++
			continue
		}
		tech, ok := ds.Directory.Lookup(cell.TechID)
		if !ok {
			p.skipped.notInDB++
			continue
		}
		if tech.Zip == "" {
			p.skipped.noTechZip++
			continue
		}
		techGeo, ok := ds.Geo.Lookup(tech.Zip)
		if !ok {
			p.skipped.zipNotInGeo++
			continue
		}
		cand := models.CandidateScore{
			Market:     m,
			DistanceKm: floatPtr(utils.HaversineKm(loc.Lat, loc.Lon, techGeo.Lat, techGeo.Lon)),
			TechID:     tech.ID,
			TechZip:    tech.Zip,
			TechName:   tech.FullName(),
			Reserved:   cell.Reserved || rotation.MarketReserved(m),
		}
		if cand.Reserved && !isToday {
			p.skipped.reserved++
			p.reserved = append(p.reserved, cand)
			continue
		}
		p.normal = append(p.normal, cand)
	}
	return p
}

func rank(cands []models.CandidateScore, skipped skipCounts, allReserved bool, warnings []string) models.Resolution {
	sorted := append([]models.CandidateScore(nil), cands...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].DistanceKm, sorted[j].DistanceKm
		switch {
		case a == nil && b == nil:
			return sorted[i].Market.GridRow < sorted[j].Market.GridRow
		case a == nil:
			return false
		case b == nil:
			return true
		case *a != *b:
			return *a < *b
		}
		return sorted[i].Market.GridRow < sorted[j].Market.GridRow
	})

	best := sorted[0]
	res := models.Resolution{
		Market:          best.Market,
		DistanceKm:      best.DistanceKm,
		ETAHours:        etaPtr(best.DistanceKm),
		CandidatesCount: len(sorted),
		AllReserved:     allReserved,
		Alternates:      []models.CandidateScore{best},
	}
	if len(sorted) > 1 {
		second := sorted[1]
		res.Alternates = append(res.Alternates, second)
		if best.DistanceKm != nil && second.DistanceKm != nil {
			res.DeltaKm = floatPtr(*second.DistanceKm - *best.DistanceKm)
		}
	}
	res.Confidence = Classify(res.DeltaKm, res.ETAHours)
	res.Coverage = CoverageFor(res.ETAHours)

	if allReserved {
		warnings = append(warnings, "All candidate markets are Reserved for the selected date. Showing the closest reserved market (tech details will be blocked unless date is today).")
	}
	if skipped.reserved > 0 {
		warnings = append(warnings, fmt.Sprintf("Reserved markets excluded for selected date: %d", skipped.reserved))
	}
	if skipped.noTechID > 0 {
		warnings = append(warnings, fmt.Sprintf("OnCall sheet has empty/unknown tech entries (skipped): %d", skipped.noTechID))
	}
	if skipped.notInDB > 0 {
		warnings = append(warnings, fmt.Sprintf("Tech ID not found in Tech DB (skipped): %d. Update Tech DB if OnCall changed", skipped.notInDB))
	}
	if skipped.noTechZip > 0 {
		warnings = append(warnings, fmt.Sprintf("Tech ZIP missing in Tech DB (skipped): %d", skipped.noTechZip))
	}
	if skipped.zipNotInGeo > 0 {
		warnings = append(warnings, fmt.Sprintf("Tech ZIP not found in ZIP DB (skipped): %d", skipped.zipNotInGeo))
	}
	res.Warnings = warnings
	return res
}

// attachTechnician fills the cell and technician identity for res.Market.
// A reserved assignment outside today keeps the market but hides who is on
// call.
func attachTechnician(ds Dataset, res *models.Resolution, cell models.TechCell, isToday bool) {
	if cell.Raw != "" {
		c := cell
		res.Cell = &c
	}
	res.Reserved = cell.Reserved || rotation.MarketReserved(res.Market)
	res.Technician = nil
	res.TechNotFound = ""

	if cell.TechID != "" {
		tech, ok := ds.Directory.Lookup(cell.TechID)
		switch {
		case !ok:
			res.TechNotFound = fmt.Sprintf("Tech ID %s not found in Tech DB. Please update Tech DB.", cell.TechID)
		case tech.Zip == "":
			res.TechNotFound = "Tech ZIP missing in Tech DB. Please update Tech DB."
		default:
			t := tech
			res.Technician = &t
		}
	}

	res.ReservedBlocked = res.Reserved && !isToday
	if res.ReservedBlocked || res.TechNotFound != "" {
		res.Technician = nil
	}
}

// ResolveChoice re-derives a result for an alternate the dispatcher picked
// explicitly. The week, date and reservation rules of base apply; the
// ranking is skipped and base's confidence, separation and warnings carry
// over. Only the market, technician and distance change.
func ResolveChoice(ds Dataset, base models.Resolution, choice int, today time.Time) (models.Resolution, error) {
	if choice < 0 || choice >= len(base.Alternates) {
		return models.Resolution{}, fmt.Errorf("%w: %d of %d", ErrInvalidChoice, choice, len(base.Alternates))
	}
	picked := base.Alternates[choice]

	res := base
	res.Warnings = append([]string(nil), base.Warnings...)
	res.Alternates = append([]models.CandidateScore(nil), base.Alternates...)
	res.Market = picked.Market
	res.UserSelected = true
	res.Cell = nil

	cell := ds.Schedule.Cell(picked.Market, base.WeekIndex)
	res.DistanceKm = picked.DistanceKm
	if tech, ok := ds.Directory.Lookup(cell.TechID); ok && tech.Zip != "" {
		if g, ok := ds.Geo.Lookup(tech.Zip); ok {
			res.DistanceKm = floatPtr(utils.HaversineKm(base.Location.Lat, base.Location.Lon, g.Lat, g.Lon))
		}
	}
	res.ETAHours = etaPtr(res.DistanceKm)
	res.Coverage = CoverageFor(res.ETAHours)

	attachTechnician(ds, &res, cell, base.Date.Equal(today))
	return res, nil
}
