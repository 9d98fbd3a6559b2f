// Package presenter turns a lookup result into the view the dispatcher UI
// renders: distances in km and miles, "3h 05m" travel times, the confidence
// and coverage notes, and the top-two choice prompt.
package presenter

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/oncall-dispatch/backend/internal/grid"
	"github.com/oncall-dispatch/backend/internal/models"
	"github.com/oncall-dispatch/backend/internal/service"
	"github.com/oncall-dispatch/backend/internal/utils"
)

// FormatKmAndMiles renders "235 km (146 mi)", or "N/A" for an unknown
// distance.
func FormatKmAndMiles(km *float64) string {
	if km == nil || math.IsNaN(*km) || math.IsInf(*km, 0) {
		return "N/A"
	}
	return fmt.Sprintf("%d km (%d mi)", int64(math.Round(*km)), int64(math.Round(utils.KmToMiles(*km))))
}

// FormatHoursHM renders hours as "3h 05m". Unknown is "".
func FormatHoursHM(hours *float64) string {
	if hours == nil || math.IsNaN(*hours) || math.IsInf(*hours, 0) {
		return ""
	}
	total := int64(math.Round(*hours * 60))
	return fmt.Sprintf("%dh %02dm", total/60, total%60)
}

func ConfidenceNote(c models.Confidence) string {
	switch c {
	case models.ConfidenceHigh:
		return "High: clear congruence (the closest area is sufficiently far away from the alternatives)."
	case models.ConfidenceMedium:
		return "Medium: good match, but a close alternative exists."
	}
	return "Low: multiple markets are very close, likely a boundary/ambiguous area."
}

// CoverageTitle is the short badge shown next to the coverage note.
func CoverageTitle(c models.Coverage) string {
	switch c {
	case models.CoverageVerify:
		return "Check"
	case models.CoverageUnsupported:
		return "Coverage?"
	}
	return "Supported"
}

func CoverageNote(c models.Coverage) string {
	switch c {
	case models.CoverageVerify:
		return "ETA is between 3h and 3h 30m (borderline). Please verify City/State before confirming."
	case models.CoverageUnsupported:
		return "ETA exceeds 3h 30m. This area may be outside on-call coverage. Verify ticket details; if correct, escalate/manual selection."
	}
	return "ETA is within 3 hours coverage. The result can often be adopted."
}

// RequireChoice reports whether the dispatcher has to pick one of the top
// two before technician details are shown.
func RequireChoice(res models.Resolution) bool {
	if res.UserSelected || len(res.Alternates) < 2 {
		return false
	}
	return res.Confidence == models.ConfidenceLow || res.Confidence == models.ConfidenceMedium
}

type MarketView struct {
	DisplayName  string `json:"display_name"`
	CenterZip    string `json:"center_zip"`
	Info         string `json:"info,omitempty"`
	UserSelected bool   `json:"user_selected"`
}

type AlternateView struct {
	Index      int      `json:"index"`
	Market     string   `json:"market"`
	CenterZip  string   `json:"center_zip"`
	TechName   string   `json:"tech_name,omitempty"`
	Distance   string   `json:"distance"`
	DistanceKm *float64 `json:"distance_km"`
	Reserved   bool     `json:"reserved"`
	Label      string   `json:"label"`
}

type TechnicianView struct {
	ID     string `json:"tech_id"`
	Name   string `json:"name"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
	Region string `json:"region"`
	Zone   string `json:"zone"`
	Type   string `json:"type"`
}

type NonAvailabilityView struct {
	Date    string                         `json:"date"`
	State   string                         `json:"state"`
	Records []models.NonAvailabilityRecord `json:"records"`
	Message string                         `json:"message,omitempty"`
}

// View is one rendered lookup.
type View struct {
	InputZip  string     `json:"input_zip"`
	CityState string     `json:"city_state"`
	Date      string     `json:"date"`
	AMPM      string     `json:"ampm,omitempty"`
	WeekRange string     `json:"week_range"`
	Market    MarketView `json:"market"`

	Distance       string            `json:"distance"`
	DistanceKm     *float64          `json:"distance_km"`
	ETA            string            `json:"eta,omitempty"`
	ETAHours       *float64          `json:"eta_hours"`
	Confidence     models.Confidence `json:"confidence"`
	ConfidenceNote string            `json:"confidence_note"`
	NextDelta      string            `json:"next_delta,omitempty"`
	Coverage       models.Coverage   `json:"coverage"`
	CoverageTitle  string            `json:"coverage_title"`
	CoverageNote   string            `json:"coverage_note"`
	Warnings       []string          `json:"warnings"`

	RequireChoice bool            `json:"require_choice"`
	Choices       []AlternateView `json:"choices"`

	Cell               string          `json:"cell,omitempty"`
	TechID             string          `json:"tech_id,omitempty"`
	Reserved           bool            `json:"reserved"`
	ReservedBlocked    bool            `json:"reserved_blocked"`
	ReservedNotice     string          `json:"reserved_notice,omitempty"`
	Technician         *TechnicianView `json:"technician"`
	TechnicianNotFound string          `json:"technician_not_found_reason,omitempty"`

	NonAvailability NonAvailabilityView `json:"non_availability"`
}

// Render builds the view for a lookup.
func Render(out service.LookupResult) View {
	res := out.Resolution
	v := View{
		InputZip:  out.InputZip,
		CityState: strings.ToUpper(res.Location.City) + " / " + res.Location.State,
		Date:      grid.FormatYMD(res.Date),
		AMPM:      string(out.Hint),
		WeekRange: res.Week.Range(),
		Market: MarketView{
			DisplayName:  res.Market.DisplayName,
			CenterZip:    res.Market.CenterZip,
			Info:         res.Market.InfoText,
			UserSelected: res.UserSelected,
		},
		Distance:       FormatKmAndMiles(res.DistanceKm),
		DistanceKm:     res.DistanceKm,
		ETA:            FormatHoursHM(res.ETAHours),
		ETAHours:       res.ETAHours,
		Confidence:     res.Confidence,
		ConfidenceNote: ConfidenceNote(res.Confidence),
		Coverage:       res.Coverage,
		CoverageTitle:  CoverageTitle(res.Coverage),
		CoverageNote:   CoverageNote(res.Coverage),
		Warnings:       append([]string{}, res.Warnings...),
		RequireChoice:  RequireChoice(res),
		Choices:        alternates(res.Alternates),
	}
	v.NonAvailability = nonAvailability(out.NonAvailabilityDate, res.State, out.NonAvailable)
	if res.DeltaKm != nil {
		v.NextDelta = FormatKmAndMiles(res.DeltaKm)
	}
	if v.RequireChoice {
		return v
	}

	if res.Cell != nil {
		v.Cell = res.Cell.Raw
		v.TechID = res.Cell.TechID
	}
	v.Reserved = res.Reserved
	v.ReservedBlocked = res.ReservedBlocked
	if res.ReservedBlocked {
		v.ReservedNotice = fmt.Sprintf("This region/week is marked Reserved. Because the chosen date %s is not today's date, tech details will not be displayed. Please choose another tech (not Reserved).", v.Date)
		return v
	}
	v.TechnicianNotFound = res.TechNotFound
	if t := res.Technician; t != nil {
		v.Technician = &TechnicianView{
			ID:     t.ID,
			Name:   t.FullName(),
			City:   t.City,
			State:  t.State,
			Zip:    t.Zip,
			Region: t.Region,
			Zone:   t.Zone,
			Type:   t.Type,
		}
	}
	return v
}

func alternates(alts []models.CandidateScore) []AlternateView {
	out := make([]AlternateView, 0, len(alts))
	for i, a := range alts {
		av := AlternateView{
			Index:      i,
			Market:     a.Market.DisplayName,
			CenterZip:  a.Market.CenterZip,
			TechName:   a.TechName,
			Distance:   FormatKmAndMiles(a.DistanceKm),
			DistanceKm: a.DistanceKm,
			Reserved:   a.Reserved,
		}
		parts := []string{av.Market}
		if av.TechName != "" {
			parts = append(parts, av.TechName)
		}
		parts = append(parts, av.Distance)
		av.Label = "Use: " + strings.Join(parts, " / ")
		out = append(out, av)
	}
	return out
}

func nonAvailability(date time.Time, state string, recs []models.NonAvailabilityRecord) NonAvailabilityView {
	v := NonAvailabilityView{
		Date:    grid.FormatYMD(date),
		State:   state,
		Records: append([]models.NonAvailabilityRecord{}, recs...),
	}
	switch {
	case state == "":
		v.Message = "Enter State (2-letter) to show Non Available Tech for the same date/state."
	case len(recs) == 0:
		v.Message = fmt.Sprintf("No non-available tech for %s on %s.", state, v.Date)
	}
	return v
}
