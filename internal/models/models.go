package models

import "time"

const DateLayout = "2006-01-02"

type GeoRecord struct {
	Code  string  `json:"code"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	City  string  `json:"city"`
	State string  `json:"state"`
}

type TechnicianRecord struct {
	ID        string `json:"tech_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Region    string `json:"region"`
	Zone      string `json:"zone"`
	Type      string `json:"type"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip,omitempty"`
}

func (t TechnicianRecord) FullName() string {
	if t.FirstName == "" {
		return t.LastName
	}
	if t.LastName == "" {
		return t.FirstName
	}
	return t.FirstName + " " + t.LastName
}

// WeekInterval is one rotation column. Start and End are calendar dates at
// UTC midnight.
type WeekInterval struct {
	Column int       `json:"column"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

func (w WeekInterval) Range() string {
	return w.Start.Format(DateLayout) + " → " + w.End.Format(DateLayout)
}

type MarketRow struct {
	GridRow     int    `json:"grid_row"`
	CenterZip   string `json:"center_zip"`
	DisplayName string `json:"display_name"`
	InfoText    string `json:"info_text,omitempty"`
	StateHint   string `json:"state_hint,omitempty"`
	SubIndex    *int   `json:"sub_index,omitempty"`
}

type TechCell struct {
	Raw      string `json:"raw"`
	TechID   string `json:"tech_id,omitempty"`
	Reserved bool   `json:"reserved"`
}

type NonAvailabilityRecord struct {
	Date   time.Time `json:"date"`
	Name   string    `json:"name"`
	State  string    `json:"state"`
	TechID string    `json:"tech_id,omitempty"`
}

type CandidateScore struct {
	Market     MarketRow `json:"market"`
	DistanceKm *float64  `json:"distance_km"`
	TechID     string    `json:"tech_id"`
	TechZip    string    `json:"tech_zip"`
	TechName   string    `json:"tech_name"`
	Reserved   bool      `json:"reserved"`
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

type Coverage string

const (
	CoverageSupported   Coverage = "Supported"
	CoverageVerify      Coverage = "Verify"
	CoverageUnsupported Coverage = "Possible unsupported"
)

type Resolution struct {
	Location        GeoRecord         `json:"location"`
	State           string            `json:"state"`
	Date            time.Time         `json:"date"`
	WeekIndex       int               `json:"week_index"`
	Week            WeekInterval      `json:"week"`
	Market          MarketRow         `json:"market"`
	Cell            *TechCell         `json:"cell,omitempty"`
	Technician      *TechnicianRecord `json:"technician"`
	TechNotFound    string            `json:"technician_not_found_reason,omitempty"`
	DistanceKm      *float64          `json:"distance_km"`
	DeltaKm         *float64          `json:"delta_km"`
	ETAHours        *float64          `json:"eta_hours"`
	Confidence      Confidence        `json:"confidence"`
	Coverage        Coverage          `json:"coverage"`
	Warnings        []string          `json:"warnings"`
	Alternates      []CandidateScore  `json:"alternates"`
	CandidatesCount int               `json:"candidates_count"`
	AllReserved     bool              `json:"all_reserved"`
	Reserved        bool              `json:"reserved"`
	ReservedBlocked bool              `json:"reserved_blocked"`
	UserSelected    bool              `json:"user_selected"`
	Tiers           []string          `json:"tiers"`
}
