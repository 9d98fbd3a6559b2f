// Package rotation parses the weekly on-call rotation sheet into week
// intervals and market rows.
package rotation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/oncall-dispatch/backend/internal/errs"
	"github.com/oncall-dispatch/backend/internal/grid"
	"github.com/oncall-dispatch/backend/internal/models"
)

var (
	// ReserveMarker flags a tech cell held back from the normal pool.
	ReserveMarker = regexp.MustCompile(`(?i)reserve`)
	// MarketReserveMarker flags a market whose note reserves every week.
	MarketReserveMarker = regexp.MustCompile(`(?i)\breserv`)
	// NoteKeywords picks the informative lines out of a market's note cells.
	NoteKeywords = regexp.MustCompile(`(?i)(schedule|effective|after hours|on\s*call|rotation|reserve)`)

	techIDRe      = regexp.MustCompile(`\b(\d{4,6})\b`)
	centerZipRe   = regexp.MustCompile(`\d{5}`)
	bareDigitsRe  = regexp.MustCompile(`^\d{4,5}$`)
	bareZipLineRe = regexp.MustCompile(`^\d{5}$`)
)

// Schedule is a parsed rotation sheet. Grid is the cleaned sheet the weeks
// and markets were read from.
type Schedule struct {
	Weeks           []models.WeekInterval
	Markets         []models.MarketRow
	Grid            grid.Grid
	FirstDateColumn int
}

// Parse cleans g with the catalog and reads its week columns and market rows.
func Parse(g grid.Grid, cat *Catalog) (*Schedule, error) {
	if cat == nil {
		cat = DefaultCatalog()
	}
	g = cat.Clean(g).Rectangular()

	startRow := findMarkerRow(g, "start")
	endRow := findMarkerRow(g, "end")
	if startRow < 0 || endRow < 0 {
		return nil, &errs.StructureError{Reason: "could not find the Start/End rows in the rotation sheet"}
	}

	firstDateCol := -1
	for c, cell := range g.Row(startRow) {
		if _, ok := grid.ParseDate(cell); ok {
			firstDateCol = c
			break
		}
	}
	if firstDateCol < 0 {
		return nil, &errs.StructureError{Reason: "no parseable week start dates in the Start row"}
	}

	weeks, err := parseWeeks(g, startRow, endRow, firstDateCol)
	if err != nil {
		return nil, err
	}
	if len(weeks) == 0 {
		return nil, &errs.StructureError{Reason: "no week columns with both Start and End dates"}
	}

	markets := parseMarkets(g, weeks, firstDateCol, cat)
	if len(markets) == 0 {
		return nil, &errs.StructureError{Reason: "no market rows found (expected a ZIP in column A or B)"}
	}

	return &Schedule{Weeks: weeks, Markets: markets, Grid: g, FirstDateColumn: firstDateCol}, nil
}

// findMarkerRow returns the first row with a text cell containing marker,
// case-insensitively.
func findMarkerRow(g grid.Grid, marker string) int {
	for r, row := range g {
		for _, cell := range row {
			if cell.IsText() && strings.Contains(strings.ToLower(cell.Text), marker) {
				return r
			}
		}
	}
	return -1
}

func parseWeeks(g grid.Grid, startRow, endRow, firstDateCol int) ([]models.WeekInterval, error) {
	var weeks []models.WeekInterval
	lastStartCol := -1
	for c := firstDateCol; c < len(g[startRow]); c++ {
		if _, ok := grid.ParseDate(g.At(startRow, c)); ok {
			lastStartCol = c
		}
	}
	for c := firstDateCol; c <= lastStartCol; c++ {
		start, ok := grid.ParseDate(g.At(startRow, c))
		if !ok {
			continue
		}
		end, ok := grid.ParseDate(g.At(endRow, c))
		if !ok {
			if c != lastStartCol {
				continue
			}
			end = grid.AddDays(start, 6)
		}
		weeks = append(weeks, models.WeekInterval{Column: c, Start: start, End: end})
	}

	sort.SliceStable(weeks, func(i, j int) bool { return weeks[i].Start.Before(weeks[j].Start) })
	for i := 0; i < len(weeks)-1; i++ {
		if !weeks[i+1].Start.After(weeks[i].Start) {
			return nil, &errs.StructureError{Reason: fmt.Sprintf(
				"week columns %d and %d share start date %s",
				weeks[i].Column+1, weeks[i+1].Column+1, grid.FormatYMD(weeks[i].Start))}
		}
		weeks[i].End = grid.AddDays(weeks[i+1].Start, -1)
	}
	if n := len(weeks); n > 0 && weeks[n-1].End.Before(weeks[n-1].Start) {
		weeks[n-1].End = grid.AddDays(weeks[n-1].Start, 6)
	}
	return weeks, nil
}

func parseMarkets(g grid.Grid, weeks []models.WeekInterval, firstDateCol int, cat *Catalog) []models.MarketRow {
	weekCols := map[int]bool{}
	for _, w := range weeks {
		weekCols[w.Column] = true
	}
	sampleCol := weeks[0].Column

	var markets []models.MarketRow
	prev := -1
	for r := range g {
		center := ""
		for c := 0; c < 2 && c < firstDateCol; c++ {
			if center = centerCode(g.At(r, c)); center != "" {
				break
			}
		}
		hasData := !g.At(r, sampleCol).IsBlank()

		switch {
		case center != "" && hasData:
			m := models.MarketRow{
				GridRow:     r,
				CenterZip:   center,
				DisplayName: cat.DisplayName(center),
				InfoText:    ExtractInfo(g.Row(r), center, firstDateCol, weekCols),
			}
			if states, ok := cat.Split(center); ok {
				m.StateHint = states[0]
				m.SubIndex = intPtr(0)
			}
			markets = append(markets, m)
			prev = len(markets) - 1
		case center == "" && hasData && prev >= 0 && markets[prev].GridRow == r-1 && !isSubRow(markets[prev]):
			primary := &markets[prev]
			if primary.SubIndex == nil {
				primary.SubIndex = intPtr(0)
			}
			sub := models.MarketRow{
				GridRow:     r,
				CenterZip:   primary.CenterZip,
				DisplayName: primary.DisplayName,
				InfoText:    ExtractInfo(g.Row(r), primary.CenterZip, firstDateCol, weekCols),
				SubIndex:    intPtr(1),
			}
			if sub.InfoText == "" {
				sub.InfoText = primary.InfoText
			}
			if states, ok := cat.Split(primary.CenterZip); ok {
				sub.StateHint = states[1]
			}
			markets = append(markets, sub)
			prev = -1
		default:
			prev = -1
		}
	}
	return markets
}

func isSubRow(m models.MarketRow) bool {
	return m.SubIndex != nil && *m.SubIndex > 0
}

// centerCode reads a market center ZIP from a name column. At least four
// digits are required so row counters and week numbers are not taken for
// ZIPs; four-digit values get the leading zero spreadsheets drop.
func centerCode(c grid.Cell) string {
	switch c.Kind {
	case grid.KindNumber:
		if c.Number >= 1000 && c.Number < 100000 {
			return grid.CellZip(c)
		}
	case grid.KindText:
		s := strings.TrimSpace(c.Text)
		if m := centerZipRe.FindString(s); m != "" {
			return m
		}
		if bareDigitsRe.MatchString(s) {
			return grid.NormalizeZip(s)
		}
	}
	return ""
}

// ExtractInfo builds a market's note from its row. Lines carrying a note
// keyword win and are joined with " | "; otherwise the longest plain text
// cell left of the first date column is used. Week columns hold tech
// assignments and are not scanned.
func ExtractInfo(row []grid.Cell, center string, firstDateCol int, weekCols map[int]bool) string {
	var keyed []string
	seen := map[string]bool{}
	fallback := ""
	for c, cell := range row {
		if !cell.IsText() || weekCols[c] {
			continue
		}
		text := cell.Text
		if center != "" {
			text = strings.ReplaceAll(text, center, "")
		}
		for _, line := range strings.Split(strings.ReplaceAll(text, "\r", "\n"), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || bareZipLineRe.MatchString(line) {
				continue
			}
			if NoteKeywords.MatchString(line) && !seen[line] {
				seen[line] = true
				keyed = append(keyed, line)
			}
		}
		plain := strings.TrimSpace(text)
		if c < firstDateCol && plain != "" && !bareZipLineRe.MatchString(plain) && len(plain) > len(fallback) {
			fallback = plain
		}
	}
	if len(keyed) > 0 {
		return strings.Join(keyed, " | ")
	}
	return fallback
}

// ParseTechCell reads the technician id and reservation marker of one
// rotation cell.
func ParseTechCell(c grid.Cell) models.TechCell {
	if c.IsDate() {
		return models.TechCell{Raw: c.String()}
	}
	raw := strings.TrimSpace(c.String())
	out := models.TechCell{Raw: raw, Reserved: ReserveMarker.MatchString(raw)}
	if m := techIDRe.FindStringSubmatch(raw); m != nil {
		out.TechID = m[1]
	}
	return out
}

// Cell returns the assignment at the intersection of market m and week.
func (s *Schedule) Cell(m models.MarketRow, week int) models.TechCell {
	if week < 0 || week >= len(s.Weeks) {
		return models.TechCell{}
	}
	return ParseTechCell(s.Grid.At(m.GridRow, s.Weeks[week].Column))
}

// MarketReserved reports a market whose note reserves it outright.
func MarketReserved(m models.MarketRow) bool {
	return MarketReserveMarker.MatchString(m.InfoText)
}

func intPtr(v int) *int { return &v }
