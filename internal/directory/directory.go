// Package directory is the in-memory technician table.
package directory

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/oncall-dispatch/backend/internal/errs"
	"github.com/oncall-dispatch/backend/internal/fields"
	"github.com/oncall-dispatch/backend/internal/grid"
	"github.com/oncall-dispatch/backend/internal/models"
)

// Directory is immutable after New.
type Directory struct {
	byID      map[string]models.TechnicianRecord
	byInitial map[string][]string
	skipped   int
}

// New builds the directory from ordered rows
// [tech_id, first_name, last_name, region, zone, type, city, state, zip].
// Rows without an id are skipped; a repeated id overwrites the earlier row.
func New(rows [][]string) *Directory {
	d := &Directory{
		byID:      make(map[string]models.TechnicianRecord, len(rows)),
		byInitial: map[string][]string{},
	}
	for _, row := range rows {
		rec, ok := parseRow(row)
		if !ok {
			d.skipped++
			continue
		}
		d.byID[rec.ID] = rec
	}
	for id, rec := range d.byID {
		if key := initialKey(rec.FirstName, rec.LastName); key != "" {
			d.byInitial[key] = append(d.byInitial[key], id)
		}
	}
	return d
}

func parseRow(row []string) (models.TechnicianRecord, bool) {
	f := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	id := normalizeID(f(0))
	if id == "" {
		return models.TechnicianRecord{}, false
	}
	return models.TechnicianRecord{
		ID:        id,
		FirstName: f(1),
		LastName:  f(2),
		Region:    f(3),
		Zone:      f(4),
		Type:      f(5),
		City:      f(6),
		State:     strings.ToUpper(f(7)),
		Zip:       grid.NormalizeZip(f(8)),
	}, true
}

// normalizeID drops the ".0" a spreadsheet adds to numeric ids.
func normalizeID(id string) string {
	return strings.TrimSuffix(strings.TrimSpace(id), ".0")
}

func (d *Directory) Len() int { return len(d.byID) }

func (d *Directory) Skipped() int { return d.skipped }

func (d *Directory) Lookup(id string) (models.TechnicianRecord, bool) {
	if d == nil {
		return models.TechnicianRecord{}, false
	}
	rec, ok := d.byID[normalizeID(id)]
	return rec, ok
}

// MatchByInitialAndLast resolves names written as "F. Oshinowo" or
// "Folake Oshinowo" to a technician. It only answers when exactly one
// technician shares the first initial and last name.
func (d *Directory) MatchByInitialAndLast(name string) (models.TechnicianRecord, bool) {
	if d == nil {
		return models.TechnicianRecord{}, false
	}
	parts := strings.Fields(strings.NewReplacer(".", " ", ",", " ").Replace(name))
	if len(parts) < 2 {
		return models.TechnicianRecord{}, false
	}
	ids := d.byInitial[initialKey(parts[0], parts[len(parts)-1])]
	if len(ids) != 1 {
		return models.TechnicianRecord{}, false
	}
	return d.byID[ids[0]], true
}

func initialKey(first, last string) string {
	first, last = fold(first), fold(last)
	if first == "" || last == "" {
		return ""
	}
	r := []rune(first)
	return string(r[0]) + "|" + last
}

// fold lowercases and strips diacritics so "José" matches "Jose".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// RowsFromSheet reads a technician workbook sheet: the first non-blank row is
// the header, columns are matched by alias, rows whose Country is set to
// anything but US are dropped.
func RowsFromSheet(g grid.Grid) ([][]string, error) {
	hdr := -1
	for r, row := range g {
		for _, c := range row {
			if !c.IsBlank() {
				hdr = r
				break
			}
		}
		if hdr >= 0 {
			break
		}
	}
	if hdr < 0 {
		return nil, &errs.StructureError{Reason: "technician sheet is empty"}
	}
	header := cellStrings(g[hdr])
	idx := fields.Index(header)
	if !fields.Technician.Has(idx, "tech_id") {
		return nil, &errs.StructureError{Reason: "technician sheet has no Tech ID column"}
	}

	var rows [][]string
	for _, row := range g[hdr+1:] {
		rec := cellStrings(row)
		country := strings.ToUpper(fields.GetFieldAny(rec, idx, "country"))
		if country != "" && country != "US" && country != "USA" {
			continue
		}
		out := fields.Technician.Project(rec, idx)
		if out[0] == "" {
			continue
		}
		rows = append(rows, out)
	}
	return rows, nil
}

func cellStrings(row []grid.Cell) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = strings.TrimSpace(c.String())
	}
	return out
}
