// Package fields resolves loosely named source columns onto strict record
// shapes. Every table lists, per output position, the accepted header names in
// preference order.
package fields

import (
	"strings"
)

// Column is one output position and the header names that may feed it.
type Column struct {
	Name    string
	Aliases []string
}

type Table []Column

// Technician rows: [tech_id, first_name, last_name, region, zone, type, city, state, zip].
var Technician = Table{
	{"tech_id", []string{"tech_id", "techid", "techid_2", "tech", "id", "tech_number", "col_1"}},
	{"first_name", []string{"first_name", "firstname", "first", "col_2"}},
	{"last_name", []string{"last_name", "lastname", "last", "col_3"}},
	{"region", []string{"region", "col_4"}},
	{"zone", []string{"zone", "col_5"}},
	{"type", []string{"type", "tech_type", "col_6"}},
	{"city", []string{"city", "col_7"}},
	{"state", []string{"state", "st", "col_8"}},
	{"zip", []string{"zip", "zip_code", "zipcode", "postal_code", "col_9"}},
}

// Geo rows: [code, lat, lon, city, state].
var Geo = Table{
	{"code", []string{"zip", "zip_code", "zipcode", "postal_code", "code", "col_1"}},
	{"lat", []string{"lat", "latitude", "col_2"}},
	{"lon", []string{"lon", "lng", "longitude", "col_3"}},
	{"city", []string{"city", "col_4"}},
	{"state", []string{"state", "state_id", "province", "col_5"}},
}

// NormalizeHeader lowercases a header, drops a BOM and joins words with "_",
// so "Tech ID", "tech-id" and "tech_id" all compare equal.
func NormalizeHeader(h string) string {
	h = strings.ReplaceAll(h, "\ufeff", "")
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer("-", " ", ".", " ", "#", " number ").Replace(h)
	return strings.Join(strings.Fields(h), "_")
}

// Index maps normalized header names to their positions. The first
// occurrence of a repeated header wins.
func Index(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := NormalizeHeader(h)
		if _, ok := idx[key]; !ok && key != "" {
			idx[key] = i
		}
	}
	return idx
}

func getField(rec []string, idx map[string]int, name string) string {
	pos, ok := idx[name]
	if !ok || pos >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[pos])
}

// GetFieldAny returns the first non-empty value among names.
func GetFieldAny(rec []string, idx map[string]int, names ...string) string {
	for _, name := range names {
		if v := getField(rec, idx, NormalizeHeader(name)); v != "" {
			return v
		}
	}
	return ""
}

// Has reports whether any alias of column name is present in the header.
func (t Table) Has(idx map[string]int, name string) bool {
	for _, col := range t {
		if col.Name != name {
			continue
		}
		for _, a := range col.Aliases {
			if _, ok := idx[a]; ok {
				return true
			}
		}
	}
	return false
}

// Project turns a positional record into the table's ordered tuple.
func (t Table) Project(rec []string, idx map[string]int) []string {
	out := make([]string, len(t))
	for i, col := range t {
		out[i] = GetFieldAny(rec, idx, col.Aliases...)
	}
	return out
}

// ProjectMap does the same for a keyed record, as returned by JSON services
// and database rows.
func (t Table) ProjectMap(rec map[string]string) []string {
	norm := make(map[string]string, len(rec))
	for k, v := range rec {
		key := NormalizeHeader(k)
		if _, ok := norm[key]; !ok || norm[key] == "" {
			norm[key] = strings.TrimSpace(v)
		}
	}
	out := make([]string, len(t))
	for i, col := range t {
		for _, a := range col.Aliases {
			if v := norm[a]; v != "" {
				out[i] = v
				break
			}
		}
	}
	return out
}
