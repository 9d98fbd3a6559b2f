package rotation

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oncall-dispatch/backend/internal/grid"
	"github.com/oncall-dispatch/backend/internal/models"
)

// MarketName maps a display name used in rotation sheets to its center ZIP.
type MarketName struct {
	Name string `yaml:"name"`
	Zip  string `yaml:"zip"`
}

// CoverageRule lists the ticket states a market accepts. The first rule whose
// pattern matches the market display name decides.
type CoverageRule struct {
	Pattern *regexp.Regexp
	States  []string
}

// Catalog holds the tunable market tables: name→ZIP substitution, state
// coverage and the state pair used for dual-state merged rows.
type Catalog struct {
	Names       []MarketName
	Coverage    []CoverageRule
	SplitStates map[string][]string

	namePatterns []*regexp.Regexp
	zipToName    map[string]string
}

type catalogFile struct {
	Markets  []MarketName `yaml:"markets"`
	Coverage []struct {
		Pattern string   `yaml:"pattern"`
		States  []string `yaml:"states"`
	} `yaml:"coverage"`
	SplitStates map[string][]string `yaml:"split_states"`
}

var defaultNames = []MarketName{
	{"Seattle", "98101"},
	{"San Francisco", "94102"},
	{"Los Angeles", "90001"},
	{"SE Cali (LA south/San Diego)", "92101"},
	{"Phoenix", "85001"},
	{"Las Vegas", "89101"},
	{"Kansas City", "64106"},
	{"Denver", "80202"},
	{"Dallas", "75201"},
	{"Houston", "77002"},
	{"South Florida", "33101"},
	{"Central Florida", "32801"},
	{"Chicago", "60601"},
	{"Detroit", "48226"},
	{"Minnesota", "55401"},
	{"Northern Ohio", "44114"},
	{"St. Louis", "63101"},
	{"New York/New Jersey", "10001"},
	{"Connecticut", "06103"},
	{"Boston", "02108"},
	{"Philadelphia", "19102"},
	{"Nashville, TN", "37219"},
	{"Atlanta", "30303"},
	{"Charlotte, NC", "28202"},
	{"Raleigh", "27601"},
	{"Wilmington", "28401"},
	{"Fayetteville", "28301"},
	{"Richmond, VA", "23219"},
	{"Washington DC", "20001"},
}

var defaultCoverage = []struct {
	pattern string
	states  []string
}{
	{`Seattle`, []string{"WA"}},
	{`San\s*Francisco`, []string{"CA"}},
	{`Los\s*Angeles`, []string{"CA"}},
	{`SE\s*Cali|San\s*Diego`, []string{"CA"}},
	{`Phoenix`, []string{"AZ"}},
	{`Las\s*Vegas`, []string{"NV", "UT"}},
	{`Kansas\s*City`, []string{"MO", "KS"}},
	{`Denver`, []string{"CO", "UT"}},
	{`Dallas`, []string{"TX"}},
	{`Houston`, []string{"TX"}},
	{`South\s*Florida`, []string{"FL"}},
	{`Central\s*Florida`, []string{"FL"}},
	{`Chicago`, []string{"IL"}},
	{`Detroit`, []string{"MI"}},
	{`Minnesota`, []string{"MN", "ND", "SD"}},
	{`Northern\s*Ohio`, []string{"OH"}},
	{`St\.\s*Louis|St\s*Louis`, []string{"MO"}},
	{`New\s*York\s*/\s*New\s*Jersey|New\s*York|New\s*Jersey`, []string{"NY", "NJ"}},
	{`Connecticut`, []string{"CT"}},
	{`Boston`, []string{"MA"}},
	{`Philadelphia`, []string{"PA"}},
	{`Nashville`, []string{"TN"}},
	{`Atlanta`, []string{"GA"}},
	{`Charlotte`, []string{"NC"}},
	{`Raleigh|Wilmington|Fayetteville`, []string{"NC"}},
	{`Richmond`, []string{"VA"}},
	{`Washington\s*DC|Washington\s*D\.C\.`, []string{"DC", "MD", "VA"}},
}

// DefaultCatalog returns the built-in market tables.
func DefaultCatalog() *Catalog {
	rules := make([]CoverageRule, 0, len(defaultCoverage))
	for _, r := range defaultCoverage {
		rules = append(rules, CoverageRule{Pattern: regexp.MustCompile(`(?i)` + r.pattern), States: r.states})
	}
	c, _ := NewCatalog(defaultNames, rules, map[string][]string{"10001": {"NY", "NJ"}})
	return c
}

// NewCatalog validates the tables and precompiles the name patterns.
func NewCatalog(names []MarketName, coverage []CoverageRule, split map[string][]string) (*Catalog, error) {
	c := &Catalog{
		Names:       names,
		Coverage:    coverage,
		SplitStates: map[string][]string{},
		zipToName:   map[string]string{},
	}
	for _, n := range names {
		name := strings.TrimSpace(n.Name)
		zip := grid.NormalizeZip(n.Zip)
		if name == "" || zip == "" {
			return nil, fmt.Errorf("market %q: name and zip are required", n.Name)
		}
		c.namePatterns = append(c.namePatterns, namePattern(name))
		if _, ok := c.zipToName[zip]; !ok {
			c.zipToName[zip] = name
		}
	}
	for zip, states := range split {
		if len(states) != 2 {
			return nil, fmt.Errorf("split_states %s: want exactly two states, got %d", zip, len(states))
		}
		c.SplitStates[grid.NormalizeZip(zip)] = upperAll(states)
	}
	for i := range c.Coverage {
		c.Coverage[i].States = upperAll(c.Coverage[i].States)
	}
	return c, nil
}

// LoadCatalog reads a YAML catalog file. Coverage patterns are matched
// case-insensitively.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode market catalog: %w", err)
	}
	if len(file.Markets) == 0 {
		return nil, fmt.Errorf("market catalog has no markets")
	}
	rules := make([]CoverageRule, 0, len(file.Coverage))
	for _, r := range file.Coverage {
		re, err := regexp.Compile(`(?i)` + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("coverage pattern %q: %w", r.Pattern, err)
		}
		rules = append(rules, CoverageRule{Pattern: re, States: r.States})
	}
	return NewCatalog(file.Markets, rules, file.SplitStates)
}

// namePattern matches a market name case-insensitively with flexible
// whitespace, so "New  York / New Jersey" still hits.
func namePattern(name string) *regexp.Regexp {
	parts := strings.Fields(name)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(parts, `\s*`))
}

// DisplayName returns the catalog name for a center ZIP, or "Market <zip>".
func (c *Catalog) DisplayName(zip string) string {
	if name, ok := c.zipToName[zip]; ok {
		return name
	}
	return "Market " + zip
}

// Split returns the state pair for a dual-state center ZIP.
func (c *Catalog) Split(zip string) ([]string, bool) {
	s, ok := c.SplitStates[zip]
	return s, ok
}

// AcceptsState reports whether market m covers tickets in state. A row state
// hint wins outright; a market no rule recognises accepts every state.
func (c *Catalog) AcceptsState(m models.MarketRow, state string) bool {
	state = strings.ToUpper(strings.TrimSpace(state))
	if state == "" {
		return true
	}
	if m.StateHint != "" {
		return strings.EqualFold(m.StateHint, state)
	}
	for _, rule := range c.Coverage {
		if rule.Pattern.MatchString(m.DisplayName) {
			for _, s := range rule.States {
				if s == state {
					return true
				}
			}
			return false
		}
	}
	return true
}

// Clean replaces every catalog market name in text cells with its ZIP. The
// result contains no catalog names, so cleaning twice changes nothing.
func (c *Catalog) Clean(g grid.Grid) grid.Grid {
	return g.Map(func(cell grid.Cell) grid.Cell {
		if cell.Kind != grid.KindText {
			return cell
		}
		text := cell.Text
		for i, re := range c.namePatterns {
			text = re.ReplaceAllLiteralString(text, grid.NormalizeZip(c.Names[i].Zip))
		}
		if text == cell.Text {
			return cell
		}
		return grid.Text(text)
	})
}

func upperAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToUpper(strings.TrimSpace(s)))
	}
	return out
}
