package grid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateModes(t *testing.T) {
	cases := map[string]struct {
		cell Cell
		raw  string
	}{
		"serial":        {cell: Number(45658), raw: "2025-01-01"},
		"serial-time":   {cell: Number(45658.75), raw: "2025-01-01"},
		"date cell":     {cell: Date(time.Date(2025, 1, 5, 13, 0, 0, 0, time.UTC)), raw: "2025-01-05"},
		"short year":    {cell: Text("1/5/25"), raw: "2025-01-05"},
		"long year":     {cell: Text(" 01-05-2025 "), raw: "2025-01-05"},
		"iso":           {cell: Text("2025-01-05"), raw: "2025-01-05"},
		"month name":    {cell: Text("January 5, 2025"), raw: "2025-01-05"},
		"rfc3339 local": {cell: Text("2025-01-05T23:30:00-05:00"), raw: "2025-01-05"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			raw, ok := ParseDateRaw(tc.cell)
			require.True(t, ok)
			assert.Equal(t, tc.raw, FormatYMD(raw))

			shifted, ok := ParseDate(tc.cell)
			require.True(t, ok)
			assert.Equal(t, raw.AddDate(0, 0, 1), shifted)
		})
	}
}

func TestParseDateRejects(t *testing.T) {
	for _, c := range []Cell{Empty(), Text("Start"), Text("13/01/25"), Text("1/32/25"), Number(-3), Number(0)} {
		_, ok := ParseDateRaw(c)
		assert.False(t, ok, "cell %+v", c)
	}
}

func TestNormalizeZip(t *testing.T) {
	cases := map[string]string{
		"98101":          "98101",
		"ZIP 02108-1234": "02108",
		"7803":           "07803",
		"2108.0":         "21080",
		"123456":         "12345",
		"Seattle":        "",
		"":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeZip(in), in)
	}
}

func TestNormalizePostal(t *testing.T) {
	assert.Equal(t, "M5V3L9", NormalizePostal("m5v 3l9"))
	assert.Equal(t, "K1A0B1", NormalizePostal("K1A-0B1"))
	assert.Equal(t, "10001", NormalizePostal("10001"))
}

func TestCellZip(t *testing.T) {
	assert.Equal(t, "06103", CellZip(Number(6103)))
	assert.Equal(t, "", CellZip(Number(6103.5)))
	assert.Equal(t, "98101", CellZip(Text("98101 Seattle")))
	assert.Equal(t, "", CellZip(Date(time.Now())))
}

func TestGridAtPadsMissingCells(t *testing.T) {
	g := FromStrings([][]string{{"a", "1"}, {"b"}})
	assert.Equal(t, KindEmpty, g.At(1, 1).Kind)
	assert.Equal(t, KindEmpty, g.At(9, 9).Kind)
	assert.Equal(t, KindNumber, g.At(0, 1).Kind)

	rect := g.Rectangular()
	assert.Len(t, rect[1], 2)
	assert.True(t, rect[1][1].IsBlank())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindEmpty, Classify("  ").Kind)
	assert.Equal(t, KindNumber, Classify("12.5").Kind)
	assert.Equal(t, KindText, Classify("Inf").Kind)
	assert.Equal(t, KindText, Classify("TX").Kind)
}
