package refdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/jszwec/csvutil"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// StaticProvider reads the CSV copies bundled with the service. It is the
// last link of the chain and needs no network.
type StaticProvider struct {
	ZipPath  string
	TechPath string
}

type zipCSV struct {
	Zip   string `csv:"zip"`
	Lat   string `csv:"lat"`
	Lon   string `csv:"lon"`
	City  string `csv:"city"`
	State string `csv:"state"`
}

type techCSV struct {
	TechID    string `csv:"tech_id"`
	FirstName string `csv:"first_name"`
	LastName  string `csv:"last_name"`
	Region    string `csv:"region"`
	Zone      string `csv:"zone"`
	Type      string `csv:"type"`
	City      string `csv:"city"`
	State     string `csv:"state"`
	Zip       string `csv:"zip"`
}

func (s StaticProvider) Name() string { return "static" }

func (s StaticProvider) ZipRows(ctx context.Context) ([][]string, error) {
	var recs []zipCSV
	if err := decodeFile(s.ZipPath, &recs); err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, []string{r.Zip, r.Lat, r.Lon, r.City, r.State})
	}
	return out, nil
}

func (s StaticProvider) TechnicianRows(ctx context.Context) ([][]string, error) {
	var recs []techCSV
	if err := decodeFile(s.TechPath, &recs); err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, []string{r.TechID, r.FirstName, r.LastName, r.Region, r.Zone, r.Type, r.City, r.State, r.Zip})
	}
	return out, nil
}

func decodeFile(path string, v any) error {
	if path == "" {
		return fmt.Errorf("no static file configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return DecodeCSV(f, v)
}

// DecodeCSV decodes a headered CSV into a slice of tagged structs. A UTF-8 or
// UTF-16 byte-order mark is honoured and stripped.
func DecodeCSV(r io.Reader, v any) error {
	utf := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(utf)
	cr.TrimLeadingSpace = true
	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		return fmt.Errorf("read csv header: %w", err)
	}
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return fmt.Errorf("decode csv: %w", err)
	}
	return nil
}
