package db

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestStringify(t *testing.T) {
	cases := map[string]struct {
		in   any
		want string
	}{
		"nil":    {in: nil, want: ""},
		"string": {in: "TX", want: "TX"},
		"float":  {in: 30.2672, want: "30.2672"},
		"int":    {in: int64(78701), want: "78701"},
		"date":   {in: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), want: "2025-01-05"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := stringify(tc.in); got != tc.want {
				t.Fatalf("stringify(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestTableRowsIntegration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()

	if _, err := store.Pool.Exec(ctx, `CREATE TABLE oncall_zip_test (zip text, lat double precision, lon double precision, city text, state text)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() { _, _ = store.Pool.Exec(ctx, `DROP TABLE oncall_zip_test`) }()
	if _, err := store.Pool.Exec(ctx, `INSERT INTO oncall_zip_test VALUES ('78701', 30.2672, -97.7431, 'austin', 'TX')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rows, err := store.TableRows(ctx, "oncall_zip_test", 10)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 1 || rows[0]["zip"] != "78701" || rows[0]["lat"] != "30.2672" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}
