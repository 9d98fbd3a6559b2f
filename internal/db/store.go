package db

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultRowLimit caps reference-table reads. The US ZIP table is ~42k rows.
const DefaultRowLimit = 200000

// Store reads bulk-imported reference tables (technicians, ZIP centroids).
type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

// TableRows returns every row of table as column name → string value. Imported
// tables have no fixed schema, callers pick columns by alias.
func (s *Store) TableRows(ctx context.Context, table string, limit int) ([]map[string]string, error) {
	if limit <= 0 || limit > DefaultRowLimit {
		limit = DefaultRowLimit
	}
	query := fmt.Sprintf(`SELECT * FROM %s LIMIT $1`, pgx.Identifier{table}.Sanitize())
	rows, err := s.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	descs := rows.FieldDescriptions()
	var out []map[string]string
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		item := make(map[string]string, len(values))
		for i, v := range values {
			if i < len(descs) {
				item[descs[i].Name] = stringify(v)
			}
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case time.Time:
		return t.Format("2006-01-02")
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil || dv == nil {
			return ""
		}
		return stringify(dv)
	}
	return fmt.Sprint(v)
}
