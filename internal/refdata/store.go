package refdata

import (
	"context"

	"github.com/oncall-dispatch/backend/internal/fields"
)

// TableReader is satisfied by db.Store.
type TableReader interface {
	TableRows(ctx context.Context, table string, limit int) ([]map[string]string, error)
}

// StoreProvider reads the imported tables straight from Postgres.
type StoreProvider struct {
	Store     TableReader
	TechTable string
	ZipTable  string
}

func (s StoreProvider) Name() string { return "postgres" }

func (s StoreProvider) TechnicianRows(ctx context.Context) ([][]string, error) {
	return s.read(ctx, s.TechTable, fields.Technician)
}

func (s StoreProvider) ZipRows(ctx context.Context) ([][]string, error) {
	return s.read(ctx, s.ZipTable, fields.Geo)
}

func (s StoreProvider) read(ctx context.Context, table string, shape fields.Table) ([][]string, error) {
	recs, err := s.Store.TableRows(ctx, table, 0)
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(recs))
	for _, rec := range recs {
		out = append(out, shape.ProjectMap(rec))
	}
	return out, nil
}
