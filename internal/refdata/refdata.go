// Package refdata fetches the technician and ZIP reference tables. Every
// provider returns rows already projected onto the ordered tuples the
// directory and the geo index consume.
package refdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/oncall-dispatch/backend/internal/metrics"
)

var ErrEmptyTable = errors.New("reference table is empty")

type Provider interface {
	Name() string
	TechnicianRows(ctx context.Context) ([][]string, error)
	ZipRows(ctx context.Context) ([][]string, error)
}

// Chain tries providers in order and returns the first non-empty table.
// A failing provider is logged and skipped.
type Chain struct {
	Providers []Provider
	Logger    zerolog.Logger
}

func (c Chain) Name() string { return "chain" }

func (c Chain) TechnicianRows(ctx context.Context) ([][]string, error) {
	return c.fetch(ctx, "technicians", func(p Provider) ([][]string, error) { return p.TechnicianRows(ctx) })
}

func (c Chain) ZipRows(ctx context.Context) ([][]string, error) {
	return c.fetch(ctx, "zips", func(p Provider) ([][]string, error) { return p.ZipRows(ctx) })
}

func (c Chain) fetch(ctx context.Context, table string, get func(Provider) ([][]string, error)) ([][]string, error) {
	var errs []error
	for _, p := range c.Providers {
		rows, err := get(p)
		if err == nil && len(rows) == 0 {
			err = ErrEmptyTable
		}
		if err == nil {
			c.Logger.Info().Str("table", table).Str("provider", p.Name()).Int("rows", len(rows)).Msg("reference table loaded")
			return rows, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.Logger.Warn().Err(err).Str("table", table).Str("provider", p.Name()).Msg("reference table fetch failed, trying next source")
		metrics.RefdataFallbackTotal.WithLabelValues(table, p.Name()).Inc()
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("no reference-table providers configured for %s", table)
	}
	return nil, errors.Join(errs...)
}
