package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oncall-dispatch/backend/internal/directory"
	"github.com/oncall-dispatch/backend/internal/errs"
	"github.com/oncall-dispatch/backend/internal/geocode"
)

func TestRequireReportsFirstMissingTable(t *testing.T) {
	s := New()
	err := s.Snapshot().Require(TableZip, TableTech)
	var nl *errs.NotLoadedError
	assert.True(t, errors.As(err, &nl))
	assert.Equal(t, "load ZIP DB first", err.Error())

	s.SetGeo(geocode.NewIndex([][]string{{"98101", "47.6", "-122.3", "Seattle", "WA"}}))
	err = s.Snapshot().Require(TableZip, TableTech)
	assert.EqualError(t, err, "load Tech DB first")

	s.SetDirectory(directory.New([][]string{{"1", "A", "B"}}))
	assert.NoError(t, s.Snapshot().Require(TableZip, TableTech))
	assert.EqualError(t, s.Snapshot().Require(TableRotation), "load OnCall sheet first")
}

func TestSnapshotIsStableAcrossSwap(t *testing.T) {
	s := New()
	first := directory.New([][]string{{"1", "A", "B"}})
	s.SetDirectory(first)
	snap := s.Snapshot()

	s.SetDirectory(directory.New([][]string{{"2", "C", "D"}}))
	_, ok := snap.Directory.Lookup("1")
	assert.True(t, ok)
	_, ok = s.Snapshot().Directory.Lookup("1")
	assert.False(t, ok)
}
