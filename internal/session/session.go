// Package session holds the currently loaded datasets.
//
// Each dataset is immutable once built. Loaders build a replacement fully and
// only then swap the pointer, so a failed load leaves the previous dataset in
// place and a request always sees one consistent Snapshot.
package session

import (
	"sync"
	"time"

	"github.com/oncall-dispatch/backend/internal/availability"
	"github.com/oncall-dispatch/backend/internal/directory"
	"github.com/oncall-dispatch/backend/internal/errs"
	"github.com/oncall-dispatch/backend/internal/geocode"
	"github.com/oncall-dispatch/backend/internal/rotation"
)

// Table names as shown in "load X first" errors.
type Table string

const (
	TableZip      Table = "ZIP DB"
	TableTech     Table = "Tech DB"
	TableRotation Table = "OnCall sheet"
)

// Rotation is one uploaded rotation workbook.
type Rotation struct {
	Schedule   *rotation.Schedule
	Exceptions availability.Exceptions
	Filename   string
	LoadedAt   time.Time
}

type Snapshot struct {
	Geo       *geocode.Index
	Directory *directory.Directory
	Rotation  *Rotation
}

// Require fails with NotLoadedError for the first missing table.
func (s Snapshot) Require(tables ...Table) error {
	for _, t := range tables {
		missing := false
		switch t {
		case TableZip:
			missing = s.Geo == nil || s.Geo.Len() == 0
		case TableTech:
			missing = s.Directory == nil || s.Directory.Len() == 0
		case TableRotation:
			missing = s.Rotation == nil || s.Rotation.Schedule == nil
		}
		if missing {
			return &errs.NotLoadedError{Table: string(t)}
		}
	}
	return nil
}

type Session struct {
	mu        sync.RWMutex
	geo       *geocode.Index
	directory *directory.Directory
	rotation  *Rotation
}

func New() *Session { return &Session{} }

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Geo: s.geo, Directory: s.directory, Rotation: s.rotation}
}

func (s *Session) SetGeo(idx *geocode.Index) {
	s.mu.Lock()
	s.geo = idx
	s.mu.Unlock()
}

func (s *Session) SetDirectory(d *directory.Directory) {
	s.mu.Lock()
	s.directory = d
	s.mu.Unlock()
}

func (s *Session) SetRotation(r *Rotation) {
	s.mu.Lock()
	s.rotation = r
	s.mu.Unlock()
}
