// Package localstore provides the on-device replica: one JSON file per
// entity type, each holding the full current collection.
//
// Layout:
//
//	<data dir>/
//	     ├── stories.json          → []model.Story
//	     └── child_profiles.json   → []model.ChildProfile
//
// Every save or delete rewrites the whole file. Each collection serializes its
// own reads and writes, so a sync pass and an application save on the same
// entity type cannot lose each other's updates.
package localstore

import (
	"fmt"
	"log"
	"os"

	"github.com/talekeeper/storysync/internal/model"
)

// Store groups the collections kept in one data directory.
type Store struct {
	dir    string
	logger *log.Logger

	Stories  *Collection[model.Story]
	Profiles *Collection[model.ChildProfile]
}

// Open prepares a store rooted at dir, creating the directory if needed.
// Collection files are read lazily on first access.
//
// If logger is nil, a default logger writing to stderr is used.
func Open(dir string, logger *log.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[localstore] ", log.LstdFlags)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &Store{
		dir:      dir,
		logger:   logger,
		Stories:  newCollection[model.Story](dir, model.TypeStory, logger),
		Profiles: newCollection[model.ChildProfile](dir, model.TypeChildProfile, logger),
	}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// refresh drops the cache of the collection stored in fileName if the file
// changed behind our back. Returns the entity type and whether it was dropped.
func (s *Store) refresh(fileName string) (model.EntityType, bool) {
	switch fileName {
	case s.Stories.typ.FileName():
		return model.TypeStory, s.Stories.Refresh()
	case s.Profiles.typ.FileName():
		return model.TypeChildProfile, s.Profiles.Refresh()
	default:
		return "", false
	}
}
