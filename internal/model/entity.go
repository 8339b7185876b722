package model

import (
	"fmt"
	"time"
)

// EntityType identifies one of the synchronized record kinds.
type EntityType string

const (
	// TypeStory is the entity type of Story records.
	TypeStory EntityType = "story"

	// TypeChildProfile is the entity type of ChildProfile records.
	TypeChildProfile EntityType = "childProfile"
)

// Types lists every synchronized entity type.
var Types = []EntityType{TypeStory, TypeChildProfile}

// String returns the string representation of the entity type.
func (t EntityType) String() string {
	return string(t)
}

// RecordType returns the record type name used by the remote store.
func (t EntityType) RecordType() string {
	switch t {
	case TypeStory:
		return "Story"
	case TypeChildProfile:
		return "ChildProfile"
	default:
		return ""
	}
}

// FileName returns the name of the local JSON file holding the collection.
func (t EntityType) FileName() string {
	switch t {
	case TypeStory:
		return "stories.json"
	case TypeChildProfile:
		return "child_profiles.json"
	default:
		return ""
	}
}

// ParseEntityType accepts either the entity type or its remote record type.
func ParseEntityType(s string) (EntityType, error) {
	switch s {
	case "story", "stories", "Story":
		return TypeStory, nil
	case "childProfile", "profile", "profiles", "ChildProfile":
		return TypeChildProfile, nil
	default:
		return "", fmt.Errorf("unknown entity type %q", s)
	}
}

// Record is implemented by every synchronized record.
//
// Sync code is written once against this constraint and instantiated for
// Story and ChildProfile.
type Record interface {
	RecordID() string
	Timestamp() time.Time
	Kind() EntityType
	Validate() error
}
