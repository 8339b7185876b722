package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Story is a generated story stored in stories.json and as a "Story" record
// remotely.
type Story struct {
	// ===== Identification =====
	ID string `json:"id"`

	// ===== Content =====
	Title     string `json:"title"`
	Content   string `json:"content"`
	Theme     string `json:"theme"`
	ChildName string `json:"childName"`

	// ===== Timestamp (conflict resolution) =====
	CreatedAt time.Time `json:"createdAt"`

	// ===== Audio (updated in place, does not bump CreatedAt) =====
	AudioURL         *string  `json:"audioURL,omitempty"`
	AudioDuration    *float64 `json:"audioDuration,omitempty"`    // seconds
	LastPlayPosition *float64 `json:"lastPlayPosition,omitempty"` // seconds
}

// NewStory creates a story with a fresh id and the current time as CreatedAt.
func NewStory(title, content, theme, childName string) Story {
	return Story{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		Theme:     theme,
		ChildName: childName,
		CreatedAt: time.Now().UTC(),
	}
}

// RecordID implements Record.
func (s Story) RecordID() string { return s.ID }

// Timestamp implements Record.
func (s Story) Timestamp() time.Time { return s.CreatedAt }

// Kind implements Record.
func (s Story) Kind() EntityType { return TypeStory }

// Validate checks the fields every stored or synced Story must have. Records
// from other devices are checked with Validate only.
func (s Story) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.CreatedAt.IsZero() {
		return fmt.Errorf("createdAt is required")
	}
	if s.AudioDuration != nil && *s.AudioDuration < 0 {
		return fmt.Errorf("audioDuration must not be negative (got %v)", *s.AudioDuration)
	}
	if s.LastPlayPosition != nil && *s.LastPlayPosition < 0 {
		return fmt.Errorf("lastPlayPosition must not be negative (got %v)", *s.LastPlayPosition)
	}
	return nil
}

// ValidateInput checks a story entered on this device. It adds the rules for
// user input on top of Validate.
func (s Story) ValidateInput() error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

// HasAudio reports whether an audio file has been attached.
func (s Story) HasAudio() bool {
	return s.AudioURL != nil && *s.AudioURL != ""
}
