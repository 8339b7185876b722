package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxChildAge is the oldest age accepted when a profile is entered.
const MaxChildAge = 18

// ChildProfile describes the child stories are written for.
type ChildProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Gender    string    `json:"gender"`
	Interests []string  `json:"interests"` // ordered, most important first
	CreatedAt time.Time `json:"createdAt"`
}

// NewChildProfile creates a profile with a fresh id and the current time as
// CreatedAt.
func NewChildProfile(name string, age int, gender string, interests []string) ChildProfile {
	if interests == nil {
		interests = []string{}
	}
	return ChildProfile{
		ID:        uuid.NewString(),
		Name:      name,
		Age:       age,
		Gender:    gender,
		Interests: interests,
		CreatedAt: time.Now().UTC(),
	}
}

// RecordID implements Record.
func (p ChildProfile) RecordID() string { return p.ID }

// Timestamp implements Record.
func (p ChildProfile) Timestamp() time.Time { return p.CreatedAt }

// Kind implements Record.
func (p ChildProfile) Kind() EntityType { return TypeChildProfile }

// Validate checks the fields every stored or synced ChildProfile must have.
func (p ChildProfile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.CreatedAt.IsZero() {
		return fmt.Errorf("createdAt is required")
	}
	return nil
}

// ValidateInput checks a profile entered on this device.
func (p ChildProfile) ValidateInput() error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Age < 0 || p.Age > MaxChildAge {
		return fmt.Errorf("age must be between 0 and %d (got %d)", MaxChildAge, p.Age)
	}
	return nil
}
