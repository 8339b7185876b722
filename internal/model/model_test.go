package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func ptr[T any](v T) *T { return &v }

func TestStory_Validate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		story   Story
		wantErr bool
		errMsg  string
	}{
		{
			name:  "valid story",
			story: Story{ID: "s-1", Title: "The Fox", CreatedAt: now},
		},
		{
			name:  "valid story with audio",
			story: Story{ID: "s-1", Title: "The Fox", CreatedAt: now, AudioURL: ptr("file:///a.m4a"), AudioDuration: ptr(12.5), LastPlayPosition: ptr(3.0)},
		},
		{
			name:    "missing id",
			story:   Story{Title: "The Fox", CreatedAt: now},
			wantErr: true,
			errMsg:  "id is required",
		},
		{
			name:  "untitled story from another device",
			story: Story{ID: "s-1", CreatedAt: now},
		},
		{
			name:    "missing createdAt",
			story:   Story{ID: "s-1", Title: "The Fox"},
			wantErr: true,
			errMsg:  "createdAt is required",
		},
		{
			name:    "negative duration",
			story:   Story{ID: "s-1", Title: "The Fox", CreatedAt: now, AudioDuration: ptr(-1.0)},
			wantErr: true,
			errMsg:  "audioDuration must not be negative",
		},
		{
			name:    "negative play position",
			story:   Story{ID: "s-1", Title: "The Fox", CreatedAt: now, LastPlayPosition: ptr(-0.5)},
			wantErr: true,
			errMsg:  "lastPlayPosition must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.story.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.errMsg)
			}
		})
	}
}

func TestChildProfile_Validate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		profile ChildProfile
		wantErr bool
	}{
		{"valid profile", ChildProfile{ID: "c-1", Name: "Mia", Age: 5, CreatedAt: now}, false},
		{"age zero", ChildProfile{ID: "c-1", Name: "Mia", Age: 0, CreatedAt: now}, false},
		{"missing id", ChildProfile{Name: "Mia", Age: 5, CreatedAt: now}, true},
		{"missing name", ChildProfile{ID: "c-1", Age: 5, CreatedAt: now}, false},
		{"age above input limit", ChildProfile{ID: "c-1", Name: "Mia", Age: MaxChildAge + 1, CreatedAt: now}, false},
		{"missing createdAt", ChildProfile{ID: "c-1", Name: "Mia", Age: 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.profile.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateInput(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		record interface{ ValidateInput() error }
		errMsg string
	}{
		{"valid story", Story{ID: "s-1", Title: "The Fox", CreatedAt: now}, ""},
		{"untitled story", Story{ID: "s-1", CreatedAt: now}, "title is required"},
		{"story missing createdAt", Story{ID: "s-1", Title: "The Fox"}, "createdAt is required"},
		{"valid profile", ChildProfile{ID: "c-1", Name: "Mia", Age: MaxChildAge, CreatedAt: now}, ""},
		{"unnamed profile", ChildProfile{ID: "c-1", Age: 5, CreatedAt: now}, "name is required"},
		{"negative age", ChildProfile{ID: "c-1", Name: "Mia", Age: -1, CreatedAt: now}, "age must be between"},
		{"age too high", ChildProfile{ID: "c-1", Name: "Mia", Age: MaxChildAge + 1, CreatedAt: now}, "age must be between"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.ValidateInput()
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("ValidateInput() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("ValidateInput() error = %v, want it to contain %q", err, tt.errMsg)
			}
		})
	}
}

func TestNewStory(t *testing.T) {
	s := NewStory("The Fox", "Once upon a time", "courage", "Mia")
	if s.ID == "" {
		t.Fatal("NewStory() did not assign an id")
	}
	if s.CreatedAt.IsZero() {
		t.Fatal("NewStory() did not set createdAt")
	}
	if err := s.Validate(); err != nil {
		t.Errorf("NewStory() produced invalid story: %v", err)
	}

	other := NewStory("The Fox", "Once upon a time", "courage", "Mia")
	if other.ID == s.ID {
		t.Errorf("NewStory() reused id %s", s.ID)
	}
}

func TestNewChildProfile_NilInterests(t *testing.T) {
	p := NewChildProfile("Mia", 5, "female", nil)
	if p.Interests == nil {
		t.Fatal("expected empty interests slice, got nil")
	}
	if err := p.Validate(); err != nil {
		t.Errorf("NewChildProfile() produced invalid profile: %v", err)
	}
}

func TestStory_JSONOmitsAbsentOptionals(t *testing.T) {
	s := Story{ID: "s-1", Title: "The Fox", CreatedAt: time.Date(2026, 1, 10, 7, 36, 29, 0, time.UTC)}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	for _, key := range []string{"audioURL", "audioDuration", "lastPlayPosition"} {
		if strings.Contains(string(data), key) {
			t.Errorf("expected %s to be omitted, got %s", key, data)
		}
	}
	if !strings.Contains(string(data), `"childName"`) {
		t.Errorf("expected camelCase childName key, got %s", data)
	}
}

func TestStory_JSONIgnoresUnknownFields(t *testing.T) {
	input := `{"id":"s-1","title":"The Fox","createdAt":"2026-01-10T07:36:29Z","mood":"sleepy","lastPlayPosition":4.5}`

	var s Story
	if err := json.Unmarshal([]byte(input), &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	want := Story{
		ID:               "s-1",
		Title:            "The Fox",
		CreatedAt:        time.Date(2026, 1, 10, 7, 36, 29, 0, time.UTC),
		LastPlayPosition: ptr(4.5),
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("decoded story mismatch (-want +got):\n%s", diff)
	}
}

func TestEntityType(t *testing.T) {
	tests := []struct {
		in         string
		want       EntityType
		recordType string
		file       string
	}{
		{"story", TypeStory, "Story", "stories.json"},
		{"Story", TypeStory, "Story", "stories.json"},
		{"profile", TypeChildProfile, "ChildProfile", "child_profiles.json"},
		{"ChildProfile", TypeChildProfile, "ChildProfile", "child_profiles.json"},
	}

	for _, tt := range tests {
		got, err := ParseEntityType(tt.in)
		if err != nil {
			t.Fatalf("ParseEntityType(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseEntityType(%q) = %s, want %s", tt.in, got, tt.want)
		}
		if got.RecordType() != tt.recordType {
			t.Errorf("RecordType() = %s, want %s", got.RecordType(), tt.recordType)
		}
		if got.FileName() != tt.file {
			t.Errorf("FileName() = %s, want %s", got.FileName(), tt.file)
		}
	}

	if _, err := ParseEntityType("dragon"); err == nil {
		t.Error("expected error for unknown entity type")
	}
}
