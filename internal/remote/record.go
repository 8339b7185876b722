package remote

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/talekeeper/storysync/internal/model"
)

// Record field names. They match the JSON keys of the model so both
// replicas read the same way.
const (
	fieldID               = "id"
	fieldTitle            = "title"
	fieldContent          = "content"
	fieldTheme            = "theme"
	fieldChildName        = "childName"
	fieldCreatedAt        = "createdAt"
	fieldAudioURL         = "audioURL"
	fieldAudioDuration    = "audioDuration"
	fieldLastPlayPosition = "lastPlayPosition"
	fieldName             = "name"
	fieldAge              = "age"
	fieldGender           = "gender"
	fieldInterests        = "interests"
)

// storyFields maps a story to record fields. Optional fields are omitted
// when absent.
func storyFields(s model.Story) map[string]interface{} {
	fields := map[string]interface{}{
		fieldID:        s.ID,
		fieldTitle:     s.Title,
		fieldContent:   s.Content,
		fieldTheme:     s.Theme,
		fieldChildName: s.ChildName,
		fieldCreatedAt: formatTime(s.CreatedAt),
	}
	if s.AudioURL != nil {
		fields[fieldAudioURL] = *s.AudioURL
	}
	if s.AudioDuration != nil {
		fields[fieldAudioDuration] = formatFloat(*s.AudioDuration)
	}
	if s.LastPlayPosition != nil {
		fields[fieldLastPlayPosition] = formatFloat(*s.LastPlayPosition)
	}
	return fields
}

// storyFromFields decodes a Story record.
func storyFromFields(fields map[string]string) (model.Story, error) {
	var s model.Story

	id, err := required(fields, fieldID)
	if err != nil {
		return s, err
	}
	createdAt, err := requiredTime(fields, fieldCreatedAt)
	if err != nil {
		return s, err
	}

	s = model.Story{
		ID:        id,
		Title:     fields[fieldTitle],
		Content:   fields[fieldContent],
		Theme:     fields[fieldTheme],
		ChildName: fields[fieldChildName],
		CreatedAt: createdAt,
	}
	if v, ok := fields[fieldAudioURL]; ok {
		s.AudioURL = &v
	}
	if s.AudioDuration, err = optionalFloat(fields, fieldAudioDuration); err != nil {
		return s, err
	}
	if s.LastPlayPosition, err = optionalFloat(fields, fieldLastPlayPosition); err != nil {
		return s, err
	}

	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("invalid Story record %s: %w", id, err)
	}
	return s, nil
}

// profileFields maps a child profile to record fields.
func profileFields(p model.ChildProfile) (map[string]interface{}, error) {
	interests := p.Interests
	if interests == nil {
		interests = []string{}
	}
	interestsJSON, err := json.Marshal(interests)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal interests: %w", err)
	}

	return map[string]interface{}{
		fieldID:        p.ID,
		fieldName:      p.Name,
		fieldAge:       strconv.Itoa(p.Age),
		fieldGender:    p.Gender,
		fieldInterests: string(interestsJSON),
		fieldCreatedAt: formatTime(p.CreatedAt),
	}, nil
}

// profileFromFields decodes a ChildProfile record.
func profileFromFields(fields map[string]string) (model.ChildProfile, error) {
	var p model.ChildProfile

	id, err := required(fields, fieldID)
	if err != nil {
		return p, err
	}
	createdAt, err := requiredTime(fields, fieldCreatedAt)
	if err != nil {
		return p, err
	}
	ageStr, err := required(fields, fieldAge)
	if err != nil {
		return p, err
	}
	age, err := strconv.Atoi(ageStr)
	if err != nil {
		return p, fmt.Errorf("field %s: %w", fieldAge, err)
	}

	interests := []string{}
	if raw := fields[fieldInterests]; raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &interests); err != nil {
			return p, fmt.Errorf("field %s: %w", fieldInterests, err)
		}
	}

	p = model.ChildProfile{
		ID:        id,
		Name:      fields[fieldName],
		Age:       age,
		Gender:    fields[fieldGender],
		Interests: interests,
		CreatedAt: createdAt,
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid ChildProfile record %s: %w", id, err)
	}
	return p, nil
}

func required(fields map[string]string, name string) (string, error) {
	v, ok := fields[name]
	if !ok || v == "" {
		return "", fmt.Errorf("missing required field %s", name)
	}
	return v, nil
}

func requiredTime(fields map[string]string, name string) (time.Time, error) {
	v, err := required(fields, name)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %s: %w", name, err)
	}
	return t, nil
}

func optionalFloat(fields map[string]string, name string) (*float64, error) {
	v, ok := fields[name]
	if !ok {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	return &f, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// score orders records in the type index, newest first on reverse range.
func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}
