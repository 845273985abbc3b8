package enums

import "fmt"

// Mood describes the allowed values for the `mood` column on tracks.
type Mood string

const (
	MoodHappy     Mood = "happy"
	MoodSad       Mood = "sad"
	MoodEnergetic Mood = "energetic"
	MoodCalm      Mood = "calm"
	MoodDark      Mood = "dark"
	MoodUplifting Mood = "uplifting"
	MoodOther     Mood = "other"
)

var validMoods = []Mood{
	MoodHappy,
	MoodSad,
	MoodEnergetic,
	MoodCalm,
	MoodDark,
	MoodUplifting,
	MoodOther,
}

// IsValid reports whether the value matches the canonical mood enum.
func (m Mood) IsValid() bool {
	for _, candidate := range validMoods {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMood converts the raw string to Mood, defaulting empty input to other.
func ParseMood(value string) (Mood, error) {
	if value == "" {
		return MoodOther, nil
	}
	for _, candidate := range validMoods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid mood %q", value)
}
