package enums

import "fmt"

// Genre describes the allowed values for the `genre` column on tracks.
type Genre string

const (
	GenrePop        Genre = "pop"
	GenreRock       Genre = "rock"
	GenreJazz       Genre = "jazz"
	GenreClassical  Genre = "classical"
	GenreElectronic Genre = "electronic"
	GenreAmbient    Genre = "ambient"
	GenreHipHop     Genre = "hip-hop"
	GenreOther      Genre = "other"
)

var validGenres = []Genre{
	GenrePop,
	GenreRock,
	GenreJazz,
	GenreClassical,
	GenreElectronic,
	GenreAmbient,
	GenreHipHop,
	GenreOther,
}

// IsValid reports whether the value matches the canonical genre enum.
func (g Genre) IsValid() bool {
	for _, candidate := range validGenres {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGenre converts the raw string to Genre, defaulting empty input to other.
func ParseGenre(value string) (Genre, error) {
	if value == "" {
		return GenreOther, nil
	}
	for _, candidate := range validGenres {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid genre %q", value)
}
