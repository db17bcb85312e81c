package domain

import (
	"fmt"
)

const (
	MinRating = 0
	MaxRating = 100
)

// ValidateRating validates a film work rating
func ValidateRating(rating float64) error {
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("invalid rating %g: must be between %d and %d", rating, MinRating, MaxRating)
	}
	return nil
}

// ValidateFilmworkType validates a film work type
func ValidateFilmworkType(kind string) error {
	switch FilmworkType(kind) {
	case FilmworkTypeMovie, FilmworkTypeTVShow:
		return nil
	default:
		return fmt.Errorf("invalid type %q: must be one of: movie, tv_show", kind)
	}
}

// Validate checks the value constraints the destination schema enforces.
// It lets a source be linted before a transfer; the transfer itself relies
// on the destination to reject bad rows.
func Validate(r Record) error {
	switch rec := r.(type) {
	case Genre:
		if rec.Name == "" {
			return fmt.Errorf("genre %s: empty name", rec.ID)
		}
	case Person:
		if rec.FullName == "" {
			return fmt.Errorf("person %s: empty full_name", rec.ID)
		}
	case Filmwork:
		if rec.Title == "" {
			return fmt.Errorf("film_work %s: empty title", rec.ID)
		}
		if rec.Rating != nil {
			if err := ValidateRating(*rec.Rating); err != nil {
				return fmt.Errorf("film_work %s: %w", rec.ID, err)
			}
		}
		if err := ValidateFilmworkType(string(rec.Type)); err != nil {
			return fmt.Errorf("film_work %s: %w", rec.ID, err)
		}
	}
	return nil
}
