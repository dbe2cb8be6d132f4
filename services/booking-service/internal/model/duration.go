package model

import (
	"errors"
	"fmt"
)

var ErrInvalidDuration = errors.New("invalid session duration")

// AllowedDurations lists the bookable session lengths in minutes.
var AllowedDurations = []int{30, 60, 90, 120}

func ValidateDuration(minutes int) error {
	for _, d := range AllowedDurations {
		if d == minutes {
			return nil
		}
	}
	return fmt.Errorf("%w: %d minutes (allowed: 30, 60, 90, 120)", ErrInvalidDuration, minutes)
}
