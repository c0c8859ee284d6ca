package models

import (
	"strconv"
	"strings"
	"time"
)

// FallbackAge is reported when a birthday is missing or cannot be parsed
const FallbackAge = 25

// Age returns the user's age today
func (u *User) Age() int {
	return u.AgeAt(time.Now())
}

// AgeAt derives the age from the dd/MM/yyyy birthday as of now.
// Malformed, impossible or future dates yield FallbackAge.
func (u *User) AgeAt(now time.Time) int {
	birth, ok := parseBirthday(u.Birthday)
	if !ok {
		return FallbackAge
	}

	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	if age <= 0 {
		return FallbackAge
	}
	return age
}

func parseBirthday(s string) (time.Time, bool) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 31/02 into March; reject anything that rolled over
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
