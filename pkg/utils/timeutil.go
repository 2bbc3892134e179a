package utils

import (
	"regexp"
	"time"
)

// Paris is the Europe/Paris location used for sitting dates.
var Paris *time.Location

func init() {
	var err error
	Paris, err = time.LoadLocation("Europe/Paris")
	if err != nil {
		// Fallback: create fixed zone if tz database is not available
		Paris = time.FixedZone("CET", 1*60*60)
	}
}

var monthRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// NowParis returns the current time in Paris.
func NowParis() time.Time {
	return time.Now().In(Paris)
}

// IsMonth reports whether s is a well-formed YYYY-MM key.
func IsMonth(s string) bool {
	return monthRe.MatchString(s)
}
