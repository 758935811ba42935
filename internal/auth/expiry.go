package auth

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidExpiry is returned for expiration strings that are neither a
	// number of seconds nor a duration expression.
	ErrInvalidExpiry = errors.New("invalid token expiry")

	expiryPattern = regexp.MustCompile(`(?i)^(\d*\.?\d+) *(milliseconds?|msecs?|ms|seconds?|secs?|s|minutes?|mins?|m|hours?|hrs?|h|days?|d|weeks?|w|years?|yrs?|y)$`)
)

const (
	day  = 24 * time.Hour
	week = 7 * day
	year = time.Duration(365.25 * float64(day))
)

// ParseExpiry converts a configured expiration into a duration. A pure
// number is a count of seconds ("900"); anything else must be a duration
// expression such as "15m", "7d", "2 hours" or "1y".
func ParseExpiry(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, ErrInvalidExpiry
	}

	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return positive(seconds * float64(time.Second))
	}

	match := expiryPattern.FindStringSubmatch(value)
	if match == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidExpiry, value)
	}
	n, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidExpiry, value)
	}

	var unit time.Duration
	switch u := strings.ToLower(match[2]); {
	case u == "y" || strings.HasPrefix(u, "yr") || strings.HasPrefix(u, "year"):
		unit = year
	case u == "w" || strings.HasPrefix(u, "week"):
		unit = week
	case u == "d" || strings.HasPrefix(u, "day"):
		unit = day
	case u == "h" || strings.HasPrefix(u, "hr") || strings.HasPrefix(u, "hour"):
		unit = time.Hour
	case u == "ms" || strings.HasPrefix(u, "msec") || strings.HasPrefix(u, "milli"):
		unit = time.Millisecond
	case u == "m" || strings.HasPrefix(u, "min"):
		unit = time.Minute
	default:
		unit = time.Second
	}
	return positive(n * float64(unit))
}

// ExpirySeconds returns the expiration in whole seconds, rounded down, as
// required for Redis key TTLs and cookie max-age.
func ExpirySeconds(value string) (int64, error) {
	d, err := ParseExpiry(value)
	if err != nil {
		return 0, err
	}
	seconds := int64(d / time.Second)
	if seconds < 1 {
		return 0, fmt.Errorf("%w: %q is shorter than one second", ErrInvalidExpiry, value)
	}
	return seconds, nil
}

func positive(nanos float64) (time.Duration, error) {
	if math.IsNaN(nanos) || nanos <= 0 || nanos > math.MaxInt64 {
		return 0, ErrInvalidExpiry
	}
	return time.Duration(nanos), nil
}
