package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TimePattern is the accepted time-of-day form: 24-hour HH:MM, hour may be unpadded.
var TimePattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

// ParseTime splits a time of day into hour and minute.
func ParseTime(s string) (hour, minute int, err error) {
	if !TimePattern.MatchString(s) {
		return 0, 0, fmt.Errorf("%w: %q (want HH:MM)", ErrInvalidTimeFormat, s)
	}
	h, m, _ := strings.Cut(s, ":")
	hour, _ = strconv.Atoi(h)
	minute, _ = strconv.Atoi(m)
	return hour, minute, nil
}

// FormatTime renders hour and minute as zero-padded HH:MM.
func FormatTime(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// NormalizeTime validates s and returns it zero-padded, so "9:05" becomes "09:05".
func NormalizeTime(s string) (string, error) {
	h, m, err := ParseTime(s)
	if err != nil {
		return "", err
	}
	return FormatTime(h, m), nil
}
