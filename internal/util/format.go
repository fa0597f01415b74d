// Package util holds small formatting helpers shared by the catalog and
// the terminal UI.
package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatDuration formats a duration as m:ss, or h:mm:ss from one hour up.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	h := total / 3600
	m := total % 3600 / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ParseDuration reads "m:ss" as written by FormatDuration for messages
// under an hour. Seconds must be in [0, 59].
func ParseDuration(s string) (time.Duration, bool) {
	mins, secs, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, false
	}
	m, err := strconv.Atoi(mins)
	if err != nil || m < 0 {
		return 0, false
	}
	ss, err := strconv.Atoi(secs)
	if err != nil || ss < 0 || ss > 59 {
		return 0, false
	}
	return time.Duration(m)*time.Minute + time.Duration(ss)*time.Second, true
}
