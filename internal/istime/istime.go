// Package istime renders timestamps in IST (UTC+5:30) the way the
// original server does: a fixed 5h30m offset applied to UTC and
// formatted with gmtime, not an IANA timezone database lookup.
package istime

import "time"

const offset = 5*time.Hour + 30*time.Minute

// Format renders t as "YYYY-MM-DD HH:MM:SS" in IST.
func Format(t time.Time) string {
	return t.UTC().Add(offset).Format("2006-01-02 15:04:05")
}

// Now renders the current time in IST.
func Now() string {
	return Format(time.Now())
}

// FormatMinute renders t as "YYYY-MM-DD HH:MM" in IST, the coarser
// timestamp VIEW -l's fixed-width table uses.
func FormatMinute(t time.Time) string {
	return t.UTC().Add(offset).Format("2006-01-02 15:04")
}
