// Package expiry buckets a domain or certificate expiry timestamp into a
// severity tier relative to a reference time. Everything here is pure.
package expiry

import "time"

// Day is the unit days-remaining is counted in
const Day = 24 * time.Hour

// Upper bounds (inclusive) of the alerting tiers, in days
const (
	CriticalDays = 7
	WarningDays  = 30
)

// DaysRemaining counts whole days from now until expiry. Partial days round
// toward more time remaining, so 23.5 hours left is 1 day. Any time already
// past yields a negative count, so a timestamp 1ns in the past is -1.
func DaysRemaining(expiry, now time.Time) int {
	d := expiry.Sub(now)
	days := int(d / Day)
	rem := d % Day
	switch {
	case rem > 0:
		days++
	case rem < 0:
		days--
	}
	return days
}

// Classify returns the severity tier of expiry at now. A nil or zero
// timestamp is Unknown.
func Classify(expiry *time.Time, now time.Time) Severity {
	return Evaluate(expiry, now).Severity
}

// Result is a classification together with the day count it came from
type Result struct {
	Severity      Severity `json:"severity"`
	DaysRemaining int      `json:"days_remaining"`
	Known         bool     `json:"known"`
}

// Evaluate classifies expiry and also reports the day count
func Evaluate(expiry *time.Time, now time.Time) Result {
	if expiry == nil || expiry.IsZero() {
		return Result{Severity: Unknown}
	}
	days := DaysRemaining(*expiry, now)
	return Result{Severity: tierFor(days), DaysRemaining: days, Known: true}
}

func tierFor(days int) Severity {
	switch {
	case days < 0:
		return Expired
	case days == 0:
		return ExpiresToday
	case days <= CriticalDays:
		return Critical
	case days <= WarningDays:
		return Warning
	default:
		return Valid
	}
}
