package expiry

import (
	"testing"
	"time"
)

func ptr(t time.Time) *time.Time { return &t }

func TestClassify_Boundaries(t *testing.T) {
	now := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		expiry *time.Time
		want   Severity
	}{
		{"absent", nil, Unknown},
		{"zero", ptr(time.Time{}), Unknown},
		{"thirty days", ptr(now.Add(30 * Day)), Warning},
		{"thirty days and a nanosecond", ptr(now.Add(30*Day + time.Nanosecond)), Valid},
		{"seven days", ptr(now.Add(7 * Day)), Critical},
		{"seven days and a nanosecond", ptr(now.Add(7*Day + time.Nanosecond)), Warning},
		{"one nanosecond ago", ptr(now.Add(-time.Nanosecond)), Expired},
		{"now", ptr(now), ExpiresToday},
		{"23.5 hours", ptr(now.Add(23*time.Hour + 30*time.Minute)), Critical},
		{"a year", ptr(now.Add(365 * Day)), Valid},
		{"a week ago", ptr(now.Add(-7 * Day)), Expired},
	}
	for _, tc := range cases {
		if got := Classify(tc.expiry, now); got != tc.want {
			t.Fatalf("%s: Classify = %v; want %v", tc.name, got, tc.want)
		}
	}
}

func TestDaysRemaining(t *testing.T) {
	now := time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{time.Nanosecond, 1},
		{23*time.Hour + 30*time.Minute, 1},
		{Day, 1},
		{Day + time.Second, 2},
		{-time.Nanosecond, -1},
		{-Day, -1},
		{-Day - time.Second, -2},
	}
	for _, tc := range cases {
		if got := DaysRemaining(now.Add(tc.d), now); got != tc.want {
			t.Fatalf("DaysRemaining(now%+v) = %d; want %d", tc.d, got, tc.want)
		}
	}
}

func TestClassify_DateOnlyScenario(t *testing.T) {
	exp := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	r := Evaluate(&exp, now)
	if r.DaysRemaining != 30 || r.Severity != Warning || !r.Known {
		t.Fatalf("got %+v; want 30 days Warning", r)
	}
}

func TestClassify_MonotonicInExpiry(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)
	prev := Classify(ptr(now.Add(-90*Day)), now)
	for h := -90 * 24; h <= 90*24; h += 7 {
		exp := now.Add(time.Duration(h) * time.Hour)
		got := Classify(&exp, now)
		if got.Rank() > prev.Rank() {
			t.Fatalf("severity rose from %v to %v at expiry %v", prev, got, exp)
		}
		prev = got
	}
}

func TestSeverity_Helpers(t *testing.T) {
	for _, s := range []Severity{Warning, Critical, ExpiresToday} {
		if !s.ExpiringSoon() {
			t.Fatalf("%v should count as expiring soon", s)
		}
	}
	for _, s := range []Severity{Unknown, Valid, Expired} {
		if s.ExpiringSoon() {
			t.Fatalf("%v should not count as expiring soon", s)
		}
	}
	if ExpiresToday.Alerting() != Critical {
		t.Fatalf("ExpiresToday should alert as Critical")
	}
	if Severity(42).String() != "unknown" {
		t.Fatalf("out-of-range severity should present as unknown")
	}

	var s Severity
	if err := s.UnmarshalText([]byte("expires_today")); err != nil || s != ExpiresToday {
		t.Fatalf("UnmarshalText = %v, %v", s, err)
	}
	if err := s.UnmarshalText([]byte("nope")); err == nil {
		t.Fatalf("expected error for unknown severity")
	}
}
