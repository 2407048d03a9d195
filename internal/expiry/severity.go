package expiry

import "fmt"

// Severity is the tier an expiry date falls in
type Severity int

const (
	Unknown Severity = iota
	Valid
	Warning
	Critical
	ExpiresToday
	Expired
)

// Presentation is how a renderer shows a severity tier
type Presentation struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
	Rank  int    `json:"rank"` // Higher is more severe; Unknown is 0
}

var presentations = map[Severity]Presentation{
	Unknown:      {Key: "unknown", Label: "Unknown", Color: "gray", Icon: "help-circle", Rank: 0},
	Valid:        {Key: "valid", Label: "Valid", Color: "green", Icon: "check-circle", Rank: 1},
	Warning:      {Key: "warning", Label: "Expiring soon", Color: "yellow", Icon: "alert-triangle", Rank: 2},
	Critical:     {Key: "critical", Label: "Critical", Color: "orange", Icon: "alert-octagon", Rank: 3},
	ExpiresToday: {Key: "expires_today", Label: "Expires today", Color: "red", Icon: "clock", Rank: 4},
	Expired:      {Key: "expired", Label: "Expired", Color: "red", Icon: "x-circle", Rank: 5},
}

// All lists every severity from least to most severe, Unknown first
func All() []Severity {
	return []Severity{Unknown, Valid, Warning, Critical, ExpiresToday, Expired}
}

// Present returns the canonical presentation of s
func (s Severity) Present() Presentation {
	if p, ok := presentations[s]; ok {
		return p
	}
	return presentations[Unknown]
}

func (s Severity) String() string { return s.Present().Key }

// Rank orders severities; Unknown ranks below Valid
func (s Severity) Rank() int { return s.Present().Rank }

// ExpiringSoon reports whether s counts toward the dashboard's
// expiring-soon totals
func (s Severity) ExpiringSoon() bool {
	return s == Warning || s == Critical || s == ExpiresToday
}

// Alerting folds ExpiresToday into Critical
func (s Severity) Alerting() Severity {
	if s == ExpiresToday {
		return Critical
	}
	return s
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	for _, v := range All() {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", string(b))
}
