package types

import "strings"

// Severity is stored as a fixed-width code and rendered by its full name.
type Severity string

const (
	Critical      Severity = "CRIT"
	High          Severity = "HIGH"
	Medium        Severity = "MED"
	Low           Severity = "LOW"
	Informational Severity = "INFO"
)

// AllSeverities lists every severity from most to least urgent.
var AllSeverities = []Severity{Critical, High, Medium, Low, Informational}

var severityNames = map[Severity]string{
	Critical:      "CRITICAL",
	High:          "HIGH",
	Medium:        "MEDIUM",
	Low:           "LOW",
	Informational: "INFORMATIONAL",
}

// severitySynonyms maps a lowercased upstream label to the enum.
var severitySynonyms = map[string]Severity{
	"critical":         Critical,
	"crit":             Critical,
	"severe":           Critical,
	"extreme":          Critical,
	"emergency":        Critical,
	"life-threatening": Critical,
	"high":             High,
	"urgent":           High,
	"serious":          High,
	"medium":           Medium,
	"med":              Medium,
	"moderate":         Medium,
	"low":              Low,
	"minor":            Low,
	"info":             Informational,
	"informational":    Informational,
	"information":      Informational,
	"none":             Informational,
}

// NormalizeSeverity maps an arbitrary upstream label onto the five-value enum.
// Unrecognized labels become Informational.
func NormalizeSeverity(label string) Severity {
	if s, ok := ParseSeverity(label); ok {
		return s
	}
	return Informational
}

// ParseSeverity is like NormalizeSeverity but reports whether the label was recognized.
func ParseSeverity(label string) (Severity, bool) {
	s, ok := severitySynonyms[severityKey(label)]
	return s, ok
}

// severityKey lowercases a label and strips surrounding non-letters.
func severityKey(label string) string {
	return strings.TrimFunc(strings.ToLower(label), func(r rune) bool {
		return (r < 'a' || r > 'z') && r != '-'
	})
}

// Name returns the full enum name, e.g. "CRITICAL".
func (s Severity) Name() string {
	if n, ok := severityNames[s]; ok {
		return n
	}
	return ""
}

func (s Severity) String() string { return s.Name() }

// Valid reports whether s is one of the five enum codes.
func (s Severity) Valid() bool {
	_, ok := severityNames[s]
	return ok
}

// Urgent is true for CRITICAL and HIGH.
func (s Severity) Urgent() bool {
	return s == Critical || s == High
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.Name()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*s = ""
		return nil
	}
	*s = NormalizeSeverity(string(b))
	return nil
}

type ConversationStatus string

const (
	Active    ConversationStatus = "active"
	Completed ConversationStatus = "completed"
	Abandoned ConversationStatus = "abandoned"
)

type MessageType string

const (
	TextMessage  MessageType = "text"
	VoiceMessage MessageType = "voice"
)
