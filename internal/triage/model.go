package triage

import (
	"fmt"
	"strings"
	"time"
)

// Language is a supported narrative language tag.
type Language string

const (
	LangEN Language = "en"
	LangES Language = "es"
)

// Languages lists every supported language in a stable order.
var Languages = []Language{LangEN, LangES}

// ParseLanguage normalizes a tag such as "EN" or " es " and reports whether it is supported.
func ParseLanguage(s string) (Language, bool) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	return l, l.Supported()
}

// Supported reports whether l is one of the closed set of languages.
func (l Language) Supported() bool {
	switch l {
	case LangEN, LangES:
		return true
	}
	return false
}

// Urgency is an ordinal urgency level. The zero value means "no vote" and
// sorts below every real level, so max-merging an absent vote is a no-op.
type Urgency int

const (
	UrgencyNone Urgency = iota
	UrgencyLow
	UrgencyMedium
	UrgencyHigh
	UrgencyEmergency
)

var urgencyNames = map[Urgency]string{
	UrgencyLow:       "LOW",
	UrgencyMedium:    "MEDIUM",
	UrgencyHigh:      "HIGH",
	UrgencyEmergency: "EMERGENCY",
}

func (u Urgency) String() string {
	if s, ok := urgencyNames[u]; ok {
		return s
	}
	return "NONE"
}

// Valid reports whether u is one of the four real levels.
func (u Urgency) Valid() bool {
	return u >= UrgencyLow && u <= UrgencyEmergency
}

// MaxUrgency returns the more severe of a and b.
func MaxUrgency(a, b Urgency) Urgency {
	if b > a {
		return b
	}
	return a
}

// ParseUrgency matches an exact urgency token, ignoring case and surrounding
// whitespace/quotes. It does not guess: "critical" is not a known token.
func ParseUrgency(token string) (Urgency, bool) {
	t := strings.ToUpper(strings.Trim(strings.TrimSpace(token), `"'*.`))
	for u, name := range urgencyNames {
		if t == name {
			return u, true
		}
	}
	switch t {
	case "BAJA", "BAJO":
		return UrgencyLow, true
	case "MEDIA", "MEDIO", "MODERADA":
		return UrgencyMedium, true
	case "ALTA", "ALTO":
		return UrgencyHigh, true
	case "EMERGENCIA":
		return UrgencyEmergency, true
	}
	return UrgencyNone, false
}

// NormalizeUrgency maps any token onto the closed set. Unknown tokens become
// MEDIUM, never LOW.
func NormalizeUrgency(token string) Urgency {
	if u, ok := ParseUrgency(token); ok {
		return u
	}
	return UrgencyMedium
}

// MarshalText encodes the level by name.
func (u Urgency) MarshalText() ([]byte, error) {
	if !u.Valid() {
		return nil, fmt.Errorf("invalid urgency %d", int(u))
	}
	return []byte(u.String()), nil
}

// UnmarshalText decodes a level by name, normalizing unknown names to MEDIUM.
func (u *Urgency) UnmarshalText(b []byte) error {
	*u = NormalizeUrgency(string(b))
	return nil
}

// Narrative is one triage input.
type Narrative struct {
	Symptoms string   `json:"symptoms"`
	Language Language `json:"language"`
	Context  string   `json:"context,omitempty"`
}

// Validate rejects empty text and unsupported languages. Errors wrap ErrInvalidInput.
func (n Narrative) Validate() error {
	if strings.TrimSpace(n.Symptoms) == "" {
		return fmt.Errorf("%w: symptoms must not be empty", ErrInvalidInput)
	}
	if !n.Language.Supported() {
		return fmt.Errorf("%w: unsupported language %q", ErrInvalidInput, string(n.Language))
	}
	return nil
}

// Record is the canonical result of one analysis attempt.
type Record struct {
	PossibleConditions []string `json:"possible_conditions"`
	UrgencyLevel       Urgency  `json:"urgency_level"`
	Recommendations    []string `json:"recommendations"`
	RiskScore          float64  `json:"risk_score"`
	EmergencyFlags     []string `json:"emergency_flags"`
}

// Assessment is the narrower emergency verdict.
type Assessment struct {
	IsEmergency   bool   `json:"is_emergency"`
	EmergencyType string `json:"emergency_type,omitempty"`
	Message       string `json:"message"`
}

// Outcome is the final, escalation-aware triage result.
// IsEmergency implies UrgencyLevel == UrgencyEmergency.
type Outcome struct {
	Record
	IsEmergency bool     `json:"is_emergency"`
	Message     string   `json:"message"`
	Language    Language `json:"language"`
	Signals     Signals  `json:"signals"`
}

// Signals records which votes reached arbitration. Operator-facing only.
type Signals struct {
	LexicalMatches      []string `json:"lexical_matches,omitempty"`
	Extraction          Strategy `json:"extraction"`
	GenerationAvailable bool     `json:"generation_available"`
	ClassifierUrgency   string   `json:"classifier_urgency,omitempty"`
	ClassifierEmergency string   `json:"classifier_emergency,omitempty"`
	GenerativeClaim     string   `json:"generative_claim,omitempty"`
}

// RunResult is everything the engine hands back for one narrative.
type RunResult struct {
	Outcome    Outcome    `json:"outcome"`
	Assessment Assessment `json:"assessment"`
	// RaiseAlert tells an embedding caller whether to create an emergency alert.
	RaiseAlert bool          `json:"raise_alert"`
	Duration   time.Duration `json:"-"`
}

// Consultation is a persisted triage run.
type Consultation struct {
	ID          string     `json:"id"`
	PatientRef  string     `json:"patient_ref,omitempty"`
	Narrative   Narrative  `json:"narrative"`
	Outcome     Outcome    `json:"outcome"`
	Assessment  Assessment `json:"assessment"`
	RaiseAlert  bool       `json:"raise_alert"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt time.Time  `json:"completed_at"`
	Duration    float64    `json:"duration_seconds"`
}

// EmergencyAlert is the durable record created when a consultation raises an alert.
type EmergencyAlert struct {
	ID             string    `json:"id"`
	ConsultationID string    `json:"consultation_id"`
	PatientRef     string    `json:"patient_ref,omitempty"`
	Location       string    `json:"location,omitempty"`
	EmergencyType  string    `json:"emergency_type,omitempty"`
	Language       Language  `json:"language"`
	RiskScore      float64   `json:"risk_score"`
	Flags          []string  `json:"flags,omitempty"`
	Notified       bool      `json:"notified"`
	CreatedAt      time.Time `json:"created_at"`
}
