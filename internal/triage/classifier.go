package triage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Classifier is the interface for a zero-shot text-classification backend.
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) ([]Label, error)
}

// Label is one ranked classification result.
type Label struct {
	Name  string  `json:"label"`
	Score float64 `json:"score"`
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, text string, labels []string) ([]Label, error)

func (f ClassifierFunc) Classify(ctx context.Context, text string, labels []string) ([]Label, error) {
	return f(ctx, text, labels)
}

const (
	labelEmergency    = "medical emergency"
	labelNonEmergency = "not an emergency"

	// recommendationFloor drops recommendation labels below this confidence.
	recommendationFloor = 0.3
)

var urgencyLabels = map[string]Urgency{
	"low urgency":       UrgencyLow,
	"medium urgency":    UrgencyMedium,
	"high urgency":      UrgencyHigh,
	"emergency urgency": UrgencyEmergency,
}

var urgencyLabelOrder = []string{"low urgency", "medium urgency", "high urgency", "emergency urgency"}

type recommendationLabel struct {
	label string
	text  map[Language]string
}

var recommendationLabels = []recommendationLabel{
	{"call emergency services", map[Language]string{
		LangEN: "Call emergency services immediately",
		LangES: "Llame a los servicios de emergencia de inmediato",
	}},
	{"visit the emergency room", map[Language]string{
		LangEN: "Go to the nearest emergency room",
		LangES: "Acuda a la sala de emergencias más cercana",
	}},
	{"see a doctor within 24 hours", map[Language]string{
		LangEN: "See a doctor within 24 hours",
		LangES: "Consulte a un médico en las próximas 24 horas",
	}},
	{"schedule a routine appointment", map[Language]string{
		LangEN: "Schedule a routine appointment with your doctor",
		LangES: "Programe una cita de rutina con su médico",
	}},
	{"rest and hydrate", map[Language]string{
		LangEN: "Rest and stay hydrated",
		LangES: "Descanse y manténgase hidratado",
	}},
	{"take over-the-counter medication", map[Language]string{
		LangEN: "Consider over-the-counter pain relief",
		LangES: "Considere un analgésico de venta libre",
	}},
	{"monitor symptoms at home", map[Language]string{
		LangEN: "Monitor your symptoms and seek care if they worsen",
		LangES: "Vigile sus síntomas y busque atención si empeoran",
	}},
}

// Validator issues the three classification calls used to corroborate the
// generative output.
type Validator struct {
	cls     Classifier
	timeout time.Duration
}

// NewValidator wraps cls. A nil cls yields a validator that is never available.
func NewValidator(cls Classifier, timeout time.Duration) *Validator {
	return &Validator{cls: cls, timeout: timeout}
}

// Available reports whether a classifier is configured.
func (v *Validator) Available() bool { return v != nil && v.cls != nil }

// ClassifyUrgency returns the top-scoring urgency label for text. Ties go to
// the more severe level.
func (v *Validator) ClassifyUrgency(ctx context.Context, text string) (Urgency, error) {
	ranked, err := v.classify(ctx, text, urgencyLabelOrder)
	if err != nil {
		return UrgencyNone, err
	}
	best, bestScore := UrgencyNone, -1.0
	for _, l := range ranked {
		u, ok := urgencyLabels[l.Name]
		if !ok {
			continue
		}
		if l.Score > bestScore || (l.Score == bestScore && u > best) {
			best, bestScore = u, l.Score
		}
	}
	if best == UrgencyNone {
		return UrgencyNone, NewCollaboratorError(FailureMalformed, fmt.Errorf("no urgency label in response"))
	}
	return best, nil
}

// ValidateEmergency classifies symptoms plus model output against a binary
// emergency framing. No confidence floor is applied; the higher label wins and
// a tie counts as an emergency.
func (v *Validator) ValidateEmergency(ctx context.Context, symptoms, modelOutput string) (bool, error) {
	ranked, err := v.classify(ctx, joinForClassification(symptoms, modelOutput), []string{labelEmergency, labelNonEmergency})
	if err != nil {
		return false, err
	}
	var yes, no float64
	var seen bool
	for _, l := range ranked {
		switch l.Name {
		case labelEmergency:
			yes, seen = l.Score, true
		case labelNonEmergency:
			no, seen = l.Score, true
		}
	}
	if !seen {
		return false, NewCollaboratorError(FailureMalformed, fmt.Errorf("no emergency label in response"))
	}
	return yes >= no, nil
}

// ClassifyRecommendations returns up to three localized recommendations whose
// label scored at or above the confidence floor, best first.
func (v *Validator) ClassifyRecommendations(ctx context.Context, text string, lang Language) ([]string, error) {
	labels := make([]string, len(recommendationLabels))
	byLabel := make(map[string]recommendationLabel, len(recommendationLabels))
	for i, r := range recommendationLabels {
		labels[i] = r.label
		byLabel[r.label] = r
	}

	ranked, err := v.classify(ctx, text, labels)
	if err != nil {
		return nil, err
	}
	ranked = append([]Label(nil), ranked...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	var out []string
	for _, l := range ranked {
		r, ok := byLabel[l.Name]
		if !ok || l.Score < recommendationFloor {
			continue
		}
		msg, ok := r.text[lang]
		if !ok {
			msg = r.text[LangEN]
		}
		out = append(out, msg)
		if len(out) == maxRecommendations {
			break
		}
	}
	return out, nil
}

func (v *Validator) classify(ctx context.Context, text string, labels []string) ([]Label, error) {
	if !v.Available() {
		return nil, NewCollaboratorError(FailureUnavailable, fmt.Errorf("no classifier configured"))
	}
	ranked, err := bounded(ctx, v.timeout, func(ctx context.Context) ([]Label, error) {
		return v.cls.Classify(ctx, text, labels)
	})
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, NewCollaboratorError(FailureEmpty, fmt.Errorf("empty classification"))
	}
	return ranked, nil
}

func joinForClassification(symptoms, modelOutput string) string {
	if strings.TrimSpace(modelOutput) == "" {
		return symptoms
	}
	return symptoms + "\n\n" + modelOutput
}
