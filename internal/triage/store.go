package triage

import "context"

// Store is the persistence interface for consultations and emergency alerts.
type Store interface {
	Get(ctx context.Context, id string) (*Consultation, bool, error)
	Put(ctx context.Context, c *Consultation) error
	// History returns a patient's consultations, newest first.
	History(ctx context.Context, patientRef string, limit int) ([]*Consultation, error)
	PutAlert(ctx context.Context, a *EmergencyAlert) error
	// ListAlerts returns emergency alerts, newest first.
	ListAlerts(ctx context.Context, limit int) ([]*EmergencyAlert, error)
}

// DefaultListLimit is used when a caller passes a non-positive limit.
const DefaultListLimit = 50

// NormalizeLimit clamps limit into (0, 500].
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > 500:
		return 500
	}
	return limit
}
