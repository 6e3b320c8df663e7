// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/linnemanlabs/triageline/internal/triage"
)

// Store holds consultations and alerts in memory. Suitable for dev/testing.
type Store struct {
	mu            sync.RWMutex
	consultations map[string]*triage.Consultation // consultation ID -> consultation
	byPatient     map[string][]string             // patient ref -> consultation IDs
	alerts        map[string]*triage.EmergencyAlert
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		consultations: make(map[string]*triage.Consultation),
		byPatient:     make(map[string][]string),
		alerts:        make(map[string]*triage.EmergencyAlert),
	}
}

// Get retrieves a consultation by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*triage.Consultation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.consultations[id]
	if !ok {
		return nil, false, nil
	}
	cp := *c
	return &cp, true, nil
}

// Put stores a copy of the consultation.
func (s *Store) Put(_ context.Context, c *triage.Consultation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.consultations[c.ID]; !exists && c.PatientRef != "" {
		s.byPatient[c.PatientRef] = append(s.byPatient[c.PatientRef], c.ID)
	}
	cp := *c
	s.consultations[c.ID] = &cp
	return nil
}

// History returns copies of a patient's consultations, newest first.
func (s *Store) History(_ context.Context, patientRef string, limit int) ([]*triage.Consultation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byPatient[patientRef]
	out := make([]*triage.Consultation, 0, len(ids))
	for _, id := range ids {
		cp := *s.consultations[id]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PutAlert stores a copy of the alert, replacing any earlier version.
func (s *Store) PutAlert(_ context.Context, a *triage.EmergencyAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	cp.Flags = append([]string(nil), a.Flags...)
	s.alerts[a.ID] = &cp
	return nil
}

// ListAlerts returns copies of stored alerts, newest first.
func (s *Store) ListAlerts(_ context.Context, limit int) ([]*triage.EmergencyAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*triage.EmergencyAlert, 0, len(s.alerts))
	for _, a := range s.alerts {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
