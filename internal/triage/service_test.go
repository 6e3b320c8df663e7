package triage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/linnemanlabs/go-core/log"
)

// fakeStore is a minimal in-memory Store for service tests.
type fakeStore struct {
	mu       sync.Mutex
	items    map[string]*Consultation
	alerts   map[string]*EmergencyAlert
	putErr   error
	alertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: map[string]*Consultation{}, alerts: map[string]*EmergencyAlert{}}
}

func (s *fakeStore) Get(_ context.Context, id string) (*Consultation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[id]
	return c, ok, nil
}

func (s *fakeStore) Put(_ context.Context, c *Consultation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.items[c.ID] = c
	return nil
}

func (s *fakeStore) History(_ context.Context, patientRef string, limit int) ([]*Consultation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Consultation
	for _, c := range s.items {
		if c.PatientRef == patientRef && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) PutAlert(_ context.Context, a *EmergencyAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alertErr != nil {
		return s.alertErr
	}
	cp := *a
	s.alerts[a.ID] = &cp
	return nil
}

func (s *fakeStore) ListAlerts(_ context.Context, limit int) ([]*EmergencyAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*EmergencyAlert
	for _, a := range s.alerts {
		if len(out) < limit {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []*EmergencyAlert
	err  error
}

func (m *mockNotifier) Send(_ context.Context, a *EmergencyAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, a)
	return m.err
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func newTestService(t *testing.T, store Store, notifier Notifier) (*Service, *Metrics) {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry())
	engine := NewEngine(nil, nil, nil, log.Nop(), metrics.Hooks())
	return NewService(store, engine, log.Nop(), metrics, notifier), metrics
}

func TestService_SubmitRoutine(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &mockNotifier{}
	svc, metrics := newTestService(t, store, notifier)

	res, err := svc.Submit(context.Background(), SubmitRequest{
		Narrative:  Narrative{Symptoms: "  runny nose  ", Language: "EN"},
		PatientRef: "p-1",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	svc.Wait()

	c := res.Consultation
	if c.ID == "" || !res.Persisted {
		t.Fatalf("consultation not persisted: %+v", res)
	}
	if c.Narrative.Symptoms != "runny nose" || c.Narrative.Language != LangEN {
		t.Errorf("narrative not normalized: %+v", c.Narrative)
	}
	if res.Alert != nil || c.RaiseAlert {
		t.Error("routine narrative raised an alert")
	}
	if notifier.count() != 0 {
		t.Error("notifier called for routine narrative")
	}
	if got, ok, _ := svc.Get(context.Background(), c.ID); !ok || got.ID != c.ID {
		t.Error("consultation not retrievable")
	}
	if v := testutil.ToFloat64(metrics.SubmitsTotal.WithLabelValues("accepted")); v != 1 {
		t.Errorf("accepted submits = %v, want 1", v)
	}
	if v := testutil.ToFloat64(metrics.TriagesTotal.WithLabelValues("MEDIUM", "en")); v != 1 {
		t.Errorf("triages{MEDIUM,en} = %v, want 1", v)
	}
}

func TestService_SubmitEmergencyRaisesAlert(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &mockNotifier{}
	svc, metrics := newTestService(t, store, notifier)

	res, err := svc.Submit(context.Background(), SubmitRequest{
		Narrative:  Narrative{Symptoms: "crushing chest pain", Language: LangEN, Context: "Room 12, Main St clinic"},
		PatientRef: "p-2",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	svc.Wait()

	a := res.Alert
	if a == nil {
		t.Fatal("no alert raised")
	}
	if a.ConsultationID != res.Consultation.ID || a.PatientRef != "p-2" {
		t.Errorf("alert not linked: %+v", a)
	}
	if a.Location != "Room 12, Main St clinic" {
		t.Errorf("location = %q", a.Location)
	}
	if a.EmergencyType != "chest pain" {
		t.Errorf("emergency type = %q", a.EmergencyType)
	}
	if notifier.count() != 1 {
		t.Fatalf("notifications = %d, want 1", notifier.count())
	}

	alerts, _ := svc.ListAlerts(context.Background(), 0)
	if len(alerts) != 1 || !alerts[0].Notified {
		t.Errorf("stored alerts = %+v, want one notified alert", alerts)
	}
	if v := testutil.ToFloat64(metrics.SubmitsTotal.WithLabelValues("emergency")); v != 1 {
		t.Errorf("emergency submits = %v, want 1", v)
	}
	if v := testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("success")); v != 1 {
		t.Errorf("notification successes = %v, want 1", v)
	}
	if v := testutil.ToFloat64(metrics.EmergenciesTotal.WithLabelValues("true")); v != 1 {
		t.Errorf("lexical emergencies = %v, want 1", v)
	}
}

func TestService_NotificationFailureLeavesAlertUnnotified(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &mockNotifier{err: errors.New("webhook 500")}
	svc, metrics := newTestService(t, store, notifier)

	res, err := svc.Submit(context.Background(), SubmitRequest{Narrative: Narrative{Symptoms: "convulsiones", Language: LangES}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	svc.Wait()

	if res.Alert == nil {
		t.Fatal("no alert raised")
	}
	alerts, _ := svc.ListAlerts(context.Background(), 10)
	if len(alerts) != 1 || alerts[0].Notified {
		t.Errorf("stored alerts = %+v, want one unnotified alert", alerts)
	}
	if v := testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("error")); v != 1 {
		t.Errorf("notification errors = %v, want 1", v)
	}
}

func TestService_StoreFailureStillReturnsOutcome(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.putErr = errors.New("disk full")
	store.alertErr = errors.New("disk full")
	svc, _ := newTestService(t, store, nil)

	res, err := svc.Submit(context.Background(), SubmitRequest{Narrative: Narrative{Symptoms: "severe bleeding", Language: LangEN}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Persisted {
		t.Error("Persisted = true after store failure")
	}
	if !res.Consultation.Outcome.IsEmergency || res.Alert == nil {
		t.Error("emergency outcome lost on store failure")
	}
}

func TestService_SubmitInvalid(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, metrics := newTestService(t, store, nil)

	_, err := svc.Submit(context.Background(), SubmitRequest{Narrative: Narrative{Symptoms: "", Language: LangEN}})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if len(store.items) != 0 {
		t.Error("invalid submission persisted")
	}
	if v := testutil.ToFloat64(metrics.SubmitsTotal.WithLabelValues("invalid")); v != 1 {
		t.Errorf("invalid submits = %v, want 1", v)
	}
}

func TestService_HistoryClampsLimit(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, newFakeStore(), nil)
	for range 3 {
		if _, err := svc.Submit(context.Background(), SubmitRequest{
			Narrative:  Narrative{Symptoms: "sore throat", Language: LangEN},
			PatientRef: "p-9",
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	got, err := svc.History(context.Background(), "p-9", -1)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("history = %d entries, want 3", len(got))
	}
}

func TestNormalizeLimit(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want int }{
		{0, DefaultListLimit},
		{-5, DefaultListLimit},
		{10, 10},
		{501, 500},
	}
	for _, tt := range tests {
		if got := NormalizeLimit(tt.in); got != tt.want {
			t.Errorf("NormalizeLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
