package triage

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/go-core/log"
)

const notifyTimeout = 15 * time.Second

// Notifier delivers emergency alerts to an external channel.
type Notifier interface {
	Send(ctx context.Context, a *EmergencyAlert) error
}

// SubmitRequest is one narrative submitted for triage.
type SubmitRequest struct {
	Narrative  Narrative
	PatientRef string
}

// SubmitResult is the outcome of a submission.
type SubmitResult struct {
	Consultation *Consultation
	Alert        *EmergencyAlert
	// Persisted is false when the store rejected the write. The triage
	// outcome is still returned.
	Persisted bool
}

// Service is the business boundary for triage operations.
type Service struct {
	store    Store
	engine   *Engine
	logger   log.Logger
	metrics  *Metrics
	notifier Notifier

	wg sync.WaitGroup
}

// NewService creates a new triage service. metrics and notifier may be nil.
func NewService(store Store, engine *Engine, logger log.Logger, metrics *Metrics, notifier Notifier) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		engine:   engine,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
	}
}

// Submit triages a narrative synchronously, persists the consultation, and
// raises an emergency alert when the engine asks for one. The only error is
// an invalid narrative.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	n := req.Narrative
	n.Symptoms = strings.TrimSpace(n.Symptoms)
	if lang, ok := ParseLanguage(string(n.Language)); ok {
		n.Language = lang
	}

	created := time.Now()
	rr, err := s.engine.Run(ctx, n)
	if err != nil {
		s.observeSubmit("invalid")
		return nil, err
	}

	c := &Consultation{
		ID:          ulid.Make().String(),
		PatientRef:  req.PatientRef,
		Narrative:   n,
		Outcome:     rr.Outcome,
		Assessment:  rr.Assessment,
		RaiseAlert:  rr.RaiseAlert,
		CreatedAt:   created,
		CompletedAt: created.Add(rr.Duration),
		Duration:    rr.Duration.Seconds(),
	}

	L := s.logger.With("consultation_id", c.ID)
	res := &SubmitResult{Consultation: c, Persisted: true}

	if err := s.store.Put(ctx, c); err != nil {
		L.Error(ctx, err, "failed to persist consultation")
		res.Persisted = false
	}

	if rr.RaiseAlert {
		res.Alert = s.raiseAlert(ctx, c, L)
		s.observeSubmit("emergency")
	} else {
		s.observeSubmit("accepted")
	}

	return res, nil
}

func (s *Service) raiseAlert(ctx context.Context, c *Consultation, L log.Logger) *EmergencyAlert {
	a := &EmergencyAlert{
		ID:             ulid.Make().String(),
		ConsultationID: c.ID,
		PatientRef:     c.PatientRef,
		Location:       c.Narrative.Context,
		EmergencyType:  c.Assessment.EmergencyType,
		Language:       c.Narrative.Language,
		RiskScore:      c.Outcome.RiskScore,
		Flags:          append([]string(nil), c.Outcome.EmergencyFlags...),
		CreatedAt:      time.Now(),
	}

	if err := s.store.PutAlert(ctx, a); err != nil {
		L.Error(ctx, err, "failed to persist emergency alert", "alert_id", a.ID)
	}
	L.Warn(ctx, "emergency alert raised",
		"alert_id", a.ID,
		"emergency_type", a.EmergencyType,
		"flags", strings.Join(a.Flags, ","),
	)

	if s.notifier == nil {
		return a
	}

	// detach from the request so a client disconnect does not drop the notification
	notifyCtx := context.WithoutCancel(ctx)
	snapshot := *a
	snapshot.Flags = append([]string(nil), a.Flags...)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.notify(notifyCtx, &snapshot, L)
	}()
	return a
}

func (s *Service) notify(ctx context.Context, a *EmergencyAlert, L log.Logger) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	if err := s.notifier.Send(ctx, a); err != nil {
		L.Error(ctx, err, "failed to send emergency notification", "alert_id", a.ID)
		s.observeNotify("error")
		return
	}
	s.observeNotify("success")

	a.Notified = true
	if err := s.store.PutAlert(ctx, a); err != nil {
		L.Error(ctx, err, "failed to mark alert notified", "alert_id", a.ID)
	}
}

// Wait blocks until in-flight notifications finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Get retrieves a consultation by ID.
func (s *Service) Get(ctx context.Context, id string) (*Consultation, bool, error) {
	return s.store.Get(ctx, id)
}

// History lists a patient's consultations, newest first.
func (s *Service) History(ctx context.Context, patientRef string, limit int) ([]*Consultation, error) {
	return s.store.History(ctx, patientRef, NormalizeLimit(limit))
}

// ListAlerts lists emergency alerts, newest first.
func (s *Service) ListAlerts(ctx context.Context, limit int) ([]*EmergencyAlert, error) {
	return s.store.ListAlerts(ctx, NormalizeLimit(limit))
}

// Lexicon exposes the engine's lexicon for inspection endpoints.
func (s *Service) Lexicon() *Lexicon {
	return s.engine.Lexicon()
}

func (s *Service) observeSubmit(result string) {
	if s.metrics != nil {
		s.metrics.SubmitsTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) observeNotify(status string) {
	if s.metrics != nil {
		s.metrics.NotificationsTotal.WithLabelValues(status).Inc()
	}
}
