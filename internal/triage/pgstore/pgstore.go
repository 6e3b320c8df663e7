// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/triageline/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/triageline/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists consultations and emergency alerts in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on pool and returns a ready Store. The pool stays
// owned by the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

const consultationColumns = `id, patient_ref, language, symptoms, context, outcome, assessment,
	raise_alert, created_at, completed_at, duration_s`

// Get retrieves a consultation by ID.
func (s *Store) Get(ctx context.Context, id string) (*triage.Consultation, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.Get", "SELECT")
	defer span.End()

	query := `SELECT ` + consultationColumns + ` FROM consultations WHERE id = $1`
	c, err := scanConsultation(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fail(span, err)
	}
	return c, true, nil
}

// Put inserts or updates a consultation.
func (s *Store) Put(ctx context.Context, c *triage.Consultation) error {
	ctx, span := startSpan(ctx, "pgstore.Put", "UPSERT")
	defer span.End()

	outcomeJSON, err := json.Marshal(c.Outcome)
	if err != nil {
		return fail(span, fmt.Errorf("marshal outcome: %w", err))
	}
	assessmentJSON, err := json.Marshal(c.Assessment)
	if err != nil {
		return fail(span, fmt.Errorf("marshal assessment: %w", err))
	}

	var completedAt *time.Time
	if !c.CompletedAt.IsZero() {
		completedAt = &c.CompletedAt
	}

	query := `INSERT INTO consultations (
		id, patient_ref, language, symptoms, context, urgency, is_emergency, risk_score,
		raise_alert, outcome, assessment, created_at, completed_at, duration_s
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	ON CONFLICT (id) DO UPDATE SET
		urgency      = EXCLUDED.urgency,
		is_emergency = EXCLUDED.is_emergency,
		risk_score   = EXCLUDED.risk_score,
		raise_alert  = EXCLUDED.raise_alert,
		outcome      = EXCLUDED.outcome,
		assessment   = EXCLUDED.assessment,
		completed_at = EXCLUDED.completed_at,
		duration_s   = EXCLUDED.duration_s`

	_, err = s.pool.Exec(ctx, query,
		c.ID, c.PatientRef, string(c.Narrative.Language), c.Narrative.Symptoms, c.Narrative.Context,
		c.Outcome.UrgencyLevel.String(), c.Outcome.IsEmergency, c.Outcome.RiskScore,
		c.RaiseAlert, outcomeJSON, assessmentJSON, c.CreatedAt, completedAt, c.Duration,
	)
	if err != nil {
		return fail(span, fmt.Errorf("upsert consultation: %w", err))
	}
	return nil
}

// History returns a patient's consultations, newest first.
func (s *Store) History(ctx context.Context, patientRef string, limit int) ([]*triage.Consultation, error) {
	ctx, span := startSpan(ctx, "pgstore.History", "SELECT")
	defer span.End()

	query := `SELECT ` + consultationColumns + ` FROM consultations
		WHERE patient_ref = $1 AND patient_ref <> ''
		ORDER BY created_at DESC LIMIT $2`
	rows, err := s.pool.Query(ctx, query, patientRef, limit)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query history: %w", err))
	}
	defer rows.Close()

	var out []*triage.Consultation
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, fail(span, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate history: %w", err))
	}
	return out, nil
}

// PutAlert inserts or updates an emergency alert.
func (s *Store) PutAlert(ctx context.Context, a *triage.EmergencyAlert) error {
	ctx, span := startSpan(ctx, "pgstore.PutAlert", "UPSERT")
	defer span.End()

	flags := a.Flags
	if flags == nil {
		flags = []string{}
	}

	_, err := s.pool.Exec(ctx, `INSERT INTO emergency_alerts (
		id, consultation_id, patient_ref, location, emergency_type, language, risk_score, flags, notified, created_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	ON CONFLICT (id) DO UPDATE SET
		notified       = EXCLUDED.notified,
		emergency_type = EXCLUDED.emergency_type,
		flags          = EXCLUDED.flags`,
		a.ID, a.ConsultationID, a.PatientRef, a.Location, a.EmergencyType, string(a.Language),
		a.RiskScore, flags, a.Notified, a.CreatedAt,
	)
	if err != nil {
		return fail(span, fmt.Errorf("upsert alert: %w", err))
	}
	return nil
}

// ListAlerts returns emergency alerts, newest first.
func (s *Store) ListAlerts(ctx context.Context, limit int) ([]*triage.EmergencyAlert, error) {
	ctx, span := startSpan(ctx, "pgstore.ListAlerts", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT id, consultation_id, patient_ref, location, emergency_type,
		language, risk_score, flags, notified, created_at
		FROM emergency_alerts ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query alerts: %w", err))
	}
	defer rows.Close()

	var out []*triage.EmergencyAlert
	for rows.Next() {
		var (
			a    triage.EmergencyAlert
			lang string
		)
		if err := rows.Scan(&a.ID, &a.ConsultationID, &a.PatientRef, &a.Location, &a.EmergencyType,
			&lang, &a.RiskScore, &a.Flags, &a.Notified, &a.CreatedAt); err != nil {
			return nil, fail(span, fmt.Errorf("scan alert: %w", err))
		}
		a.Language = triage.Language(lang)
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate alerts: %w", err))
	}
	return out, nil
}

// scanConsultation scans one row. A missing row surfaces as a wrapped pgx.ErrNoRows.
func scanConsultation(row pgx.Row) (*triage.Consultation, error) {
	var (
		c              triage.Consultation
		lang           string
		outcomeJSON    []byte
		assessmentJSON []byte
		completedAt    *time.Time
	)
	err := row.Scan(
		&c.ID, &c.PatientRef, &lang, &c.Narrative.Symptoms, &c.Narrative.Context,
		&outcomeJSON, &assessmentJSON, &c.RaiseAlert, &c.CreatedAt, &completedAt, &c.Duration,
	)
	if err != nil {
		return nil, fmt.Errorf("scan consultation: %w", err)
	}
	c.Narrative.Language = triage.Language(lang)
	if completedAt != nil {
		c.CompletedAt = *completedAt
	}
	if err := json.Unmarshal(outcomeJSON, &c.Outcome); err != nil {
		return nil, fmt.Errorf("unmarshal outcome: %w", err)
	}
	if err := json.Unmarshal(assessmentJSON, &c.Assessment); err != nil {
		return nil, fmt.Errorf("unmarshal assessment: %w", err)
	}
	return &c, nil
}
