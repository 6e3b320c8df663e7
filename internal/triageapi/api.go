// Package triageapi exposes triage operations over HTTP.
package triageapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/triageline/internal/triage"
)

// maxBodyBytes caps a triage request body.
const maxBodyBytes = 64 << 10

// TriageService defines the business operations triageapi needs.
type TriageService interface {
	Submit(ctx context.Context, req triage.SubmitRequest) (*triage.SubmitResult, error)
	Get(ctx context.Context, id string) (*triage.Consultation, bool, error)
	History(ctx context.Context, patientRef string, limit int) ([]*triage.Consultation, error)
	ListAlerts(ctx context.Context, limit int) ([]*triage.EmergencyAlert, error)
	Lexicon() *triage.Lexicon
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    TriageService
}

// New creates a new API handler.
func New(logger log.Logger, svc TriageService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/triage", a.handleSubmit)
		r.Get("/consultations/{id}", a.handleGetConsultation)
		r.Get("/patients/{ref}/consultations", a.handleHistory)
		r.Get("/alerts", a.handleListAlerts)
		r.Post("/lexicon/check", a.handleLexiconCheck)
	})
}

func (a *API) handleGetConsultation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("triageline.consultation.id", id))

	c, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get consultation", "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	span.SetAttributes(attribute.String("triageline.urgency", c.Outcome.UrgencyLevel.String()))
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	list, err := a.svc.History(r.Context(), ref, limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list consultations", "patient_ref", ref)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []*triage.Consultation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"consultations": list})
}

func (a *API) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	list, err := a.svc.ListAlerts(r.Context(), limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list alerts")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []*triage.EmergencyAlert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": list})
}

type lexiconCheckRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// handleLexiconCheck runs only the keyword matcher. No collaborator is called
// and nothing is persisted.
func (a *API) handleLexiconCheck(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req lexiconCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	lang, ok := triage.ParseLanguage(req.Language)
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported language")
		return
	}

	matches := a.svc.Lexicon().Matches(req.Text, lang)
	if matches == nil {
		matches = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"language":  lang,
		"emergency": len(matches) > 0,
		"matches":   matches,
	})
}

// parseLimit reads ?limit=. Missing means the service default.
func parseLimit(r *http.Request) (int, bool) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
