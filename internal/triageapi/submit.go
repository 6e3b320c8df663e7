package triageapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/triageline/internal/triage"
)

type submitRequest struct {
	Symptoms   string `json:"symptoms"`
	Language   string `json:"language"`
	Context    string `json:"context"`
	PatientRef string `json:"patient_ref"`
}

type submitResponse struct {
	ConsultationID string            `json:"consultation_id"`
	Outcome        triage.Outcome    `json:"outcome"`
	Assessment     triage.Assessment `json:"assessment"`
	RaiseAlert     bool              `json:"raise_alert"`
	AlertID        string            `json:"alert_id,omitempty"`
	Persisted      bool              `json:"persisted"`
}

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body submitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	lang, _ := triage.ParseLanguage(body.Language)
	res, err := a.svc.Submit(r.Context(), triage.SubmitRequest{
		Narrative: triage.Narrative{
			Symptoms: body.Symptoms,
			Language: lang,
			Context:  body.Context,
		},
		PatientRef: body.PatientRef,
	})
	if err != nil {
		if errors.Is(err, triage.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.logger.Error(r.Context(), err, "triage submission failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	c := res.Consultation
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("triageline.consultation.id", c.ID),
		attribute.String("triageline.urgency", c.Outcome.UrgencyLevel.String()),
		attribute.Bool("triageline.emergency", c.Outcome.IsEmergency),
	)

	resp := submitResponse{
		ConsultationID: c.ID,
		Outcome:        c.Outcome,
		Assessment:     c.Assessment,
		RaiseAlert:     c.RaiseAlert,
		Persisted:      res.Persisted,
	}
	if res.Alert != nil {
		resp.AlertID = res.Alert.ID
	}
	writeJSON(w, http.StatusOK, resp)
}
