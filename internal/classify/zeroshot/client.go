// Package zeroshot is a triage.Classifier backed by a Hugging Face style
// zero-shot classification endpoint.
package zeroshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/triageline/internal/triage"
)

// DefaultModel is the model path used when only a base URL is configured.
const DefaultModel = "facebook/bart-large-mnli"

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 1 << 20

// Client implements triage.Classifier over HTTP.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// New creates a classifier client. endpoint is the base URL of the inference
// service; model is appended as /models/<model> unless endpoint already names
// a full path.
func New(endpoint, token, model string) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid classifier endpoint %q", endpoint)
	}
	if model == "" {
		model = DefaultModel
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/models/" + strings.TrimPrefix(model, "/")
	}

	return &Client{
		endpoint: u.String(),
		token:    token,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

type request struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
}

type parameters struct {
	CandidateLabels []string `json:"candidate_labels"`
	MultiLabel      bool     `json:"multi_label"`
}

// Classify scores text against labels. The result is in upstream order.
func (c *Client) Classify(ctx context.Context, text string, labels []string) ([]triage.Label, error) {
	body, err := json.Marshal(request{
		Inputs:     text,
		Parameters: parameters{CandidateLabels: labels},
	})
	if err != nil {
		return nil, triage.NewCollaboratorError(triage.FailureInternal, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, triage.NewCollaboratorError(triage.FailureInternal, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, triage.NewCollaboratorError(triage.KindOf(err), fmt.Errorf("classifier request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, triage.NewCollaboratorError(triage.FailureTransport, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, triage.NewCollaboratorError(triage.HTTPStatusKind(resp.StatusCode),
			fmt.Errorf("classifier returned %d: %s", resp.StatusCode, truncate(raw, 256)))
	}

	return decode(raw)
}

// decode accepts both response shapes seen in the wild:
// {"labels": [...], "scores": [...]} and [{"label": ..., "score": ...}].
func decode(raw []byte) ([]triage.Label, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, triage.NewCollaboratorError(triage.FailureEmpty, fmt.Errorf("empty response body"))
	}

	if raw[0] == '[' {
		var pairs []triage.Label
		if err := json.Unmarshal(raw, &pairs); err != nil {
			return nil, triage.NewCollaboratorError(triage.FailureMalformed, fmt.Errorf("decode label list: %w", err))
		}
		return pairs, nil
	}

	var parallel struct {
		Labels []string  `json:"labels"`
		Scores []float64 `json:"scores"`
		Error  string    `json:"error"`
	}
	if err := json.Unmarshal(raw, &parallel); err != nil {
		return nil, triage.NewCollaboratorError(triage.FailureMalformed, fmt.Errorf("decode response: %w", err))
	}
	if parallel.Error != "" {
		return nil, triage.NewCollaboratorError(triage.FailureUnavailable, fmt.Errorf("classifier error: %s", parallel.Error))
	}
	if len(parallel.Labels) != len(parallel.Scores) {
		return nil, triage.NewCollaboratorError(triage.FailureMalformed,
			fmt.Errorf("%d labels but %d scores", len(parallel.Labels), len(parallel.Scores)))
	}

	out := make([]triage.Label, len(parallel.Labels))
	for i := range parallel.Labels {
		out[i] = triage.Label{Name: parallel.Labels[i], Score: parallel.Scores[i]}
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
