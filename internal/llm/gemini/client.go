// Package gemini adapts the Google Gen AI SDK to triage.Generator.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/linnemanlabs/triageline/internal/triage"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash"

// Client implements triage.Generator for the Gemini API.
type Client struct {
	sdk   *genai.Client
	model string
}

// Option customizes the underlying SDK client config.
type Option func(*genai.ClientConfig)

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(u string) Option {
	return func(c *genai.ClientConfig) { c.HTTPOptions.BaseURL = u }
}

// New creates a Gemini client. It fails when no API key is given.
func New(ctx context.Context, apiKey, model string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, o := range opts {
		o(cc)
	}

	sdk, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{sdk: sdk, model: model}, nil
}

// Generate sends a single-turn request and returns the response text.
func (c *Client) Generate(ctx context.Context, req *triage.GenerateRequest) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	resp, err := c.sdk.Models.GenerateContent(ctx, c.model, contents, toConfig(req))
	if err != nil {
		return "", classifyError(err)
	}
	if resp == nil {
		return "", triage.NewCollaboratorError(triage.FailureEmpty, errors.New("nil response"))
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", triage.NewCollaboratorError(triage.FailureEmpty, errors.New("no text in response"))
	}
	return text, nil
}

func toConfig(req *triage.GenerateRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

func classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return triage.NewCollaboratorError(triage.HTTPStatusKind(apiErr.Code), err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return triage.NewCollaboratorError(triage.HTTPStatusKind(apiErrPtr.Code), err)
	}
	return triage.NewCollaboratorError(triage.KindOf(err), err)
}
