// Package claude adapts the Anthropic Messages API to triage.Generator.
package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/triageline/internal/triage"
)

const jsonOnlyInstruction = "Respond with a single JSON object and nothing else."

// Client implements triage.Generator for the Claude API.
type Client struct {
	sdk   anthropic.Client
	model string
}

// New creates a new Claude client for the given API key and model name.
// Extra request options (base URL, retries) are passed through to the SDK.
func New(apiKey, model string, opts ...option.RequestOption) *Client {
	if apiKey == "" {
		return nil
	}
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		sdk:   anthropic.NewClient(all...),
		model: model,
	}
}

// Generate sends a single-turn request and returns the concatenated text blocks.
func (c *Client) Generate(ctx context.Context, req *triage.GenerateRequest) (string, error) {
	msg, err := c.sdk.Messages.New(ctx, toSDKParams(c.model, req))
	if err != nil {
		return "", classifyError(err)
	}
	return fromSDKResponse(msg)
}

func toSDKParams(model string, req *triage.GenerateRequest) anthropic.MessageNewParams {
	system := req.System
	if req.JSON {
		system = strings.TrimSpace(system + "\n\n" + jsonOnlyInstruction)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

func fromSDKResponse(msg *anthropic.Message) (string, error) {
	if msg == nil {
		return "", triage.NewCollaboratorError(triage.FailureEmpty, errors.New("nil response"))
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", triage.NewCollaboratorError(triage.FailureEmpty,
			fmt.Errorf("no text content (stop reason %q)", msg.StopReason))
	}
	return b.String(), nil
}

func classifyError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return triage.NewCollaboratorError(triage.HTTPStatusKind(apiErr.StatusCode), err)
	}
	return triage.NewCollaboratorError(triage.KindOf(err), err)
}
