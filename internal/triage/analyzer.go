package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	analysisMaxTokens  = 1024
	emergencyMaxTokens = 256
)

// Generator is the interface for any generative text backend.
type Generator interface {
	Generate(ctx context.Context, req *GenerateRequest) (string, error)
}

// GenerateRequest is a single-turn generation request.
type GenerateRequest struct {
	System    string
	Prompt    string
	MaxTokens int
	// JSON asks the backend to prefer a JSON-only answer where it supports that.
	JSON bool
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req *GenerateRequest) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	return f(ctx, req)
}

// Analyzer issues the two generative calls for a narrative.
type Analyzer struct {
	gen     Generator
	timeout time.Duration
}

// NewAnalyzer wraps gen. A nil gen yields an analyzer whose calls always
// fail with FailureUnavailable.
func NewAnalyzer(gen Generator, timeout time.Duration) *Analyzer {
	return &Analyzer{gen: gen, timeout: timeout}
}

// Available reports whether a generator is configured.
func (a *Analyzer) Available() bool { return a != nil && a.gen != nil }

// AnalyzeSymptoms returns the raw analysis text for n.
func (a *Analyzer) AnalyzeSymptoms(ctx context.Context, n Narrative) (string, error) {
	return a.generate(ctx, analysisRequest(n))
}

// AssessEmergency returns the raw emergency-assessment text for n.
func (a *Analyzer) AssessEmergency(ctx context.Context, n Narrative) (string, error) {
	return a.generate(ctx, emergencyRequest(n))
}

func (a *Analyzer) generate(ctx context.Context, req *GenerateRequest) (string, error) {
	if !a.Available() {
		return "", NewCollaboratorError(FailureUnavailable, fmt.Errorf("no generator configured"))
	}
	out, err := bounded(ctx, a.timeout, func(ctx context.Context) (string, error) {
		return a.gen.Generate(ctx, req)
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", NewCollaboratorError(FailureEmpty, fmt.Errorf("empty generation"))
	}
	return out, nil
}

// bounded runs fn with a deadline and converts panics, timeouts, and untyped
// errors into CollaboratorError. It returns as soon as the deadline passes
// even if fn ignores its context.
func bounded[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: NewCollaboratorError(FailureInternal, fmt.Errorf("panic: %v", r))}
			}
		}()
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return zero, asCollaboratorError(r.err)
		}
		return r.v, nil
	case <-ctx.Done():
		return zero, NewCollaboratorError(FailureTimeout, ctx.Err())
	}
}

func asCollaboratorError(err error) error {
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return err
	}
	return NewCollaboratorError(KindOf(err), err)
}
