package triage

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/linnemanlabs/go-core/log"
)

var tracer = otel.Tracer("github.com/linnemanlabs/triageline/internal/triage")

const (
	DefaultCallTimeout    = 20 * time.Second
	DefaultRequestTimeout = 45 * time.Second
)

// CallOutcome labels the result of one collaborator call for hooks and metrics.
type CallOutcome string

const CallOK CallOutcome = "ok"

func callOutcome(err error) CallOutcome {
	if err == nil {
		return CallOK
	}
	return CallOutcome(KindOf(err))
}

// CompleteEvent summarizes one engine run.
type CompleteEvent struct {
	Language    Language
	Urgency     Urgency
	IsEmergency bool
	Lexical     bool
	Extraction  Strategy
	Duration    time.Duration
}

// EngineHooks are optional callbacks invoked during Engine.Run. Nil fields are skipped.
type EngineHooks struct {
	OnGeneration     func(kind string, outcome CallOutcome, d time.Duration)
	OnClassification func(op string, outcome CallOutcome, d time.Duration)
	OnExtraction     func(s Strategy)
	OnComplete       func(e *CompleteEvent)
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithCallTimeout bounds each collaborator call.
func WithCallTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.callTimeout = d
		}
	}
}

// WithRequestTimeout bounds the whole run.
func WithRequestTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.requestTimeout = d
		}
	}
}

// Engine turns one narrative into a final, escalation-aware triage outcome.
// It is safe for concurrent use; all per-run state lives on the stack.
type Engine struct {
	gen            Generator
	cls            Classifier
	lexicon        *Lexicon
	extractor      *Extractor
	logger         log.Logger
	hooks          EngineHooks
	callTimeout    time.Duration
	requestTimeout time.Duration
}

// NewEngine creates an engine. gen and cls may be nil, in which case their
// votes are always absent.
func NewEngine(gen Generator, cls Classifier, lexicon *Lexicon, logger log.Logger, hooks EngineHooks, opts ...EngineOption) *Engine {
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}
	if logger == nil {
		logger = log.Nop()
	}
	e := &Engine{
		gen:            gen,
		cls:            cls,
		lexicon:        lexicon,
		extractor:      NewExtractor(lexicon),
		logger:         logger,
		hooks:          hooks,
		callTimeout:    DefaultCallTimeout,
		requestTimeout: DefaultRequestTimeout,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Lexicon returns the engine's keyword lexicon.
func (e *Engine) Lexicon() *Lexicon { return e.lexicon }

// Run triages n. The only error is an invalid narrative, returned before any
// collaborator is called; every collaborator failure is absorbed.
func (e *Engine) Run(ctx context.Context, n Narrative) (*RunResult, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "triage.Run", trace.WithAttributes(
		attribute.String("triage.language", string(n.Language)),
		attribute.Int("triage.symptoms.length", len(n.Symptoms)),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, e.requestTimeout)
	defer cancel()

	L := e.logger.With("language", string(n.Language))
	analyzer := NewAnalyzer(e.gen, e.callTimeout)
	validator := NewValidator(e.cls, e.callTimeout)

	// stage 1: both generative calls and the lexical match are independent
	var (
		analysisRaw, emergencyRaw string
		analysisErr, emergencyErr error
		lexical                   []string
	)
	g1, g1ctx := errgroup.WithContext(ctx)
	g1.Go(func() error {
		analysisRaw, analysisErr = e.generate(g1ctx, "analysis", func(ctx context.Context) (string, error) {
			return analyzer.AnalyzeSymptoms(ctx, n)
		})
		return nil
	})
	g1.Go(func() error {
		emergencyRaw, emergencyErr = e.generate(g1ctx, "emergency", func(ctx context.Context) (string, error) {
			return analyzer.AssessEmergency(ctx, n)
		})
		return nil
	})
	g1.Go(func() error {
		lexical = e.lexicon.Matches(n.Symptoms, n.Language)
		return nil
	})
	_ = g1.Wait()

	if analysisErr != nil {
		L.Warn(ctx, "analysis generation unavailable", "kind", KindOf(analysisErr), "error", analysisErr.Error())
	}
	if emergencyErr != nil {
		L.Warn(ctx, "emergency generation unavailable", "kind", KindOf(emergencyErr), "error", emergencyErr.Error())
	}

	// stage 2: extraction
	record, strategy := e.extractor.Extract(analysisRaw, n.Symptoms, n.Language)
	if e.hooks.OnExtraction != nil {
		e.hooks.OnExtraction(strategy)
	}
	claim, claimed := e.extractor.ExtractAssessment(emergencyRaw, n.Language)

	// stage 3: classifier votes depend on the generative output
	ballot := Ballot{
		Lexical:  lexical,
		Record:   record,
		Language: n.Language,
	}
	if claimed {
		ballot.Emergency = VoteOf(claim.IsEmergency, nil)
	}

	var classifierUrgency, classifierEmergency string
	if validator.Available() {
		var (
			urgency      Urgency
			urgencyErr   error
			emergencyYes bool
			validateErr  error
			recommended  []string
			recommendErr error
		)
		// urgency and emergency votes classify the same symptoms + analysis text
		combined := joinForClassification(n.Symptoms, analysisRaw)
		needRecs := onlySentinel(record.Recommendations, n.Language)

		g2, g2ctx := errgroup.WithContext(ctx)
		g2.Go(func() error {
			urgency, urgencyErr = classifyCall(g2ctx, e, "urgency", func(ctx context.Context) (Urgency, error) {
				return validator.ClassifyUrgency(ctx, combined)
			})
			return nil
		})
		g2.Go(func() error {
			emergencyYes, validateErr = classifyCall(g2ctx, e, "emergency", func(ctx context.Context) (bool, error) {
				return validator.ValidateEmergency(ctx, n.Symptoms, analysisRaw)
			})
			return nil
		})
		if needRecs {
			g2.Go(func() error {
				recommended, recommendErr = classifyCall(g2ctx, e, "recommendations", func(ctx context.Context) ([]string, error) {
					return validator.ClassifyRecommendations(ctx, combined, n.Language)
				})
				return nil
			})
		}
		_ = g2.Wait()

		if urgencyErr == nil {
			ballot.Urgency = urgency
			classifierUrgency = urgency.String()
		} else {
			L.Warn(ctx, "urgency classification unavailable", "kind", KindOf(urgencyErr), "error", urgencyErr.Error())
		}
		if validateErr == nil {
			ballot.Emergency = VoteOf(emergencyYes, nil)
			classifierEmergency = ballot.Emergency.String()
		} else {
			L.Warn(ctx, "emergency validation unavailable", "kind", KindOf(validateErr), "error", validateErr.Error())
		}
		if needRecs && recommendErr == nil {
			ballot.Recommended = recommended
			ballot.RecommenderAvailable = true
		}
	}

	outcome := Arbitrate(ballot)

	signals := Signals{
		LexicalMatches:      lexical,
		Extraction:          strategy,
		GenerationAvailable: analysisErr == nil,
		ClassifierUrgency:   classifierUrgency,
		ClassifierEmergency: classifierEmergency,
	}
	if claimed {
		signals.GenerativeClaim = VoteOf(claim.IsEmergency, nil).String()
	}

	rr := assemble(outcome, claim, claimed, signals)
	rr.Duration = time.Since(start)

	span.SetAttributes(
		attribute.String("triage.urgency", rr.Outcome.UrgencyLevel.String()),
		attribute.Bool("triage.emergency", rr.Outcome.IsEmergency),
		attribute.String("triage.extraction", string(strategy)),
		attribute.Int("triage.lexical_matches", len(lexical)),
	)
	span.SetStatus(codes.Ok, "")

	if e.hooks.OnComplete != nil {
		e.hooks.OnComplete(&CompleteEvent{
			Language:    n.Language,
			Urgency:     rr.Outcome.UrgencyLevel,
			IsEmergency: rr.Outcome.IsEmergency,
			Lexical:     len(lexical) > 0,
			Extraction:  strategy,
			Duration:    rr.Duration,
		})
	}

	L.Info(ctx, "triage complete",
		"urgency", rr.Outcome.UrgencyLevel.String(),
		"emergency", rr.Outcome.IsEmergency,
		"risk_score", rr.Outcome.RiskScore,
		"extraction", string(strategy),
		"lexical_matches", len(lexical),
		"duration", rr.Duration.Seconds(),
	)

	return &rr, nil
}

func (e *Engine) generate(ctx context.Context, kind string, fn func(context.Context) (string, error)) (string, error) {
	ctx, span := tracer.Start(ctx, "triage.generate", trace.WithAttributes(attribute.String("triage.generation.kind", kind)))
	defer span.End()

	start := time.Now()
	out, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if e.hooks.OnGeneration != nil {
		e.hooks.OnGeneration(kind, callOutcome(err), time.Since(start))
	}
	return out, err
}

func classifyCall[T any](ctx context.Context, e *Engine, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, "triage.classify", trace.WithAttributes(attribute.String("triage.classification.op", op)))
	defer span.End()

	start := time.Now()
	v, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if e.hooks.OnClassification != nil {
		e.hooks.OnClassification(op, callOutcome(err), time.Since(start))
	}
	return v, err
}
