package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"time"
)

// Generator backends accepted by -generator.
const (
	GeneratorClaude = "claude"
	GeneratorGemini = "gemini"
	GeneratorNone   = "none"
)

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	Generator             string
	ClaudeAPIKey          string
	ClaudeModel           string
	GeminiAPIKey          string
	GeminiModel           string
	ClassifierEndpoint    string
	ClassifierToken       string
	ClassifierModel       string
	CallTimeoutSeconds    int
	RequestTimeoutSeconds int
	DatabaseURL           string
	SlackWebhookURL       string
	LexiconFile           string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on /api/v1 (empty = no auth)")
	fs.StringVar(&c.Generator, "generator", GeneratorClaude, "generation backend: claude, gemini or none")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude generation backend")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-5", "Claude model to use")
	fs.StringVar(&c.GeminiAPIKey, "gemini-api-key", "", "API key for the Gemini generation backend")
	fs.StringVar(&c.GeminiModel, "gemini-model", "gemini-2.5-flash", "Gemini model to use")
	fs.StringVar(&c.ClassifierEndpoint, "classifier-endpoint", "", "zero-shot classification endpoint URL (empty = no validating classifier)")
	fs.StringVar(&c.ClassifierToken, "classifier-token", "", "bearer token for the classification endpoint")
	fs.StringVar(&c.ClassifierModel, "classifier-model", "facebook/bart-large-mnli", "zero-shot classification model path")
	fs.IntVar(&c.CallTimeoutSeconds, "call-timeout-seconds", 20, "timeout for each generation or classification call (1..120)")
	fs.IntVar(&c.RequestTimeoutSeconds, "request-timeout-seconds", 45, "timeout for one whole triage run (1..300)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for emergency alert notifications")
	fs.StringVar(&c.LexiconFile, "lexicon-file", "", "YAML file extending or replacing the emergency keyword lexicon")
}

// CallTimeout is the per-call collaborator timeout.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// RequestTimeout bounds one triage run.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	switch c.Generator {
	case GeneratorClaude:
		if c.ClaudeAPIKey == "" {
			errs = append(errs, errors.New("CLAUDE_API_KEY is required when GENERATOR=claude"))
		}
		if c.ClaudeModel == "" {
			errs = append(errs, errors.New("CLAUDE_MODEL is required when GENERATOR=claude"))
		}
	case GeneratorGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when GENERATOR=gemini"))
		}
	case GeneratorNone:
	default:
		errs = append(errs, fmt.Errorf("invalid GENERATOR %q (must be claude, gemini or none)", c.Generator))
	}

	if c.ClassifierEndpoint != "" {
		if u, err := url.Parse(c.ClassifierEndpoint); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid CLASSIFIER_ENDPOINT %q", c.ClassifierEndpoint))
		}
	}

	// Timeouts: a whole run must leave room for at least one call
	if c.CallTimeoutSeconds <= 0 || c.CallTimeoutSeconds > 120 {
		errs = append(errs, fmt.Errorf("invalid CALL_TIMEOUT_SECONDS %d (must be 1..120)", c.CallTimeoutSeconds))
	}
	if c.RequestTimeoutSeconds <= 0 || c.RequestTimeoutSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid REQUEST_TIMEOUT_SECONDS %d (must be 1..300)", c.RequestTimeoutSeconds))
	}
	if c.RequestTimeoutSeconds < c.CallTimeoutSeconds {
		errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT_SECONDS %d must be at least CALL_TIMEOUT_SECONDS %d", c.RequestTimeoutSeconds, c.CallTimeoutSeconds))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
