// Package llm implements the bounded LLM fallback for creator detection.
// Every outcome (success, terminal none, exhausted budget, transport
// error) is returned as a value; nothing propagates past this package as
// an error, because the caller must make a forward-progress decision
// regardless of classifier health.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jonesrussell/discount-agent/internal/domain"
	"github.com/jonesrussell/discount-agent/internal/logging"
	"github.com/jonesrussell/discount-agent/internal/metrics"
)

// Confidence is the fixed conservative confidence assigned to any
// LLM-sourced detection.
const Confidence = 0.8

// Terminal error reasons reported in Result.ErrorReason.
const (
	ReasonNoCredential    = "no credential configured"
	ReasonTerminalNone    = "terminal none"
	ReasonBudgetExhausted = "budget exhausted"
	ReasonRetryLimit      = "retry limit exceeded"
)

// noneVerdict is the literal token the model uses to positively report
// that no creator applies. It is terminal: never retried.
const noneVerdict = "none"

// Default retry/backoff tuning.
const (
	defaultMaxAttempts       = 2
	defaultTotalBudget       = 1000 * time.Millisecond
	defaultPerAttemptTimeout = 400 * time.Millisecond
	defaultBackoffBase       = 10 * time.Millisecond
	defaultBackoffIncrement  = 5 * time.Millisecond
	defaultModelVersion      = "gemini-2.5-flash-lite"
)

// Config configures the bounded classifier.
type Config struct {
	// ModelVersion is an opaque label recorded on every result.
	ModelVersion string `yaml:"model_version"`
	// MaxAttempts is the maximum number of model calls per message (>= 1).
	MaxAttempts int `yaml:"max_attempts"`
	// TotalBudget is the wall-clock ceiling across all attempts.
	TotalBudget time.Duration `yaml:"total_budget"`
	// PerAttemptTimeout is the ceiling for a single attempt.
	PerAttemptTimeout time.Duration `yaml:"per_attempt_timeout"`
	// BackoffBase and BackoffIncrement produce a strictly increasing delay
	// between attempts: base + attempt*increment.
	BackoffBase      time.Duration `yaml:"backoff_base"`
	BackoffIncrement time.Duration `yaml:"backoff_increment"`
	// AllowList is the closed set of creator handles the model may return.
	AllowList []string `yaml:"-"`
}

// SetDefaults applies default values to unset fields.
func (c *Config) SetDefaults() {
	if c.ModelVersion == "" {
		c.ModelVersion = defaultModelVersion
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.TotalBudget == 0 {
		c.TotalBudget = defaultTotalBudget
	}
	if c.PerAttemptTimeout == 0 {
		c.PerAttemptTimeout = defaultPerAttemptTimeout
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.BackoffIncrement == 0 {
		c.BackoffIncrement = defaultBackoffIncrement
	}
}

// Validate checks construction-time invariants.
func (c *Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts %d < 1", c.MaxAttempts)
	}
	if c.TotalBudget <= 0 {
		return fmt.Errorf("total_budget must be positive")
	}
	if c.PerAttemptTimeout <= 0 {
		return fmt.Errorf("per_attempt_timeout must be positive")
	}
	if len(c.AllowList) == 0 {
		return fmt.Errorf("allow list is empty")
	}
	return nil
}

// Result is the outcome of one DetectCreator call.
type Result struct {
	// Creator is the validated creator handle, or empty.
	Creator string `json:"creator,omitempty"`
	// Method is always MethodLLM.
	Method domain.DetectionMethod `json:"method"`
	// Confidence is the fixed Confidence constant on success, 0 otherwise.
	Confidence   float64 `json:"confidence"`
	ModelVersion string  `json:"model_version"`
	// Attempts is the number of model calls actually made.
	Attempts int `json:"attempts"`
	// TotalLatency is wall-clock time from entry to return.
	TotalLatency time.Duration `json:"total_latency"`
	// ErrorReason is empty on success; otherwise one of the Reason*
	// constants or a transport summary.
	ErrorReason string `json:"error_reason,omitempty"`
}

// ModelCaller issues one bounded call to the underlying model and returns
// the raw reply text. Implementations must honor ctx cancellation.
type ModelCaller interface {
	Generate(ctx context.Context, message string) (string, error)
}

// Classifier runs the budget-bounded retry protocol around a ModelCaller
// and validates replies against the allow-list. Stateless across calls;
// safe for concurrent use.
type Classifier struct {
	cfg    Config
	caller ModelCaller
	allow  map[string]bool
	logger logging.Logger

	// injectable for deterministic tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Classifier. caller may be nil when no credential is
// configured; DetectCreator then fails fast with ReasonNoCredential.
func New(cfg Config, caller ModelCaller, logger logging.Logger) (*Classifier, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("llm classifier config: %w", err)
	}
	allow := make(map[string]bool, len(cfg.AllowList))
	for _, h := range cfg.AllowList {
		allow[h] = true
	}
	return &Classifier{
		cfg:    cfg,
		caller: caller,
		allow:  allow,
		logger: logger,
		now:    time.Now,
		sleep:  sleepCtx,
	}, nil
}

// DetectCreator asks the model which allow-listed creator the message
// refers to, under the configured budget. See the package comment for the
// failure semantics.
func (c *Classifier) DetectCreator(ctx context.Context, message string) Result {
	start := c.now()
	result := Result{
		Method:       domain.MethodLLM,
		ModelVersion: c.cfg.ModelVersion,
	}
	defer func() { metrics.ObserveLLM(result.Attempts, result.TotalLatency) }()

	if c.caller == nil {
		result.ErrorReason = ReasonNoCredential
		result.TotalLatency = c.now().Sub(start)
		return result
	}

	// Deadline computed once at entry, re-checked before each attempt.
	deadline := start.Add(c.cfg.TotalBudget)
	var lastReason string

	for result.Attempts < c.cfg.MaxAttempts {
		remaining := deadline.Sub(c.now())
		if remaining <= 0 {
			lastReason = ReasonBudgetExhausted
			break
		}
		timeout := c.cfg.PerAttemptTimeout
		if remaining < timeout {
			timeout = remaining
		}
		result.Attempts++

		raw, err := c.attempt(ctx, message, timeout)
		if err != nil {
			// timeout or transport error: a failed attempt, never an
			// error to the caller
			lastReason = fmt.Sprintf("model call failed: %v", err)
			c.logger.Warn("llm attempt failed",
				logging.Int("attempt", result.Attempts),
				logging.Duration("timeout", timeout),
				logging.Err(err))
		} else {
			verdict, verr := c.validateReply(raw)
			switch {
			case verr != nil:
				// invalid response: treated like a transient failure
				lastReason = fmt.Sprintf("invalid response: %v", verr)
				c.logger.Warn("llm reply rejected",
					logging.Int("attempt", result.Attempts),
					logging.Err(verr))
			case verdict == noneVerdict:
				// terminal: the model positively determined no creator
				result.ErrorReason = ReasonTerminalNone
				result.TotalLatency = c.now().Sub(start)
				c.logger.Info("llm returned terminal none",
					logging.Int("attempts", result.Attempts),
					logging.Duration("latency", result.TotalLatency))
				return result
			default:
				result.Creator = verdict
				result.Confidence = Confidence
				result.TotalLatency = c.now().Sub(start)
				c.logger.Info("llm detected creator",
					logging.String("creator", verdict),
					logging.Int("attempts", result.Attempts),
					logging.Duration("latency", result.TotalLatency))
				return result
			}
		}

		if result.Attempts < c.cfg.MaxAttempts {
			backoff := c.cfg.BackoffBase +
				time.Duration(result.Attempts)*c.cfg.BackoffIncrement
			if err := c.sleep(ctx, backoff); err != nil {
				lastReason = fmt.Sprintf("cancelled: %v", err)
				break
			}
		}
	}

	// Attempts ran out without a verdict; the per-attempt failure detail is
	// already logged above.
	if result.Attempts >= c.cfg.MaxAttempts {
		lastReason = ReasonRetryLimit
	}
	result.ErrorReason = lastReason
	result.TotalLatency = c.now().Sub(start)
	c.logger.Info("llm detection failed",
		logging.Int("attempts", result.Attempts),
		logging.Duration("latency", result.TotalLatency),
		logging.String("reason", lastReason))
	return result
}

// attempt issues one model call bounded by timeout.
func (c *Classifier) attempt(ctx context.Context, message string, timeout time.Duration) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.caller.Generate(attemptCtx, message)
}

// replyShape is the only reply structure the classifier trusts.
type replyShape struct {
	Creator *string `json:"creator"`
}

// validateReply parses the raw model reply and checks it against the
// allow-list. An unvalidated string never becomes a creator handle.
func (c *Classifier) validateReply(raw string) (string, error) {
	var reply replyShape
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &reply); err != nil {
		return "", fmt.Errorf("parse reply: %w", err)
	}
	if reply.Creator == nil {
		return "", fmt.Errorf("reply missing creator field")
	}
	v := *reply.Creator
	if v == noneVerdict {
		return noneVerdict, nil
	}
	if !c.allow[v] {
		return "", fmt.Errorf("creator %q not in allow list", v)
	}
	return v, nil
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
