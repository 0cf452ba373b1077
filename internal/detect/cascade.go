package detect

import (
	"context"

	"github.com/jonesrussell/discount-agent/internal/domain"
	"github.com/jonesrussell/discount-agent/internal/llm"
	"github.com/jonesrussell/discount-agent/internal/logging"
)

const exactConfidence = 1.0

// FallbackClassifier is the LLM fallback boundary. Implementations never
// fail: every outcome is carried in the Result value.
type FallbackClassifier interface {
	DetectCreator(ctx context.Context, message string) llm.Result
}

// Cascade composes the detection stages into one decision per message, in
// strict priority order: scope gate, exact, fuzzy, LLM fallback. A later
// stage never overrides an earlier stage's accepted match. Stateless
// across messages; safe for concurrent use over one campaign snapshot.
type Cascade struct {
	gate     *ScopeGate
	matcher  *Matcher
	fallback FallbackClassifier
	flags    domain.Flags
	logger   logging.Logger
}

// NewCascade builds a cascade for a validated campaign snapshot. fallback
// may be nil; the LLM stage is then skipped and unresolved messages fall
// through to ask-user.
func NewCascade(campaign *domain.Campaign, fallback FallbackClassifier, logger logging.Logger) *Cascade {
	return &Cascade{
		gate:     NewScopeGate(campaign),
		matcher:  NewMatcher(campaign, logger),
		fallback: fallback,
		flags:    campaign.Flags,
		logger:   logger,
	}
}

// Classify runs the full cascade on a raw message.
func (c *Cascade) Classify(ctx context.Context, rawMessage string) domain.Decision {
	text := Normalize(rawMessage)

	if !c.gate.InScope(text) {
		c.logger.Debug("message out of scope", logging.String("text", text))
		return domain.Decision{Method: domain.MethodNone, InScope: false}
	}

	if creator, ok := c.matcher.ExactMatch(text); ok {
		return domain.Decision{
			Creator:    creator,
			Method:     domain.MethodExact,
			Confidence: exactConfidence,
			InScope:    true,
		}
	}

	if c.flags.EnableFuzzyMatching {
		if creator, score, ok := c.matcher.FuzzyMatch(text); ok {
			return domain.Decision{
				Creator:    creator,
				Method:     domain.MethodFuzzy,
				Confidence: score,
				InScope:    true,
			}
		}
	}

	if c.flags.EnableLLMFallback && c.fallback != nil {
		result := c.fallback.DetectCreator(ctx, text)
		if result.Creator != "" {
			return domain.Decision{
				Creator:    result.Creator,
				Method:     domain.MethodLLM,
				Confidence: result.Confidence,
				InScope:    true,
			}
		}
		c.logger.Info("llm fallback returned no creator",
			logging.Int("attempts", result.Attempts),
			logging.String("reason", result.ErrorReason))
	}

	// in scope but unresolved: the caller asks the user for the creator
	return domain.Decision{Method: domain.MethodNone, InScope: true}
}
