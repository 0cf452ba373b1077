// Package agent composes the detection cascade with the campaign business
// rules: reply selection, one-code-per-user enforcement, lead enrichment,
// and audit row construction.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/discount-agent/internal/domain"
	"github.com/jonesrussell/discount-agent/internal/logging"
	"github.com/jonesrussell/discount-agent/internal/metrics"
	"github.com/jonesrussell/discount-agent/internal/templates"
)

// Cascade is the detection boundary the agent drives.
type Cascade interface {
	Classify(ctx context.Context, rawMessage string) domain.Decision
}

// Store is the interaction persistence boundary.
type Store interface {
	Create(ctx context.Context, row *domain.InteractionRow) error
	CanIssueCode(ctx context.Context, platform domain.Platform, userID string) (bool, error)
}

// Agent processes one message end to end. It holds an immutable snapshot
// of the campaign and templates; reloads construct a new Agent.
type Agent struct {
	campaign *domain.Campaign
	cascade  Cascade
	store    Store
	tmpl     *templates.Templates
	logger   logging.Logger
}

// New creates an agent over a validated campaign snapshot.
func New(campaign *domain.Campaign, cascade Cascade, store Store, tmpl *templates.Templates, logger logging.Logger) *Agent {
	return &Agent{
		campaign: campaign,
		cascade:  cascade,
		store:    store,
		tmpl:     tmpl,
		logger:   logger,
	}
}

// ProcessMessage runs the cascade, applies the issuance rules, renders the
// reply, and persists the audit row. A store failure is logged but does
// not fail the interaction; the user still gets a reply.
func (a *Agent) ProcessMessage(ctx context.Context, incoming *domain.IncomingMessage) (*domain.AgentDecision, *domain.InteractionRow, error) {
	if err := incoming.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid message: %w", err)
	}

	start := time.Now()
	detection := a.cascade.Classify(ctx, incoming.Text)

	decision := &domain.AgentDecision{
		IdentifiedCreator:   detection.Creator,
		DetectionMethod:     detection.Method,
		DetectionConfidence: detection.Confidence,
		Trace: []string{
			fmt.Sprintf("detect: method=%s creator=%q confidence=%.2f in_scope=%t",
				detection.Method, detection.Creator, detection.Confidence, detection.InScope),
		},
	}

	switch {
	case !detection.InScope:
		decision.TemplateKey = templates.KeyOutOfScope
		decision.ConversationStatus = domain.StatusOutOfScope

	case detection.Creator == "":
		// in scope but unresolved: ask the user which creator sent them
		decision.TemplateKey = templates.KeyAskCreator
		decision.ConversationStatus = domain.StatusPendingCreatorInfo

	default:
		a.decideIssuance(ctx, incoming, detection.Creator, decision)
		enrich(incoming.UserID, decision)
	}

	reply, err := a.tmpl.Render(decision.TemplateKey, map[string]string{
		"creator_handle": decision.IdentifiedCreator,
		"discount_code":  decision.DiscountCodeSent,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("render reply: %w", err)
	}
	decision.ReplyText = reply
	decision.Trace = append(decision.Trace, "decide: "+decision.TemplateKey)

	row := a.buildRow(incoming, decision)
	if err := a.store.Create(ctx, row); err != nil {
		a.logger.Warn("failed to persist interaction",
			logging.String("user_id", incoming.UserID),
			logging.Err(err))
	}

	metrics.ObserveDecision(string(detection.Method), string(decision.ConversationStatus), time.Since(start))
	a.logger.Info("message processed",
		logging.String("platform", string(incoming.Platform)),
		logging.String("user_id", incoming.UserID),
		logging.String("method", string(detection.Method)),
		logging.String("creator", detection.Creator),
		logging.String("status", string(decision.ConversationStatus)))

	return decision, row, nil
}

// decideIssuance applies the one-code-per-user-per-platform rule.
func (a *Agent) decideIssuance(ctx context.Context, incoming *domain.IncomingMessage, creator string, decision *domain.AgentDecision) {
	code, ok := a.campaign.CodeFor(creator)
	if !ok {
		// cascade only returns registry creators; a miss here is misuse
		a.logger.Error("detected creator not in campaign",
			logging.String("creator", creator))
		decision.TemplateKey = templates.KeyAskCreator
		decision.ConversationStatus = domain.StatusPendingCreatorInfo
		decision.IdentifiedCreator = ""
		return
	}

	canIssue, err := a.store.CanIssueCode(ctx, incoming.Platform, incoming.UserID)
	if err != nil {
		// cannot tell whether this user was already served; never issue a
		// code on a failed check
		a.logger.Error("issuance check failed",
			logging.String("user_id", incoming.UserID),
			logging.Err(err))
		decision.TemplateKey = templates.KeyErrorGeneric
		decision.ConversationStatus = domain.StatusError
		return
	}

	if canIssue {
		decision.TemplateKey = templates.KeyIssueCode
		decision.ConversationStatus = domain.StatusCompleted
		decision.DiscountCodeSent = code
	} else {
		decision.TemplateKey = templates.KeyAlreadySent
		decision.ConversationStatus = domain.StatusPendingCreatorInfo
	}
}

func (a *Agent) buildRow(incoming *domain.IncomingMessage, decision *domain.AgentDecision) *domain.InteractionRow {
	return &domain.InteractionRow{
		ID:                    uuid.NewString(),
		UserID:                incoming.UserID,
		Platform:              string(incoming.Platform),
		Timestamp:             time.Now().UTC(),
		RawIncomingMessage:    incoming.Text,
		IdentifiedCreator:     decision.IdentifiedCreator,
		DiscountCodeSent:      decision.DiscountCodeSent,
		ConversationStatus:    string(decision.ConversationStatus),
		FollowerCount:         decision.FollowerCount,
		IsPotentialInfluencer: decision.IsPotentialInfluencer,
	}
}
