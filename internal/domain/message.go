// Package domain defines the core types shared across the discount-agent
// service: incoming messages, detection decisions, and interaction rows.
package domain

import (
	"fmt"
	"time"
)

// Platform identifies the social platform a message arrived from.
type Platform string

// Supported platforms.
const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformWhatsApp  Platform = "whatsapp"
)

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformInstagram, PlatformTikTok, PlatformWhatsApp:
		return true
	}
	return false
}

// ParsePlatform converts a string into a Platform.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown platform %q", s)
	}
	return p, nil
}

// DetectionMethod identifies which cascade stage produced a decision.
type DetectionMethod string

// Detection methods, in cascade priority order.
const (
	MethodExact DetectionMethod = "exact"
	MethodFuzzy DetectionMethod = "fuzzy"
	MethodLLM   DetectionMethod = "llm"
	MethodNone  DetectionMethod = "none"
)

// ConversationStatus is the terminal state of a single-message interaction.
type ConversationStatus string

// Conversation statuses.
const (
	StatusPendingCreatorInfo ConversationStatus = "pending_creator_info"
	StatusCompleted          ConversationStatus = "completed"
	StatusError              ConversationStatus = "error"
	StatusOutOfScope         ConversationStatus = "out_of_scope"
)

// IncomingMessage is a platform message normalized to the internal shape.
type IncomingMessage struct {
	Platform  Platform `json:"platform"`
	UserID    string   `json:"user_id"`
	Text      string   `json:"text"`
	ThreadID  string   `json:"thread_id,omitempty"`
	MessageID string   `json:"message_id,omitempty"`
}

// Validate checks the message is processable.
func (m *IncomingMessage) Validate() error {
	if !m.Platform.Valid() {
		return fmt.Errorf("unknown platform %q", m.Platform)
	}
	if m.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	return nil
}

// Decision is the sole output of the detection cascade. Creator is empty
// iff Method is MethodNone.
type Decision struct {
	Creator    string          `json:"creator,omitempty"`
	Method     DetectionMethod `json:"method"`
	Confidence float64         `json:"confidence"`
	InScope    bool            `json:"in_scope"`
}

// AgentDecision is the full outcome of processing one message: the cascade
// decision plus the reply and bookkeeping the caller needs.
type AgentDecision struct {
	ReplyText             string             `json:"reply_text"`
	TemplateKey           string             `json:"template_key"`
	IdentifiedCreator     string             `json:"identified_creator,omitempty"`
	DetectionMethod       DetectionMethod    `json:"detection_method"`
	DetectionConfidence   float64            `json:"detection_confidence"`
	DiscountCodeSent      string             `json:"discount_code_sent,omitempty"`
	ConversationStatus    ConversationStatus `json:"conversation_status"`
	FollowerCount         int                `json:"follower_count,omitempty"`
	IsPotentialInfluencer bool               `json:"is_potential_influencer,omitempty"`
	Trace                 []string           `json:"trace,omitempty"`
}

// InteractionRow is a single audit row persisted per processed message.
type InteractionRow struct {
	ID                    string    `db:"id"                      json:"id"`
	UserID                string    `db:"user_id"                 json:"user_id"`
	Platform              string    `db:"platform"                json:"platform"`
	Timestamp             time.Time `db:"ts"                      json:"ts"`
	RawIncomingMessage    string    `db:"raw_incoming_message"    json:"raw_incoming_message"`
	IdentifiedCreator     string    `db:"identified_creator"      json:"identified_creator,omitempty"`
	DiscountCodeSent      string    `db:"discount_code_sent"      json:"discount_code_sent,omitempty"`
	ConversationStatus    string    `db:"conversation_status"     json:"conversation_status"`
	FollowerCount         int       `db:"follower_count"          json:"follower_count,omitempty"`
	IsPotentialInfluencer bool      `db:"is_potential_influencer" json:"is_potential_influencer,omitempty"`
}

// PlatformStats holds per-platform request counters for one creator.
type PlatformStats struct {
	Requests  int `json:"requests"`
	Completed int `json:"completed"`
}

// CreatorStats holds aggregate counters for one creator.
type CreatorStats struct {
	CreatorHandle     string                   `json:"creator_handle"`
	TotalRequests     int                      `json:"total_requests"`
	TotalCompleted    int                      `json:"total_completed"`
	PlatformBreakdown map[string]PlatformStats `json:"platform_breakdown"`
}

// AnalyticsSummary is the campaign-wide analytics rollup.
type AnalyticsSummary struct {
	TotalCreators  int                     `json:"total_creators"`
	TotalRequests  int                     `json:"total_requests"`
	TotalCompleted int                     `json:"total_completed"`
	Creators       map[string]CreatorStats `json:"creators"`
}
