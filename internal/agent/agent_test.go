package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jonesrussell/discount-agent/internal/domain"
	"github.com/jonesrussell/discount-agent/internal/logging"
	"github.com/jonesrussell/discount-agent/internal/templates"
)

const testTemplatesYAML = `
replies:
  out_of_scope: "I only handle discount codes."
  ask_creator: "Which creator sent you?"
  issue_code: "Thanks for coming from {creator_handle}! Code: {discount_code}"
  already_sent_no_resend: "You already received a code."
  error_generic: "Something went wrong, please try again later."
`

// fixedCascade returns a preset decision for every message.
type fixedCascade struct {
	decision domain.Decision
}

func (f *fixedCascade) Classify(ctx context.Context, rawMessage string) domain.Decision {
	return f.decision
}

// memStore keeps rows in memory and tracks per-(platform,user) issuance.
type memStore struct {
	rows      []*domain.InteractionRow
	createErr error
	issueErr  error
}

func (s *memStore) Create(ctx context.Context, row *domain.InteractionRow) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.rows = append(s.rows, row)
	return nil
}

func (s *memStore) CanIssueCode(ctx context.Context, platform domain.Platform, userID string) (bool, error) {
	if s.issueErr != nil {
		return false, s.issueErr
	}
	for _, row := range s.rows {
		if row.Platform == string(platform) && row.UserID == userID &&
			row.ConversationStatus == string(domain.StatusCompleted) &&
			row.DiscountCodeSent != "" {
			return false, nil
		}
	}
	return true, nil
}

func testCampaign() *domain.Campaign {
	return &domain.Campaign{
		Creators: []domain.Creator{
			{Handle: "casey_neistat", Code: "CASEY15OFF", Aliases: []string{"casey"}},
			{Handle: "mkbhd", Code: "MARQUES20", Aliases: []string{"marques brownlee"}},
		},
		Thresholds: domain.Thresholds{FuzzyAccept: 0.8, FuzzyReject: 0.6},
		Flags:      domain.Flags{EnableFuzzyMatching: true, EnableLLMFallback: true},
	}
}

func newTestAgent(t *testing.T, decision domain.Decision, store Store) *Agent {
	t.Helper()
	tmpl, err := templates.Parse([]byte(testTemplatesYAML))
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	return New(testCampaign(), &fixedCascade{decision: decision}, store, tmpl, logging.NewNop())
}

func incoming(userID, text string) *domain.IncomingMessage {
	return &domain.IncomingMessage{
		Platform: domain.PlatformInstagram,
		UserID:   userID,
		Text:     text,
	}
}

func TestAgent_IssueCode(t *testing.T) {
	store := &memStore{}
	ag := newTestAgent(t, domain.Decision{
		Creator:    "mkbhd",
		Method:     domain.MethodExact,
		Confidence: 1.0,
		InScope:    true,
	}, store)

	decision, row, err := ag.ProcessMessage(context.Background(), incoming("u1", "mkbhd sent me"))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if decision.TemplateKey != templates.KeyIssueCode {
		t.Errorf("template = %q, want issue_code", decision.TemplateKey)
	}
	if decision.DiscountCodeSent != "MARQUES20" {
		t.Errorf("code = %q, want MARQUES20", decision.DiscountCodeSent)
	}
	if decision.ConversationStatus != domain.StatusCompleted {
		t.Errorf("status = %s, want completed", decision.ConversationStatus)
	}
	if !strings.Contains(decision.ReplyText, "MARQUES20") || !strings.Contains(decision.ReplyText, "mkbhd") {
		t.Errorf("reply missing substitutions: %q", decision.ReplyText)
	}
	if decision.FollowerCount == 0 {
		t.Error("expected enrichment to set follower count")
	}
	if row.DiscountCodeSent != "MARQUES20" || row.ConversationStatus != "completed" {
		t.Errorf("row = %+v", row)
	}
	if len(store.rows) != 1 {
		t.Errorf("stored rows = %d, want 1", len(store.rows))
	}
}

func TestAgent_NoReissueSameUser(t *testing.T) {
	store := &memStore{}
	ag := newTestAgent(t, domain.Decision{
		Creator:    "mkbhd",
		Method:     domain.MethodExact,
		Confidence: 1.0,
		InScope:    true,
	}, store)

	first, _, err := ag.ProcessMessage(context.Background(), incoming("u1", "mkbhd sent me"))
	if err != nil {
		t.Fatal(err)
	}
	if first.ConversationStatus != domain.StatusCompleted {
		t.Fatalf("first status = %s", first.ConversationStatus)
	}

	second, row, err := ag.ProcessMessage(context.Background(), incoming("u1", "mkbhd sent me again"))
	if err != nil {
		t.Fatal(err)
	}
	if second.TemplateKey != templates.KeyAlreadySent {
		t.Errorf("second template = %q, want already_sent_no_resend", second.TemplateKey)
	}
	if second.DiscountCodeSent != "" {
		t.Errorf("second code = %q, want empty", second.DiscountCodeSent)
	}
	if row.DiscountCodeSent != "" {
		t.Errorf("second row carries code %q", row.DiscountCodeSent)
	}
}

func TestAgent_OutOfScope(t *testing.T) {
	store := &memStore{}
	ag := newTestAgent(t, domain.Decision{Method: domain.MethodNone, InScope: false}, store)

	decision, row, err := ag.ProcessMessage(context.Background(), incoming("u1", "hello"))
	if err != nil {
		t.Fatal(err)
	}
	if decision.TemplateKey != templates.KeyOutOfScope {
		t.Errorf("template = %q, want out_of_scope", decision.TemplateKey)
	}
	if decision.ConversationStatus != domain.StatusOutOfScope {
		t.Errorf("status = %s", decision.ConversationStatus)
	}
	if row.IdentifiedCreator != "" || row.DiscountCodeSent != "" {
		t.Errorf("out-of-scope row should be empty, got %+v", row)
	}
	// out-of-scope interactions are still audited
	if len(store.rows) != 1 {
		t.Errorf("stored rows = %d, want 1", len(store.rows))
	}
}

func TestAgent_AskCreatorWhenUnresolved(t *testing.T) {
	store := &memStore{}
	ag := newTestAgent(t, domain.Decision{Method: domain.MethodNone, InScope: true}, store)

	decision, _, err := ag.ProcessMessage(context.Background(), incoming("u1", "discount please"))
	if err != nil {
		t.Fatal(err)
	}
	if decision.TemplateKey != templates.KeyAskCreator {
		t.Errorf("template = %q, want ask_creator", decision.TemplateKey)
	}
	if decision.ConversationStatus != domain.StatusPendingCreatorInfo {
		t.Errorf("status = %s", decision.ConversationStatus)
	}
}

func TestAgent_StoreFailureStillReplies(t *testing.T) {
	store := &memStore{createErr: errors.New("disk full")}
	ag := newTestAgent(t, domain.Decision{
		Creator:    "casey_neistat",
		Method:     domain.MethodExact,
		Confidence: 1.0,
		InScope:    true,
	}, store)

	decision, _, err := ag.ProcessMessage(context.Background(), incoming("u1", "casey sent me"))
	if err != nil {
		t.Fatalf("store failure must not fail the interaction: %v", err)
	}
	if decision.ReplyText == "" {
		t.Error("expected a reply despite store failure")
	}
}

func TestAgent_IssuanceCheckFailureRefusesCode(t *testing.T) {
	store := &memStore{issueErr: errors.New("db locked")}
	ag := newTestAgent(t, domain.Decision{
		Creator:    "mkbhd",
		Method:     domain.MethodExact,
		Confidence: 1.0,
		InScope:    true,
	}, store)

	decision, row, err := ag.ProcessMessage(context.Background(), incoming("u1", "mkbhd sent me"))
	if err != nil {
		t.Fatal(err)
	}
	if decision.DiscountCodeSent != "" {
		t.Errorf("code issued despite failed issuance check: %q", decision.DiscountCodeSent)
	}
	if decision.TemplateKey != templates.KeyErrorGeneric {
		t.Errorf("template = %q, want error_generic", decision.TemplateKey)
	}
	if decision.ConversationStatus != domain.StatusError {
		t.Errorf("status = %s, want error", decision.ConversationStatus)
	}
	if decision.ReplyText == "" {
		t.Error("expected a reply despite the failed check")
	}
	if row.ConversationStatus != string(domain.StatusError) {
		t.Errorf("row status = %q, want error", row.ConversationStatus)
	}
}

func TestAgent_InvalidMessageRejected(t *testing.T) {
	ag := newTestAgent(t, domain.Decision{}, &memStore{})

	if _, _, err := ag.ProcessMessage(context.Background(), &domain.IncomingMessage{
		Platform: "myspace", UserID: "u1",
	}); err == nil {
		t.Error("expected error for invalid platform")
	}
	if _, _, err := ag.ProcessMessage(context.Background(), &domain.IncomingMessage{
		Platform: domain.PlatformInstagram,
	}); err == nil {
		t.Error("expected error for missing user_id")
	}
}
