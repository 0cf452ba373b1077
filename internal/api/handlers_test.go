package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/discount-agent/internal/agent"
	"github.com/jonesrussell/discount-agent/internal/database"
	"github.com/jonesrussell/discount-agent/internal/detect"
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

func testCampaign() *domain.Campaign {
	return &domain.Campaign{
		Creators: []domain.Creator{
			{Handle: "casey_neistat", Code: "CASEY15OFF", Aliases: []string{"casey", "casey neistat"}},
			{Handle: "mkbhd", Code: "MARQUES20", Aliases: []string{"marques brownlee"}},
		},
		Thresholds: domain.Thresholds{FuzzyAccept: 0.8, FuzzyReject: 0.6},
		Flags:      domain.Flags{EnableFuzzyMatching: true, EnableLLMFallback: false},
	}
}

func buildAgent(t *testing.T, campaign *domain.Campaign, repo *database.InteractionsRepository) *agent.Agent {
	t.Helper()
	tmpl, err := templates.Parse([]byte(testTemplatesYAML))
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	logger := logging.NewNop()
	cascade := detect.NewCascade(campaign, nil, logger)
	return agent.New(campaign, cascade, repo, tmpl, logger)
}

// newTestRouter wires the full stack over an in-memory store.
func newTestRouter(t *testing.T, reload ReloadFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repo := database.NewInteractionsRepository(db)

	ag := buildAgent(t, testCampaign(), repo)
	if reload == nil {
		reload = func() (*agent.Agent, error) { return ag, nil }
	}
	handler := NewHandler(ag, repo, reload, logging.NewNop(), "discount-agent", "test", false)

	router := gin.New()
	SetupRoutes(router, handler, NewRateLimiter(1000, 1000))
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSimulate_IssuesCode(t *testing.T) {
	router := newTestRouter(t, nil)

	w := postJSON(t, router, "/simulate", gin.H{
		"platform": "instagram",
		"user_id":  "u1",
		"message":  "mkbhd sent me",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp SimulateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Decision.IdentifiedCreator != "mkbhd" {
		t.Errorf("creator = %q", resp.Decision.IdentifiedCreator)
	}
	if resp.Decision.DiscountCodeSent != "MARQUES20" {
		t.Errorf("code = %q", resp.Decision.DiscountCodeSent)
	}
	if resp.DatabaseRow == nil || resp.DatabaseRow.ConversationStatus != "completed" {
		t.Errorf("row = %+v", resp.DatabaseRow)
	}
}

func TestSimulate_SecondRequestBlocked(t *testing.T) {
	router := newTestRouter(t, nil)

	payload := gin.H{"platform": "instagram", "user_id": "u1", "message": "mkbhd sent me"}
	if w := postJSON(t, router, "/simulate", payload); w.Code != http.StatusOK {
		t.Fatalf("first: %d", w.Code)
	}

	w := postJSON(t, router, "/simulate", payload)
	var resp SimulateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Decision.DiscountCodeSent != "" {
		t.Errorf("second request issued code %q", resp.Decision.DiscountCodeSent)
	}
	if resp.Decision.TemplateKey != templates.KeyAlreadySent {
		t.Errorf("template = %q", resp.Decision.TemplateKey)
	}
}

func TestSimulate_Validation(t *testing.T) {
	router := newTestRouter(t, nil)

	if w := postJSON(t, router, "/simulate", gin.H{"platform": "instagram"}); w.Code != http.StatusBadRequest {
		t.Errorf("missing message: status = %d", w.Code)
	}
	if w := postJSON(t, router, "/simulate", gin.H{"platform": "myspace", "message": "hi"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad platform: status = %d", w.Code)
	}
}

func TestWebhook_InstagramPayload(t *testing.T) {
	router := newTestRouter(t, nil)

	w := postJSON(t, router, "/webhook/instagram", gin.H{
		"entry": []gin.H{{
			"messaging": []gin.H{{
				"sender":  gin.H{"id": "ig_1"},
				"message": gin.H{"mid": "m1", "text": "casey sent me"},
			}},
		}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "received" {
		t.Errorf("status field = %v", resp["status"])
	}
	if resp["ack_id"] != "ack_m1" {
		t.Errorf("ack_id = %v", resp["ack_id"])
	}
}

func TestWebhook_UnknownPlatform(t *testing.T) {
	router := newTestRouter(t, nil)
	if w := postJSON(t, router, "/webhook/myspace", gin.H{}); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAnalytics(t *testing.T) {
	router := newTestRouter(t, nil)

	postJSON(t, router, "/simulate", gin.H{"platform": "instagram", "user_id": "u1", "message": "mkbhd sent me"})
	postJSON(t, router, "/simulate", gin.H{"platform": "tiktok", "user_id": "u2", "message": "casey sent me"})

	req := httptest.NewRequest(http.MethodGet, "/analytics/creators", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var summary domain.AnalyticsSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.TotalRequests != 2 || summary.TotalCompleted != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Creators["mkbhd"].TotalCompleted != 1 {
		t.Errorf("mkbhd stats = %+v", summary.Creators["mkbhd"])
	}
}

func TestAdminReload_SwapsAgent(t *testing.T) {
	var reloaded *agent.Agent
	reload := func() (*agent.Agent, error) {
		db, err := database.Open(context.Background(), ":memory:")
		if err != nil {
			return nil, err
		}
		repo := database.NewInteractionsRepository(db)

		// reloaded campaign knows a new alias for casey
		campaign := testCampaign()
		campaign.Creators[0].Aliases = append(campaign.Creators[0].Aliases, "cineboy")
		reloaded = buildAgentForReload(campaign, repo)
		return reloaded, nil
	}

	router := newTestRouter(t, reload)

	// unknown alias before reload
	w := postJSON(t, router, "/simulate", gin.H{"platform": "instagram", "user_id": "u1", "message": "cineboy sent me"})
	var before SimulateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &before); err != nil {
		t.Fatal(err)
	}
	if before.Decision.IdentifiedCreator == "casey_neistat" {
		t.Fatal("alias resolved before reload")
	}

	if w := postJSON(t, router, "/admin/reload", gin.H{}); w.Code != http.StatusOK {
		t.Fatalf("reload status = %d", w.Code)
	}

	w = postJSON(t, router, "/simulate", gin.H{"platform": "instagram", "user_id": "u2", "message": "cineboy sent me"})
	var after SimulateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &after); err != nil {
		t.Fatal(err)
	}
	if after.Decision.IdentifiedCreator != "casey_neistat" {
		t.Errorf("alias not resolved after reload: %+v", after.Decision)
	}
}

func buildAgentForReload(campaign *domain.Campaign, repo *database.InteractionsRepository) *agent.Agent {
	tmpl, _ := templates.Parse([]byte(testTemplatesYAML))
	logger := logging.NewNop()
	cascade := detect.NewCascade(campaign, nil, logger)
	return agent.New(campaign, cascade, repo, tmpl, logger)
}

func TestAdminReload_FailureKeepsOldAgent(t *testing.T) {
	reload := func() (*agent.Agent, error) {
		return nil, context.DeadlineExceeded
	}
	router := newTestRouter(t, reload)

	if w := postJSON(t, router, "/admin/reload", gin.H{}); w.Code != http.StatusInternalServerError {
		t.Fatalf("reload status = %d, want 500", w.Code)
	}

	// old agent still serves
	w := postJSON(t, router, "/simulate", gin.H{"platform": "instagram", "user_id": "u1", "message": "mkbhd sent me"})
	if w.Code != http.StatusOK {
		t.Errorf("simulate after failed reload: %d", w.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	router := newTestRouter(t, nil)

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, w.Code)
		}
	}
}

func TestRateLimiter_Blocks(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	router := gin.New()
	router.GET("/ping", limiter.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request = %d", first.Code)
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request = %d, want 429", second.Code)
	}
}
