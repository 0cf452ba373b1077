// Package api exposes the HTTP surface of the discount-agent service.
package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/discount-agent/internal/agent"
	"github.com/jonesrussell/discount-agent/internal/database"
	"github.com/jonesrussell/discount-agent/internal/domain"
	"github.com/jonesrussell/discount-agent/internal/logging"
	"github.com/jonesrussell/discount-agent/internal/webhook"
)

// ReloadFunc rebuilds the agent from the on-disk campaign and templates.
// It returns a complete new snapshot; the handler swaps it in atomically.
type ReloadFunc func() (*agent.Agent, error)

// Handler handles HTTP requests for the discount-agent API.
type Handler struct {
	mu     sync.RWMutex
	agent  *agent.Agent
	repo   *database.InteractionsRepository
	reload ReloadFunc
	logger logging.Logger

	serviceName string
	version     string
	llmReady    bool
}

// NewHandler creates a new API handler.
func NewHandler(a *agent.Agent, repo *database.InteractionsRepository, reload ReloadFunc, logger logging.Logger, serviceName, version string, llmReady bool) *Handler {
	return &Handler{
		agent:       a,
		repo:        repo,
		reload:      reload,
		logger:      logger,
		serviceName: serviceName,
		version:     version,
		llmReady:    llmReady,
	}
}

func (h *Handler) currentAgent() *agent.Agent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.agent
}

// SimulateRequest represents a POST /simulate request.
type SimulateRequest struct {
	Platform  string `json:"platform"`
	UserID    string `json:"user_id"`
	Message   string `json:"message" binding:"required"`
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
}

// SimulateResponse represents a POST /simulate response.
type SimulateResponse struct {
	Reply       string                 `json:"reply"`
	DatabaseRow *domain.InteractionRow `json:"database_row"`
	Decision    *domain.AgentDecision  `json:"decision"`
}

// Simulate handles POST /simulate: runs one message through the full
// pipeline without a real platform webhook.
func (h *Handler) Simulate(c *gin.Context) {
	var req SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Platform == "" {
		req.Platform = string(domain.PlatformInstagram)
	}
	if req.UserID == "" {
		req.UserID = "demo_user"
	}

	platform, err := domain.ParsePlatform(req.Platform)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	incoming := &domain.IncomingMessage{
		Platform:  platform,
		UserID:    req.UserID,
		Text:      req.Message,
		MessageID: req.MessageID,
		ThreadID:  req.ThreadID,
	}

	decision, row, err := h.currentAgent().ProcessMessage(c.Request.Context(), incoming)
	if err != nil {
		h.logger.Error("simulate processing failed", logging.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, SimulateResponse{
		Reply:       decision.ReplyText,
		DatabaseRow: row,
		Decision:    decision,
	})
}

// Webhook handles POST /webhook/:platform with platform-native payloads.
func (h *Handler) Webhook(c *gin.Context) {
	platform, err := domain.ParsePlatform(c.Param("platform"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body: " + err.Error()})
		return
	}

	incoming, err := webhook.Normalize(platform, body)
	if err != nil {
		h.logger.Warn("webhook payload rejected",
			logging.String("platform", string(platform)),
			logging.Err(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	decision, _, err := h.currentAgent().ProcessMessage(c.Request.Context(), incoming)
	if err != nil {
		h.logger.Error("webhook processing failed", logging.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ackID := incoming.MessageID
	if ackID == "" {
		ackID = "demo"
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "received",
		"ack_id": "ack_" + ackID,
		"reply":  decision.ReplyText,
	})
}

// Analytics handles GET /analytics/creators.
func (h *Handler) Analytics(c *gin.Context) {
	summary, err := h.repo.Analytics(c.Request.Context())
	if err != nil {
		h.logger.Error("analytics aggregation failed", logging.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Reload handles POST /admin/reload: builds a fresh agent snapshot from
// the on-disk configuration and swaps it in. The old snapshot keeps
// serving in-flight requests.
func (h *Handler) Reload(c *gin.Context) {
	next, err := h.reload()
	if err != nil {
		h.logger.Error("config reload failed", logging.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	h.agent = next
	h.mu.Unlock()

	h.logger.Info("configuration reloaded")
	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	llmState := "no_key"
	if h.llmReady {
		llmState = "ready"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.serviceName,
		"version": h.version,
		"components": gin.H{
			"agent": "loaded",
			"store": "sqlite",
			"llm":   llmState,
		},
	})
}

// ReadyCheck handles GET /ready.
func (h *Handler) ReadyCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
