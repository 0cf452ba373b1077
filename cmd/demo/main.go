// Command demo runs a canned set of messages through the full agent
// pipeline against an in-memory store and prints each decision.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonesrussell/discount-agent/internal/agent"
	"github.com/jonesrussell/discount-agent/internal/config"
	"github.com/jonesrussell/discount-agent/internal/database"
	"github.com/jonesrussell/discount-agent/internal/detect"
	"github.com/jonesrussell/discount-agent/internal/domain"
	"github.com/jonesrussell/discount-agent/internal/llm"
	"github.com/jonesrussell/discount-agent/internal/logging"
	"github.com/jonesrussell/discount-agent/internal/templates"
)

type scenario struct {
	message  string
	expected string
}

var scenarios = []scenario{
	{"mkbhd sent me", "exact match"},
	{"Hi, Casey sent me", "exact match via alias"},
	{"lily_singh sent me here", "exact match"},
	{"peter_mckinnon discount", "exact match"},
	{"Marques Bronlee discount", "fuzzy match on misspelling"},
	{"marqes brwnli promo", "fuzzy match on heavy typos"},
	{"caseyy discount?", "alias substring match"},
	{"discount", "ask user, too ambiguous"},
	{"promo code", "ask user, no creator"},
	{"steve creator sent me", "ask user, unknown creator"},
	{"what's up", "out of scope greeting"},
	{"hello", "out of scope greeting"},
	{"nice video", "out of scope, no discount intent"},
	{"mkbhd sent me", "repeat user, no re-issue"},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "demo failed:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	logger := logging.NewNop()

	campaignPath := os.Getenv("CAMPAIGN_CONFIG_PATH")
	if campaignPath == "" {
		campaignPath = "config/campaign.yaml"
	}
	templatesPath := os.Getenv("TEMPLATES_PATH")
	if templatesPath == "" {
		templatesPath = "config/templates.yaml"
	}

	campaign, err := config.LoadCampaign(campaignPath)
	if err != nil {
		return err
	}
	tmpl, err := templates.Load(templatesPath)
	if err != nil {
		return err
	}

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		return err
	}
	defer db.Close()
	repo := database.NewInteractionsRepository(db)

	llmCfg := llm.Config{AllowList: campaign.Handles()}
	var caller llm.ModelCaller
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		llmCfg.SetDefaults()
		gemini, err := llm.NewGeminiCaller(ctx, key, llmCfg.ModelVersion, llmCfg.AllowList)
		if err != nil {
			return err
		}
		caller = gemini
		fmt.Println("llm fallback: enabled (gemini)")
	} else {
		fmt.Println("llm fallback: disabled (GOOGLE_API_KEY not set)")
	}

	classifier, err := llm.New(llmCfg, caller, logger)
	if err != nil {
		return err
	}

	cascade := detect.NewCascade(campaign, classifier, logger)
	ag := agent.New(campaign, cascade, repo, tmpl, logger)

	fmt.Println()
	for i, sc := range scenarios {
		userID := fmt.Sprintf("demo_user_%d", i+1)
		if sc.expected == "repeat user, no re-issue" {
			userID = "demo_user_1"
		}
		incoming := &domain.IncomingMessage{
			Platform: domain.PlatformInstagram,
			UserID:   userID,
			Text:     sc.message,
		}

		decision, row, err := ag.ProcessMessage(ctx, incoming)
		if err != nil {
			return fmt.Errorf("scenario %d: %w", i+1, err)
		}

		fmt.Printf("%2d. %-30s (%s)\n", i+1, fmt.Sprintf("%q", sc.message), sc.expected)
		fmt.Printf("    method=%s creator=%q confidence=%.2f status=%s\n",
			decision.DetectionMethod, decision.IdentifiedCreator,
			decision.DetectionConfidence, row.ConversationStatus)
		if decision.DiscountCodeSent != "" {
			fmt.Printf("    code=%s followers=%d influencer=%t\n",
				decision.DiscountCodeSent, decision.FollowerCount, decision.IsPotentialInfluencer)
		}
		fmt.Printf("    reply: %s\n\n", decision.ReplyText)
	}

	summary, err := repo.Analytics(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("analytics: %d requests, %d completed, %d creators\n",
		summary.TotalRequests, summary.TotalCompleted, len(summary.Creators))
	return nil
}
