// Command httpd runs the discount-agent HTTP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonesrussell/discount-agent/internal/agent"
	"github.com/jonesrussell/discount-agent/internal/api"
	"github.com/jonesrussell/discount-agent/internal/config"
	"github.com/jonesrussell/discount-agent/internal/database"
	"github.com/jonesrussell/discount-agent/internal/detect"
	"github.com/jonesrussell/discount-agent/internal/llm"
	"github.com/jonesrussell/discount-agent/internal/logging"
	"github.com/jonesrussell/discount-agent/internal/templates"
)

const shutdownGrace = 30 * time.Second

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		os.Stderr.WriteString("init logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("service failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	ctx := context.Background()

	db, err := database.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	repo := database.NewInteractionsRepository(db)

	buildAgent := func() (*agent.Agent, bool, error) {
		campaign, err := config.LoadCampaign(cfg.CampaignPath)
		if err != nil {
			return nil, false, err
		}
		tmpl, err := templates.Load(cfg.TemplatesPath)
		if err != nil {
			return nil, false, err
		}

		llmCfg := cfg.LLM
		llmCfg.AllowList = campaign.Handles()

		var caller llm.ModelCaller
		llmReady := false
		if cfg.GeminiAPIKey != "" {
			gemini, err := llm.NewGeminiCaller(ctx, cfg.GeminiAPIKey, llmCfg.ModelVersion, llmCfg.AllowList)
			if err != nil {
				return nil, false, err
			}
			caller = gemini
			llmReady = true
		}

		classifier, err := llm.New(llmCfg, caller, logger)
		if err != nil {
			return nil, false, err
		}

		cascade := detect.NewCascade(campaign, classifier, logger)
		return agent.New(campaign, cascade, repo, tmpl, logger), llmReady, nil
	}

	ag, llmReady, err := buildAgent()
	if err != nil {
		return err
	}
	if !llmReady {
		logger.Warn("GOOGLE_API_KEY not set, llm fallback disabled")
	}
	logger.Info("agent initialized",
		logging.String("campaign", cfg.CampaignPath),
		logging.Bool("llm_ready", llmReady))

	reload := func() (*agent.Agent, error) {
		next, _, err := buildAgent()
		return next, err
	}

	handler := api.NewHandler(ag, repo, reload, logger,
		cfg.Service.Name, cfg.Service.Version, llmReady)
	server := api.NewServer(handler, cfg, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		logger.Info("shutdown signal received", logging.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
