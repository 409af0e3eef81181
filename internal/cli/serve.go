package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/unfoldindia/unfold/internal/auth"
	"github.com/unfoldindia/unfold/internal/engine"
	"github.com/unfoldindia/unfold/internal/insight"
	"github.com/unfoldindia/unfold/internal/llm"
	"github.com/unfoldindia/unfold/internal/metrics"
	"github.com/unfoldindia/unfold/internal/retention"
	"github.com/unfoldindia/unfold/internal/route"
	"github.com/unfoldindia/unfold/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.New()

	// Chat and insights degrade without a model, so a missing key is not fatal.
	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		logger.WithError(err).Warn("LLM not configured, chat and insights will use fallbacks")
	} else {
		logger.WithFields(logrus.Fields{"provider": cfg.LLM.Provider, "model": cfg.LLM.Model}).Info("llm configured")
	}

	eng := engine.New(db, llmClient, retention.New(logger, m), logger, m)
	eng.SetChatTimeout(cfg.LLM.Timeout)
	if cfg.Retention.SweepEnabled {
		if err := eng.StartRetentionSchedule(cfg.Retention.SweepAt); err != nil {
			return fmt.Errorf("retention schedule: %w", err)
		}
	}
	defer eng.Stop()

	insights := insight.NewService(db, llmClient, logger, m)
	insights.SetTimeout(cfg.LLM.Timeout)

	var verifier *auth.Verifier
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("UNFOLD_JWT_SECRET not set, authenticated routes will reject every request")
	} else if verifier, err = auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	srv := server.New(server.Options{
		DB:       db,
		Engine:   eng,
		Insights: insights,
		Routes:   route.NewPlanner(cfg.Route, logger, m),
		Verifier: verifier,
		Metrics:  m,
		Logger:   logger,
		Version:  VersionString(),
	})
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{"addr": addr, "db": db.Path}).Info("unfold serving")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}
