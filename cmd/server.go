package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ecomarket/ecobot/internal/bots"
	"github.com/ecomarket/ecobot/internal/progress"
	"github.com/ecomarket/ecobot/internal/server"
)

var serverAddr string

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP, WebSocket and bot webhook server",
	Long: `Starts the assistant server: the chat API and WebSocket for the web
widget, the stateless eligibility endpoint, the audit trail, Prometheus
metrics, and the Slack and Teams webhooks enabled in the config.`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().StringVar(&serverAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serverAddr != "" {
		cfg.Server.Addr = serverAddr
	}
	log := newLogger(cfg)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cfg, &progress.LogReporter{Logger: log}, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	opts := []server.Option{server.WithMetrics(rt.metrics), server.WithLogger(log)}
	if rt.auditStore != nil {
		opts = append(opts, server.WithAudit(rt.auditStore))
	}
	if slack, teams := createBots(rt, log); slack != nil || teams != nil {
		opts = append(opts, server.WithBots(slack, teams))
	}

	srv := server.New(server.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, rt.conversations, rt.evaluator, opts...)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// createBots builds the webhook handlers enabled in the config.
func createBots(rt *runtime, log *zap.Logger) (*bots.SlackHandler, *bots.TeamsHandler) {
	b := rt.cfg.Bots
	if !b.Slack.Enabled && !b.Teams.Enabled {
		return nil, nil
	}
	gateway := bots.NewGateway(bots.NewProcessor(rt.conversations, log), log)

	var (
		slack *bots.SlackHandler
		teams *bots.TeamsHandler
	)
	if b.Slack.Enabled {
		secret := b.Slack.SigningSecret
		if secret == "" {
			secret = os.Getenv("SLACK_SIGNING_SECRET")
		}
		if secret == "" {
			log.Warn("slack enabled without a signing secret; requests are not verified")
		}
		slack = bots.NewSlackHandler(gateway, secret, log)
	}
	if b.Teams.Enabled {
		teams = bots.NewTeamsHandler(gateway, log)
	}
	return slack, teams
}
