package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/franckalain/barcodenutrition/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer Twilio MMS webhooks",
	Long: `Starts the HTTP server. Twilio posts inbound messages to the webhook
path and receives the reply as TwiML. The server also exposes /ws for
interactive scans and /health.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	srvCfg := server.Config{
		WebhookPath: cfg.Server.WebhookPath,
		PublicURL:   cfg.Server.PublicURL,
	}
	if cfg.Server.ValidateSignature {
		srvCfg.AuthToken = cfg.Media.AuthToken
	}

	return server.New(a.service, srvCfg, logger).Start(ctx, cfg.Server.Port)
}
