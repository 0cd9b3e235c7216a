package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/franckalain/barcodenutrition/internal/config"
)

var (
	configPath string
	debug      bool

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "barcodenutrition",
	Short: "Answer barcode photos with nutrition facts",
	Long: `barcodenutrition reads product barcodes from photos, looks up their
nutrition facts and replies with a single item summary, the totals of all
items, or a comparison between them.

Run "serve" to answer Twilio MMS webhooks, or "scan" to try it locally.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger(debug)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.GetConfigPath(), "path to configuration file (json, yaml or toml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initLogger(debug bool) error {
	zcfg := zap.NewProductionConfig()
	if debug {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = l
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
