package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/franckalain/barcodenutrition/internal/pipeline"
)

var scanKeyword string

var scanCmd = &cobra.Command{
	Use:   "scan [image...]",
	Short: "Answer a set of local or remote barcode images",
	Long: `Runs the same pipeline as an inbound message: every argument is one
attached image (a file path or an http(s) URL), in order, and --keyword is
the message text.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanKeyword, "keyword", "k", "", "message text, e.g. total or compare")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	resp := a.service.Reply(ctx, pipeline.Request{Images: args, Body: scanKeyword})
	cmd.Println(resp.Text)
	return nil
}
