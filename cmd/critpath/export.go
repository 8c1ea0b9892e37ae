package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshharrison/critpath/internal/export"
	"github.com/joshharrison/critpath/internal/ui"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <target> [file]",
		Short: "Upload the JSON analysis report to s3://bucket/key or a local path",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			g, err := loadGraph(ctx, args[1:])
			if err != nil {
				return err
			}
			rpt, err := analyse(ctx, g, cfg.MaxPaths)
			if err != nil {
				return err
			}
			data, err := rpt.JSON()
			if err != nil {
				return fmt.Errorf("render report: %w", err)
			}

			up, err := export.ParseTarget(ctx, args[0], export.S3Options{
				Region:          cfg.AWSRegion,
				Endpoint:        cfg.S3Endpoint,
				AccessKeyID:     cfg.S3AccessKey,
				SecretAccessKey: cfg.S3SecretKey,
				SessionToken:    cfg.S3Session,
			})
			if err != nil {
				return err
			}
			if err := up.Upload(ctx, data, "application/json"); err != nil {
				return err
			}
			logger.Info("report exported", "target", up.Target(), "bytes", len(data))
			fmt.Printf("📤 Exported report for %s to %s\n", ui.BoldCyan(g.Name()), ui.Bold(up.Target()))
			return nil
		},
	}
	return cmd
}
