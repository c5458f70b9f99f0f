package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/litreview/config"
	"github.com/mohammad-safakhou/litreview/internal/review"
	"github.com/mohammad-safakhou/litreview/internal/telemetry"
	"github.com/mohammad-safakhou/litreview/repository"
	"github.com/mohammad-safakhou/litreview/tools/papersearch"
)

func reviewCMD() *cobra.Command {
	var cfgPath string
	var cmd = &cobra.Command{
		Use:   "review [topic]",
		Short: "Run a literature review for a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := strings.Join(args, " ")
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			logger := log.New(os.Stderr, "[LITREVIEW] ", log.LstdFlags)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			if cfg.General.MaxProcessingTime > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.General.MaxProcessingTime)
				defer cancel()
			}

			metrics := telemetry.NewMetrics()
			tel, tracer, err := telemetry.Setup(ctx, "litreview", cfg.Telemetry, metrics)
			if err != nil {
				return err
			}
			defer func() { _ = tel.Shutdown(context.Background()) }()

			var archive repository.RunArchive
			if cfg.Storage.Redis.Enabled {
				archive, err = repository.NewRedisArchive(ctx, cfg.Storage.Redis)
				if err != nil {
					logger.Printf("run archive unavailable: %v", err)
					archive = nil
				}
			}

			searcher := papersearch.FromConfig(cfg.Search, logger)
			coordinator, err := review.NewCoordinator(cfg, searcher, archive, metrics, tracer, logger)
			if err != nil {
				return err
			}

			report, err := coordinator.RunReview(ctx, topic)
			if err != nil {
				return err
			}
			fmt.Println(renderReport(report))
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	return cmd
}

func renderReport(r review.FinalReport) string {
	var sb strings.Builder
	sb.WriteString("## Literature Review\n\n")
	sb.WriteString(r.Text)
	if len(r.Warnings) > 0 {
		sb.WriteString("\n\n### Warnings\n")
		for _, w := range r.Warnings {
			sb.WriteString("- " + w + "\n")
		}
	}
	if r.Incomplete {
		sb.WriteString("\n_(report incomplete)_\n")
	}
	return sb.String()
}
