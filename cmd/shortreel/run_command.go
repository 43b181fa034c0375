package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"shortreel/internal/catalog"
	"shortreel/internal/config"
	"shortreel/internal/crashmarker"
	"shortreel/internal/fit"
	"shortreel/internal/ledger"
	"shortreel/internal/notifications"
	"shortreel/internal/pipeline"
	"shortreel/internal/preflight"
	"shortreel/internal/presenter"
	"shortreel/internal/services/scriptgen"
	"shortreel/internal/services/speech"
	"shortreel/internal/themes"
	"shortreel/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var testMode bool
	var plain bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Produce videos for every pending unit",
		Long: "Run the batch. A fresh batch lists the input clips, builds the combination catalog and\n" +
			"empties the output directories. After a crash the saved catalog is resumed at the first\n" +
			"pending unit. --test processes exactly one unit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if err := preflight.Err(preflight.RunAll(cmd.Context(), cfg)); err != nil {
				return err
			}

			logger, err := ctx.logger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			history, err := ledger.Open(cfg.LedgerPath())
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer history.Close()

			runner, err := buildRunner(cfg, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			scheduler, err := workflow.New(workflow.Deps{
				Catalog:        catalog.NewStore(cfg.CatalogPath()),
				Marker:         crashmarker.New(cfg.MarkerPath()),
				Themes:         themes.NewStore(cfg.ThemesPath()),
				Runner:         runner,
				Clips:          runner,
				History:        history,
				Observer:       history.Observer(logger),
				Notifier:       notifications.NewService(cfg),
				Presenter:      presenter.Auto(out, logger, plain),
				Logger:         logger,
				LockPath:       cfg.LockPath(),
				MinUnitSpacing: cfg.MinUnitSpacing(),
				MaxAttempts:    cfg.Fit.MaxAttempts,
			})
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := scheduler.Run(runCtx, workflow.Options{TestMode: testMode})
			printSummary(out, summary)
			return err
		},
	}

	cmd.Flags().BoolVar(&testMode, "test", false, "Process only the first pending unit")
	cmd.Flags().BoolVar(&plain, "plain", false, "Disable the interactive progress display")
	return cmd
}

func buildRunner(cfg *config.Config, logger *slog.Logger) (*pipeline.Runner, error) {
	scripts, err := scriptgen.NewClient(scriptgen.Config{
		APIKey:           cfg.LLM.APIKey,
		BaseURL:          cfg.LLM.BaseURL,
		Model:            cfg.LLM.Model,
		Temperature:      cfg.LLM.Temperature,
		FrequencyPenalty: cfg.LLM.FrequencyPenalty,
		TimeoutSeconds:   cfg.LLM.TimeoutSeconds,
		MaxRetries:       cfg.LLM.MaxRetries,
		PromptPath:       cfg.LLM.PromptPath,
		Window:           fit.Window,
	})
	if err != nil {
		return nil, err
	}
	voice, err := speech.NewClient(speech.Config{
		APIKey:         cfg.Speech.APIKey,
		BaseURL:        cfg.Speech.BaseURL,
		Model:          cfg.Speech.Model,
		Language:       cfg.Speech.Language,
		Speed:          cfg.Speech.Speed,
		Format:         cfg.Speech.Format,
		Instructions:   cfg.Speech.Instructions,
		TimeoutSeconds: cfg.Speech.TimeoutSeconds,
		MaxRetries:     cfg.Speech.MaxRetries,
	})
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg, pipeline.Deps{
		Scripts: scripts,
		Speech:  voice,
		Logger:  logger,
	})
}

func printSummary(out io.Writer, summary workflow.Summary) {
	if summary.RunID == "" || summary.Total == 0 {
		return
	}
	fmt.Fprintf(out, "Run %s (%s): %d unit(s) produced of %d", shortID(summary.RunID), summary.Mode, summary.Processed, summary.Total)
	if summary.Resumed {
		fmt.Fprintf(out, ", resumed at unit %d", summary.ResumeIndex+1)
	}
	if summary.Interrupted {
		fmt.Fprint(out, ", interrupted")
	}
	fmt.Fprintln(out)
	for _, output := range summary.Outputs {
		fmt.Fprintf(out, "  %s\n", output)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
