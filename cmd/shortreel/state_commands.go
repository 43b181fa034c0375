package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"shortreel/internal/catalog"
	"shortreel/internal/crashmarker"
	"shortreel/internal/ledger"
	"shortreel/internal/themes"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show catalog progress and crash marker state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			out := cmd.OutOrStdout()

			markerState := "absent"
			state, markerErr := crashmarker.New(cfg.MarkerPath()).Read(cmd.Context())
			var missing *crashmarker.MissingMarkerError
			switch {
			case markerErr == nil:
				markerState = string(state)
			case errors.As(markerErr, &missing):
			default:
				markerState = "unreadable: " + markerErr.Error()
			}

			rows := [][]string{{"Crash marker", markerState}}
			store := catalog.NewStore(cfg.CatalogPath())
			cat, catErr := store.Load(cmd.Context())
			switch {
			case errors.Is(catErr, catalog.ErrCatalogMissing):
				rows = append(rows, []string{"Catalog", "none"})
			case catErr != nil:
				rows = append(rows, []string{"Catalog", "unreadable: " + catErr.Error()})
			default:
				done, pending := cat.Counts()
				rows = append(rows,
					[]string{"Catalog", store.Path()},
					[]string{"Clips", strconv.Itoa(len(cat.Clips()))},
					[]string{"Units", strconv.Itoa(cat.Len())},
					[]string{"Done", strconv.Itoa(done)},
					[]string{"Pending", strconv.Itoa(pending)},
				)
				if index, ok := cat.FirstPending(); ok {
					unit, _ := cat.Unit(index)
					rows = append(rows, []string{"Next unit", fmt.Sprintf("%d: %s", index+1, unit.Label())})
				}
			}
			rows = append(rows, []string{"Resumes on next run", yesNo(state == crashmarker.StateRunning)})

			fmt.Fprintln(out, renderTable("Batch status", []string{"Item", "Value"}, rows, nil))
			return nil
		},
	}
}

func newThemesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "List the saved theme of every clip",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			set, err := themes.NewStore(cfg.ThemesPath()).Load(cmd.Context())
			if errors.Is(err, themes.ErrMissing) {
				fmt.Fprintln(cmd.OutOrStdout(), "No theme set saved yet; it is written when a batch starts.")
				return nil
			}
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(set))
			for _, clip := range set.Clips() {
				label, _ := set.Lookup(clip)
				if label == "" {
					label = "(none)"
				}
				rows = append(rows, []string{clip, label})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable("Themes", []string{"Clip", "Theme"}, rows, nil))
			return nil
		},
	}
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent batch runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			history, err := ledger.Open(cfg.LedgerPath())
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer history.Close()

			runs, err := history.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			title := cases.Title(language.English)
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					run.Mode,
					title.String(run.Status),
					strconv.Itoa(run.ResumeIndex + 1),
					fmt.Sprintf("%d/%d", run.Completed, run.Total),
					run.StartedAt.Local().Format(time.DateTime),
					runDuration(run),
					run.Message,
				})
			}
			headers := []string{"Run", "Mode", "Status", "From", "Units", "Started", "Duration", "Message"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable("Recent runs", headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	return cmd
}

func runDuration(run ledger.Run) string {
	if run.FinishedAt.IsZero() {
		return "-"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Mark the batch stopped so the next run builds a fresh catalog",
		Long: "Force the crash marker to notRunning. The next run lists the input clips again,\n" +
			"rebuilds the catalog and empties the output directories.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset discards resume progress; pass --yes to confirm")
			}
			cfg := ctx.configValue()

			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire batch lock: %w", err)
			}
			if !locked {
				return errors.New("a batch is running; stop it before resetting")
			}
			defer lock.Unlock() //nolint:errcheck

			if err := crashmarker.New(cfg.MarkerPath()).MarkStopped(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Crash marker set to notRunning; the next run starts a fresh batch.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}
