package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shortreel/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var online bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check binaries, directories and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			results := preflight.RunAll(cmd.Context(), cfg)
			if online {
				results = append(results,
					preflight.CheckModelAPI(cmd.Context(), "Script model API", cfg.LLM.APIKey, cfg.LLM.BaseURL),
					preflight.CheckModelAPI(cmd.Context(), "Speech model API", cfg.Speech.APIKey, cfg.Speech.BaseURL),
				)
			}

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := "ok"
				switch {
				case !r.Passed && r.Optional:
					status = "warn"
				case !r.Passed:
					status = "FAIL"
				}
				rows = append(rows, []string{r.Name, status, r.Detail})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable("Doctor", []string{"Check", "Status", "Detail"}, rows, nil))

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d required check(s) failed", len(failed))
			}
			fmt.Fprintln(out, "All required checks passed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&online, "online", false, "Also call the model endpoints to verify the API keys")
	return cmd
}

