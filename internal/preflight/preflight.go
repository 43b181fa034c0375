package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shortreel/internal/config"
	"shortreel/internal/deps"
	"shortreel/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes the offline checks for the given config: binaries,
// directories and credentials. It never touches the network.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		detail := status.Detail
		if status.Available {
			detail = status.Command
		}
		results = append(results, Result{
			Name:     status.Name,
			Passed:   status.Available,
			Optional: status.Optional,
			Detail:   detail,
		})
	}

	results = append(results, CheckReadableDirectory("Input directory", cfg.Paths.InputDir))
	results = append(results, CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir))
	results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	if strings.TrimSpace(cfg.Paths.MusicDir) != "" {
		music := CheckReadableDirectory("Music directory", cfg.Paths.MusicDir)
		music.Optional = true
		results = append(results, music)
	}

	results = append(results, CheckAPIKey("Script model key", cfg.LLM.APIKey))
	results = append(results, CheckAPIKey("Speech model key", cfg.Speech.APIKey))
	return results
}

// CheckAPIKey passes when key is non-blank.
func CheckAPIKey(name, key string) Result {
	if strings.TrimSpace(key) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err summarizes failed required checks as a configuration error, or nil.
func Err(results []Result) error {
	failed := Failed(results)
	if len(failed) == 0 {
		return nil
	}
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "run checks",
		strings.Join(parts, "; "), errors.New("run \"shortreel doctor\" for details"))
}
