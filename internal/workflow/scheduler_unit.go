package workflow

import (
	"context"
	"errors"

	"shortreel/internal/catalog"
	"shortreel/internal/fit"
	"shortreel/internal/logging"
	"shortreel/internal/services"
	"shortreel/internal/stage"
	"shortreel/internal/themes"
)

// processUnit runs every stage for one unit and returns the final output
// path. All errors except cancellation are *services.StageError.
func (s *Scheduler) processUnit(ctx context.Context, index int, unit catalog.WorkUnit, set themes.Set) (string, error) {
	ctx = services.WithUnitIndex(ctx, index)
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("unit started", logging.String("unit", unit.Label()))

	if cleaner, ok := s.runner.(stage.Cleaner); ok {
		if err := cleaner.Reset(ctx); err != nil {
			return "", services.NewStageError(stage.NameCleanup, index, err)
		}
	}

	trimCtx := services.WithStage(ctx, stage.NameTrim)
	trimmed := make([]stage.TrimmedClip, 0, len(unit.Clips))
	for _, clip := range unit.Clips {
		s.presenter.Start("trim " + clip)
		tc, err := s.runner.Trim(trimCtx, clip)
		s.presenter.Stop()
		if err != nil {
			return "", services.NewStageError(stage.NameTrim, index, err)
		}
		trimmed = append(trimmed, tc)
	}

	labels, missing := set.Triple(unit.Clips)
	if len(missing) > 0 {
		logging.WarnWithContext(logger, "clips missing from theme set", "theme_missing",
			logging.Strings("clips", missing),
			logging.String(logging.FieldErrorHint, "delete themes.yaml to re-extract on the next resume"),
			logging.String(logging.FieldImpact, "script generated with empty themes for these clips"),
		)
	}

	s.presenter.Start("script and speech")
	take, err := s.fit.Run(ctx, index, unit, labels)
	s.presenter.Stop()
	if err != nil {
		var exhausted *fit.ExhaustedError
		if errors.As(err, &exhausted) {
			return "", services.NewStageError(stage.NameFit, index, err)
		}
		return "", err
	}

	s.presenter.Start("mux")
	output, err := s.runner.Mux(services.WithStage(ctx, stage.NameMux), stage.MuxRequest{
		Index:  index,
		Unit:   unit,
		Clips:  trimmed,
		Script: take.Script,
		Speech: take.Speech,
		Delays: take.Verdict.Delays,
	})
	s.presenter.Stop()
	if err != nil {
		return "", services.NewStageError(stage.NameMux, index, err)
	}

	logger.Info("unit completed",
		logging.String("output", output),
		logging.Int("attempts", take.Attempts),
	)
	return output, nil
}

// resolveThemes returns the run's theme set. A fresh batch extracts every
// clip; a resumed batch reuses the saved file and extracts only clips it
// lacks.
func (s *Scheduler) resolveThemes(ctx context.Context, cat *catalog.Catalog, fresh bool) (themes.Set, error) {
	logger := logging.WithContext(ctx, s.logger)
	set := themes.Set{}

	if !fresh {
		loaded, err := s.themes.Load(ctx)
		switch {
		case err == nil:
			set = loaded
		case errors.Is(err, themes.ErrMissing):
			logger.Info("no saved theme set, extracting", logging.String("path", s.themes.Path()))
		default:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logging.WarnWithContext(logger, "saved theme set unreadable, extracting again", "theme_set_unreadable",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the file is rewritten after extraction"),
				logging.String(logging.FieldImpact, "themes are probed again for every clip"),
			)
		}
	}

	themeCtx := services.WithStage(ctx, stage.NameTheme)
	changed := fresh
	for _, clip := range cat.Clips() {
		if _, ok := set.Lookup(clip); ok {
			continue
		}
		label, err := s.runner.ExtractTheme(themeCtx, clip)
		if err != nil {
			return nil, services.NewStageError(stage.NameTheme, -1, err)
		}
		if label == "" {
			logging.WarnWithContext(logging.WithContext(themeCtx, s.logger), "no theme found for clip", "theme_absent",
				logging.String("clip", clip),
				logging.String(logging.FieldErrorHint, "set a comment tag on the clip to give it a theme"),
				logging.String(logging.FieldImpact, "script prompt uses an empty theme for this clip"),
			)
		}
		set[clip] = label
		changed = true
	}

	if changed {
		if err := s.themes.Save(ctx, set); err != nil {
			return nil, services.NewStageError(stage.NameTheme, -1, err)
		}
	}
	logger.Info("theme set ready", logging.Int("clips", len(set)))
	return set, nil
}
