// Package workflow drives a batch of work units through the stage runner.
//
// The Scheduler reads the crash marker to decide between resuming the saved
// catalog and building a fresh one, resolves the theme set once per run, and
// then processes units strictly one at a time in catalog order. Each unit is
// trimmed, scripted through the duration-fit loop, and muxed; the catalog is
// saved immediately after every unit so a persisted done flag always means
// the unit's outputs exist.
//
// Any stage failure halts the whole batch through a single path that marks
// the crash marker stopped, reports the cause, and returns a *FatalError.
// Context cancellation is treated like a kill: the marker stays running so
// the next start resumes at the first pending unit.
package workflow
