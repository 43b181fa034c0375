// Package main hosts the shortreel CLI entrypoint and command graph.
//
// "run" drives the batch scheduler in the foreground; the remaining commands
// inspect or repair the persisted state (catalog, crash marker, theme set and
// run history) without starting a batch. Configuration resolution and logger
// setup live here so the internal packages stay free of CLI concerns.
package main
