// Package config loads, normalizes, and validates shortreel configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENAI_API_KEY. The Config type centralizes every knob the batch and CLI
// need, and derives the state file locations (catalog, crash marker, theme
// set, ledger, lock) from paths.state_dir so every command agrees on them.
package config
