// Package ledger keeps a SQLite history of batch runs, every duration-fit
// attempt, and each finished unit. The ledger is informational only: the
// catalog file and crash marker remain the source of truth for resume, so
// callers treat ledger failures as warnings.
package ledger
