// Package preflight provides readiness checks for the binaries, directories
// and model endpoints shortreel depends on.
//
// These checks run in two contexts:
//   - "shortreel run" calls RunAll before touching the crash marker and
//     refuses to start when a required check fails, so a doomed batch never
//     marks itself running.
//   - "shortreel doctor" prints every result, and with --online also calls
//     CheckModelAPI against the configured endpoints.
package preflight
