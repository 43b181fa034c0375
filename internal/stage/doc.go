// Package stage defines the contract between the batch scheduler and the
// external operations that produce one video: trim, theme extraction, script
// generation, speech synthesis and mux.
//
// The scheduler only sees request/response values. Concrete runners wire the
// calls to ffmpeg and the model APIs; tests wire them to scripted fakes.
package stage
