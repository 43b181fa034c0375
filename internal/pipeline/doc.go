// Package pipeline implements the concrete stages for one unit: trim with
// ffmpeg, theme probes with ffprobe, script generation and speech synthesis
// through the model clients, and the final mux into the output directories.
//
// All scratch artifacts live under the configured work directory and are
// overwritten on every attempt, so a rerun after a crash regenerates them.
package pipeline
