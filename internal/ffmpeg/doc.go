// Package ffmpeg builds the ffmpeg argument lists for every render step and
// executes them with stderr captured for error reporting.
//
// Builders are pure functions of the video settings and file paths so they
// can be tested without a binary. Every builder writes with -y so a rerun
// overwrites the previous output.
package ffmpeg
