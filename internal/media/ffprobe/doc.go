// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs the binary and Parse decodes its output. Result exposes the
// container duration used to measure synthesized speech and the tag lookup
// used to read clip themes from the "comment" tag.
package ffprobe
