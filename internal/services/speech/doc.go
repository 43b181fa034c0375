// Package speech turns one subtitle line into an audio file through the
// OpenAI text-to-speech endpoint.
package speech
