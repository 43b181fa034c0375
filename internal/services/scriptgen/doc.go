// Package scriptgen asks a chat completion model for the three-line subtitle
// script of one work unit.
//
// The prompt is a text/template rendered with the unit's three themes and the
// previous unit's lines so consecutive videos do not repeat themselves. An
// operator can replace the built-in prompt with llm.prompt_path.
package scriptgen
