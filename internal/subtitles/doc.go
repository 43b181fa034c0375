// Package subtitles parses and renders the SRT scripts that drive each video.
//
// A unit's script is three cues laid out in fixed five second windows. After
// speech synthesis the cues are retimed so each one ends when its spoken line
// ends, and the result is burned into the video.
package subtitles
