package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"shortreel/internal/config"
)

func preamble() []string {
	return []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error"}
}

func videoCodec(v config.Video) []string {
	args := []string{"-c:v", v.Codec, "-preset", v.Preset}
	if v.Bitrate != "" {
		args = append(args, "-b:v", v.Bitrate)
	}
	args = append(args, "-crf", strconv.Itoa(v.CRF), "-pix_fmt", v.PixelFormat)
	return args
}

// Trim re-encodes the head of a clip to the output geometry without audio.
func Trim(v config.Video, src, dst string) []string {
	args := preamble()
	args = append(args,
		"-i", src,
		"-ss", "0",
		"-t", formatSeconds(v.TrimSeconds),
		"-an",
		"-r", strconv.Itoa(v.FrameRate),
		"-vf", fmt.Sprintf("scale=%d:%d", v.Width, v.Height),
	)
	args = append(args, videoCodec(v)...)
	return append(args, dst)
}

// Concat joins the trimmed clips in order into one silent video.
func Concat(v config.Video, inputs []string, dst string) []string {
	args := preamble()
	var graph strings.Builder
	for i, in := range inputs {
		args = append(args, "-i", in)
		fmt.Fprintf(&graph, "[%d:v]", i)
	}
	fmt.Fprintf(&graph, "concat=n=%d:v=1:a=0[outv]", len(inputs))
	args = append(args, "-filter_complex", graph.String(), "-map", "[outv]")
	args = append(args, videoCodec(v)...)
	return append(args, dst)
}

// BurnSubtitles renders an SRT file onto the video.
func BurnSubtitles(v config.Video, src, srt, dst string) []string {
	filter := "subtitles=" + escapeFilterValue(srt)
	if style := strings.TrimSpace(v.SubtitleStyle); style != "" {
		filter += ":force_style='" + style + "'"
	}
	args := preamble()
	args = append(args, "-i", src, "-vf", filter)
	args = append(args, videoCodec(v)...)
	return append(args, dst)
}

// VoiceTrack lays out three spoken lines back to back. Line n+1 is delayed by
// delays[n] so each line starts on its window.
func VoiceTrack(v config.Video, lines [3]string, delays [2]time.Duration, dst string) []string {
	args := preamble()
	for _, line := range lines {
		args = append(args, "-i", line)
	}
	graph := fmt.Sprintf(
		"[0:a]anull[a0];[1:a]adelay=delays=%d:all=1[a1];[2:a]adelay=delays=%d:all=1[a2];[a0][a1][a2]concat=n=3:v=0:a=1[aout]",
		delays[0].Milliseconds(), delays[1].Milliseconds(),
	)
	args = append(args, "-filter_complex", graph, "-map", "[aout]", "-b:a", v.AudioBitrate, dst)
	return args
}

// ApplyVoice muxes the voice track under the subtitled video without
// re-encoding the picture.
func ApplyVoice(v config.Video, video, voice, dst string) []string {
	args := preamble()
	return append(args,
		"-i", video,
		"-i", voice,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", v.AudioBitrate,
		"-map", "0:v:0",
		"-map", "1:a:0",
		dst,
	)
}

// MixMusic blends a looped music bed under the voice track. The result ends
// with the video.
func MixMusic(v config.Video, video, music, dst string) []string {
	graph := fmt.Sprintf(
		"[1:a]volume=%s[bed];[0:a][bed]amix=inputs=2:duration=first:dropout_transition=0[aout]",
		strconv.FormatFloat(v.MusicVolume, 'f', -1, 64),
	)
	args := preamble()
	return append(args,
		"-i", video,
		"-stream_loop", "-1",
		"-i", music,
		"-filter_complex", graph,
		"-map", "0:v:0",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", v.AudioBitrate,
		dst,
	)
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}

// escapeFilterValue quotes a path for use as a filter option value.
func escapeFilterValue(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`, `,`, `\,`, `[`, `\[`, `]`, `\]`)
	return replacer.Replace(value)
}
