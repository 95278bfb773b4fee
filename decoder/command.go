package decoder

import (
	"fmt"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/njyeung/termplay/media"
)

const (
	// DefaultBinary is the decoder executable looked up on PATH
	DefaultBinary = "ffmpeg"

	// videoPipe and audioPipe are the decoder's output descriptors. The audio
	// pipe is the first of exec.Cmd.ExtraFiles.
	videoPipe = "pipe:1"
	audioPipe = "pipe:3"
)

// CommandOptions describes the raw streams the decoder must produce.
type CommandOptions struct {
	Input string

	// Video is scaled to Width x Height RGB24 at a constant Rate
	Width  int
	Height int
	Rate   media.Rate

	// Audio, when enabled, is resampled to SampleRate s16le with Channels
	Audio      bool
	SampleRate int
	Channels   int
}

// Command builds the decoder argument list (without the binary name).
func Command(opts CommandOptions) []string {
	input := ffmpeg.Input(opts.Input)

	video := input.Video().
		Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d", opts.Width, opts.Height)}).
		Filter("fps", ffmpeg.Args{opts.Rate.String()}).
		Output(videoPipe, ffmpeg.KwArgs{
			"format":  "rawvideo",
			"pix_fmt": "rgb24",
		})

	streams := []*ffmpeg.Stream{video}
	if opts.Audio {
		audio := input.Audio().
			Output(audioPipe, ffmpeg.KwArgs{
				"format": "s16le",
				"acodec": "pcm_s16le",
				"ar":     opts.SampleRate,
				"ac":     opts.Channels,
			})
		streams = append(streams, audio)
	}

	return ffmpeg.MergeOutputs(streams...).
		GlobalArgs("-hide_banner", "-nostdin", "-loglevel", "error").
		GetArgs()
}
