package decoder

import (
	"fmt"
	"time"

	"github.com/asticode/go-astiav"

	"github.com/njyeung/termplay/media"
)

func init() {
	// Suppress FFmpeg log messages
	astiav.SetLogLevel(astiav.LogLevelQuiet)
}

// Info describes the streams of a media file.
type Info struct {
	Width    int
	Height   int
	Rate     media.Rate
	Duration time.Duration

	HasAudio   bool
	SampleRate int
	Channels   int
}

// Probe opens path and reads its stream parameters without decoding.
func Probe(path string) (*Info, error) {
	formatCtx := astiav.AllocFormatContext()
	if formatCtx == nil {
		return nil, fmt.Errorf("failed to allocate format context")
	}

	// Open input (path is a local file)
	if err := formatCtx.OpenInput(path, nil, nil); err != nil {
		formatCtx.Free()
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer func() {
		formatCtx.CloseInput()
		formatCtx.Free()
	}()

	if err := formatCtx.FindStreamInfo(nil); err != nil {
		return nil, fmt.Errorf("failed to find stream info: %w", err)
	}

	info := &Info{}
	if d := formatCtx.Duration(); d > 0 {
		// AV_TIME_BASE is microseconds
		info.Duration = time.Duration(d) * time.Microsecond
	}

	foundVideo := false
	for _, stream := range formatCtx.Streams() {
		params := stream.CodecParameters()
		switch params.MediaType() {
		case astiav.MediaTypeVideo:
			if foundVideo {
				continue
			}
			foundVideo = true
			info.Width = params.Width()
			info.Height = params.Height()
			info.Rate = streamRate(stream)
		case astiav.MediaTypeAudio:
			if info.HasAudio {
				continue
			}
			info.HasAudio = true
			info.SampleRate = params.SampleRate()
			info.Channels = params.ChannelLayout().Channels()
		}
	}

	if !foundVideo {
		return nil, fmt.Errorf("no video stream found")
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("video stream has no dimensions")
	}
	return info, nil
}

// streamRate prefers the average frame rate and falls back to the base rate.
func streamRate(stream *astiav.Stream) media.Rate {
	for _, r := range []astiav.Rational{stream.AvgFrameRate(), stream.RFrameRate()} {
		rate := media.Rate{Num: int64(r.Num()), Den: int64(r.Den())}
		if rate.Valid() {
			return rate.Reduce()
		}
	}
	return media.Rate{}
}
