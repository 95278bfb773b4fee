// Command probe prints what termplay would do with a media file: the stream
// parameters, the picture size for the current terminal and the decoder
// command line.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/njyeung/termplay/decoder"
	"github.com/njyeung/termplay/player"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s FILE\n", os.Args[0])
		os.Exit(2)
	}
	path := os.Args[1]

	info, err := decoder.Probe(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("video:    %dx%d @ %s fps (%.3f)\n", info.Width, info.Height, info.Rate, info.Rate.Float64())
	fmt.Printf("duration: %s\n", info.Duration)
	if info.HasAudio {
		fmt.Printf("audio:    %d Hz, %d channels\n", info.SampleRate, info.Channels)
	} else {
		fmt.Println("audio:    none")
	}

	opts := player.SizeOptions{}
	if cols, rows, _, _, err := player.GetTerminalSize(); err == nil {
		opts.TermCols, opts.TermRows = cols, rows
	}
	cols, rows, pixW, pixH := player.PictureSize(info.Width, info.Height, opts, player.GlyphBlock)
	fmt.Printf("grid:     %dx%d cells (%dx%d px)\n", cols, rows, pixW, pixH)

	args := decoder.Command(decoder.CommandOptions{
		Input:      path,
		Width:      pixW,
		Height:     pixH,
		Rate:       info.Rate,
		Audio:      info.HasAudio,
		SampleRate: player.AudioSampleRate,
		Channels:   player.AudioChannels,
	})
	fmt.Printf("decoder:  %s %s\n", decoder.DefaultBinary, strings.Join(args, " "))
}
