// Package media holds the values that flow through the playback pipeline:
// decoded video frames, decoded audio chunks and the rational frame rate that
// ties frame indices to presentation time.
package media

import (
	"fmt"
	"time"
)

// Frame is one decoded video frame. It is immutable once produced.
type Frame struct {
	Index         uint64        // sequence index, gapless from 0
	Width         int           // width in pixels
	Height        int           // height in pixels
	BytesPerPixel int           // 3 for RGB24, 4 for RGBA (alpha ignored)
	Pix           []byte        // row-major pixel data, Width*Height*BytesPerPixel bytes
	PTS           time.Duration // presentation timestamp derived from Index and the nominal rate
}

// Stride returns the number of bytes per pixel row.
func (f *Frame) Stride() int {
	return f.Width * f.bpp()
}

// RGB returns the color of the pixel at (x, y).
func (f *Frame) RGB(x, y int) (r, g, b uint8) {
	i := y*f.Stride() + x*f.bpp()
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

func (f *Frame) bpp() int {
	if f.BytesPerPixel == 0 {
		return 3
	}
	return f.BytesPerPixel
}

// Validate reports whether the pixel buffer matches the declared geometry.
func (f *Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("frame %d: invalid size %dx%d", f.Index, f.Width, f.Height)
	}
	if bpp := f.bpp(); bpp != 3 && bpp != 4 {
		return fmt.Errorf("frame %d: unsupported %d bytes per pixel", f.Index, bpp)
	}
	if want := f.Stride() * f.Height; len(f.Pix) != want {
		return fmt.Errorf("frame %d: pixel buffer is %d bytes, want %d", f.Index, len(f.Pix), want)
	}
	return nil
}

// AudioChunk is a run of interleaved signed 16-bit little-endian PCM samples.
type AudioChunk struct {
	Index      uint64
	SampleRate int
	Channels   int
	Data       []byte
}

// BytesPerFrame is the size of one sample frame (one sample for every channel).
func (c *AudioChunk) BytesPerFrame() int {
	return 2 * c.Channels
}

// Frames returns the number of sample frames held by the chunk.
func (c *AudioChunk) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Data) / c.BytesPerFrame()
}

// Duration returns the playback length of the chunk.
func (c *AudioChunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return SamplesToDuration(int64(c.Frames()), c.SampleRate)
}

// SamplesToDuration converts a sample frame count at the given rate to a duration.
func SamplesToDuration(n int64, sampleRate int) time.Duration {
	sec := n / int64(sampleRate)
	rem := n % int64(sampleRate)
	return time.Duration(sec)*time.Second + time.Duration(rem)*time.Second/time.Duration(sampleRate)
}
