package decoder

import (
	"errors"
	"fmt"
	"io"

	"github.com/njyeung/termplay/media"
)

// FrameReader splits a raw RGB24 byte stream into frames.
type FrameReader struct {
	r      io.Reader
	width  int
	height int
	rate   media.Rate
	next   uint64
}

// NewFrameReader reads width x height RGB24 frames from r.
func NewFrameReader(r io.Reader, width, height int, rate media.Rate) *FrameReader {
	return &FrameReader{r: r, width: width, height: height, rate: rate}
}

// FrameSize is the byte length of one frame.
func (fr *FrameReader) FrameSize() int {
	return fr.width * fr.height * 3
}

// Next returns the next frame. It returns io.EOF at a clean frame boundary
// and io.ErrUnexpectedEOF when the stream ends inside a frame.
func (fr *FrameReader) Next() (media.Frame, error) {
	pix := make([]byte, fr.FrameSize())
	if _, err := io.ReadFull(fr.r, pix); err != nil {
		return media.Frame{}, err
	}

	f := media.Frame{
		Index:         fr.next,
		Width:         fr.width,
		Height:        fr.height,
		BytesPerPixel: 3,
		Pix:           pix,
		PTS:           fr.rate.Offset(fr.next),
	}
	fr.next++
	return f, nil
}

// Count returns the number of frames read so far.
func (fr *FrameReader) Count() uint64 {
	return fr.next
}

// ChunkReader splits a raw s16le byte stream into audio chunks. Chunks
// always hold whole sample frames; the last one may be short.
type ChunkReader struct {
	r          io.Reader
	sampleRate int
	channels   int
	chunkBytes int
	next       uint64
}

// DefaultChunkFrames is the number of sample frames per audio chunk.
const DefaultChunkFrames = 1024

// NewChunkReader reads chunks of chunkFrames sample frames from r.
func NewChunkReader(r io.Reader, sampleRate, channels, chunkFrames int) *ChunkReader {
	if chunkFrames <= 0 {
		chunkFrames = DefaultChunkFrames
	}
	return &ChunkReader{
		r:          r,
		sampleRate: sampleRate,
		channels:   channels,
		chunkBytes: chunkFrames * 2 * channels,
	}
}

// Next returns the next chunk, or io.EOF once the stream is exhausted. A
// trailing partial sample frame is dropped.
func (cr *ChunkReader) Next() (media.AudioChunk, error) {
	buf := make([]byte, cr.chunkBytes)
	n, err := io.ReadFull(cr.r, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	if err != nil {
		return media.AudioChunk{}, err
	}

	frameBytes := 2 * cr.channels
	n -= n % frameBytes
	if n == 0 {
		return media.AudioChunk{}, io.EOF
	}

	c := media.AudioChunk{
		Index:      cr.next,
		SampleRate: cr.sampleRate,
		Channels:   cr.channels,
		Data:       buf[:n],
	}
	cr.next++
	return c, nil
}

// Count returns the number of chunks read so far.
func (cr *ChunkReader) Count() uint64 {
	return cr.next
}

func (cr *ChunkReader) String() string {
	return fmt.Sprintf("s16le %dHz %dch", cr.sampleRate, cr.channels)
}
