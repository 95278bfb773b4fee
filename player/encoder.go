package player

import (
	"fmt"
	"strconv"

	"github.com/njyeung/termplay/media"
)

// GlyphMode selects how pixels map onto a terminal cell.
type GlyphMode int

const (
	// GlyphBlock paints one full block per cell in the block's mean color.
	GlyphBlock GlyphMode = iota

	// GlyphHalf paints a lower half block: the background carries the upper
	// half of the cell and the foreground the lower half, doubling vertical
	// resolution.
	GlyphHalf
)

const (
	fullBlock  = "█"
	lowerBlock = "▄"
	sgrReset   = "\x1b[0m"
)

// ParseGlyphMode accepts "block" or "half".
func ParseGlyphMode(s string) (GlyphMode, error) {
	switch s {
	case "", "block":
		return GlyphBlock, nil
	case "half":
		return GlyphHalf, nil
	default:
		return GlyphBlock, fmt.Errorf("unknown glyph mode %q (want block or half)", s)
	}
}

func (m GlyphMode) String() string {
	if m == GlyphHalf {
		return "half"
	}
	return "block"
}

// PixelRows returns how many pixel rows one terminal row represents.
func (m GlyphMode) PixelRows() int {
	if m == GlyphHalf {
		return 2
	}
	return 1
}

// Color is a 24-bit RGB color.
type Color struct {
	R, G, B uint8
}

// CellBlock is a half-open pixel rectangle of a frame mapped to one cell (or,
// in half mode, one half of a cell). It only lives for one render pass.
type CellBlock struct {
	Frame          *media.Frame
	X0, Y0, X1, Y1 int
}

// Mean returns the average color of the block. A 1x1 block is the pixel itself.
func (b CellBlock) Mean() Color {
	if b.X1-b.X0 == 1 && b.Y1-b.Y0 == 1 {
		r, g, bl := b.Frame.RGB(b.X0, b.Y0)
		return Color{r, g, bl}
	}

	var sr, sg, sb, n uint64
	for y := b.Y0; y < b.Y1; y++ {
		for x := b.X0; x < b.X1; x++ {
			r, g, bl := b.Frame.RGB(x, y)
			sr += uint64(r)
			sg += uint64(g)
			sb += uint64(bl)
			n++
		}
	}
	if n == 0 {
		return Color{}
	}
	return Color{uint8(sr / n), uint8(sg / n), uint8(sb / n)}
}

// EncoderOptions configures the cell grid and pixel transforms.
type EncoderOptions struct {
	Cols, Rows int // cell grid; 0 means one cell per pixel
	Mode       GlyphMode
	Glyph      string // overrides the full block glyph in block mode

	Invert bool
	FlipH  bool
	FlipV  bool

	// NoElide disables dropping repeated color prefixes within a row
	NoElide bool
}

// Encoder turns frames into ANSI truecolor text, one line per cell row.
type Encoder struct {
	opts EncoderOptions
}

// NewEncoder creates an encoder.
func NewEncoder(opts EncoderOptions) *Encoder {
	if opts.Glyph == "" {
		opts.Glyph = fullBlock
	}
	return &Encoder{opts: opts}
}

// Options returns the encoder configuration.
func (e *Encoder) Options() EncoderOptions {
	return e.opts
}

// Grid returns the cell grid used for a frame of the given size. The grid
// never has more cells than the frame has pixels.
func (e *Encoder) Grid(width, height int) (cols, rows int) {
	pr := e.opts.Mode.PixelRows()
	cols, rows = e.opts.Cols, e.opts.Rows
	if cols <= 0 || cols > width {
		cols = width
	}
	maxRows := (height + pr - 1) / pr
	if rows <= 0 || rows > maxRows {
		rows = maxRows
	}
	return max(cols, 1), max(rows, 1)
}

// span maps part i of n onto [0, size).
func span(i, n, size int) (lo, hi int) {
	lo = i * size / n
	hi = (i + 1) * size / n
	if lo >= size {
		lo = size - 1
	}
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

// block returns the pixel block for grid cell (col, sub) where sub indexes
// pixel-row bands (rows*PixelRows of them).
func (e *Encoder) block(f *media.Frame, col, cols, sub, subs int) CellBlock {
	if e.opts.FlipH {
		col = cols - 1 - col
	}
	if e.opts.FlipV {
		sub = subs - 1 - sub
	}
	x0, x1 := span(col, cols, f.Width)
	y0, y1 := span(sub, subs, f.Height)
	return CellBlock{Frame: f, X0: x0, Y0: y0, X1: x1, Y1: y1}
}

func (e *Encoder) color(b CellBlock) Color {
	c := b.Mean()
	if e.opts.Invert {
		c = Color{255 - c.R, 255 - c.G, 255 - c.B}
	}
	return c
}

// AppendFrame appends every row of f separated by "\r\n". No line break
// follows the last row, so a picture as tall as the screen does not scroll.
func (e *Encoder) AppendFrame(dst []byte, f *media.Frame) []byte {
	_, rows := e.Grid(f.Width, f.Height)
	for r := 0; r < rows; r++ {
		if r > 0 {
			dst = append(dst, '\r', '\n')
		}
		dst = e.AppendRow(dst, f, r)
	}
	return dst
}

// AppendRow appends one cell row of f. The row always ends with an SGR reset
// so rows can be written independently.
func (e *Encoder) AppendRow(dst []byte, f *media.Frame, row int) []byte {
	cols, rows := e.Grid(f.Width, f.Height)
	pr := e.opts.Mode.PixelRows()
	subs := rows * pr

	var prev cellColors
	for col := 0; col < cols; col++ {
		var cur cellColors
		glyph := e.opts.Glyph
		switch e.opts.Mode {
		case GlyphHalf:
			cur.bg = e.color(e.block(f, col, cols, row*2, subs))
			cur.fg = e.color(e.block(f, col, cols, row*2+1, subs))
			cur.hasBG = true
			glyph = lowerBlock
		default:
			cur.fg = e.color(e.block(f, col, cols, row, subs))
		}
		dst = e.appendCell(dst, cur, prev, col > 0, glyph)
		prev = cur
	}
	return append(dst, sgrReset...)
}

type cellColors struct {
	fg, bg Color
	hasBG  bool
}

// appendCell writes the color prefix for cur, skipping layers that match the
// previous cell in the same row, then the glyph.
func (e *Encoder) appendCell(dst []byte, cur, prev cellColors, hasPrev bool, glyph string) []byte {
	elide := hasPrev && !e.opts.NoElide
	if cur.hasBG && !(elide && prev.hasBG && prev.bg == cur.bg) {
		dst = AppendSGR(dst, 48, cur.bg)
	}
	if !(elide && prev.fg == cur.fg) {
		dst = AppendSGR(dst, 38, cur.fg)
	}
	return append(dst, glyph...)
}

// EncodeCell returns the full escape sequence for a single cell: the color
// prefix for c followed by glyph. It never elides.
func EncodeCell(c Color, glyph string) []byte {
	dst := AppendSGR(make([]byte, 0, 24), 38, c)
	return append(dst, glyph...)
}

// AppendSGR appends ESC[<layer>;2;r;g;bm where layer is 38 (fg) or 48 (bg).
func AppendSGR(dst []byte, layer int, c Color) []byte {
	dst = append(dst, '\x1b', '[')
	dst = strconv.AppendInt(dst, int64(layer), 10)
	dst = append(dst, ';', '2', ';')
	dst = strconv.AppendUint(dst, uint64(c.R), 10)
	dst = append(dst, ';')
	dst = strconv.AppendUint(dst, uint64(c.G), 10)
	dst = append(dst, ';')
	dst = strconv.AppendUint(dst, uint64(c.B), 10)
	return append(dst, 'm')
}
