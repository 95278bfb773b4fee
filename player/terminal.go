package player

import (
	"os"

	"golang.org/x/sys/unix"
)

// GetTerminalSize returns terminal dimensions (cols, rows, widthPx, heightPx)
func GetTerminalSize() (cols, rows, widthPx, heightPx int, err error) {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return int(ws.Col), int(ws.Row), int(ws.Xpixel), int(ws.Ypixel), nil
}

// DefaultLongSide is the picture size used when the terminal size is unknown.
const DefaultLongSide = 64

// SizeOptions controls how large the picture is drawn. Sizes are in picture
// pixels, where one terminal cell is one pixel wide and two pixels tall.
type SizeOptions struct {
	Width, Height int     // explicit size, both set or both zero
	Scale         float64 // multiplier applied last, 0 means 1
	PreserveDims  bool    // keep the source size

	TermCols, TermRows int // terminal grid, 0 when unknown
	ReserveRows        int // rows kept free under the picture
}

// PictureSize returns the cell grid for a source of srcW x srcH pixels and
// the pixel size the decoder should scale frames to for mode.
func PictureSize(srcW, srcH int, opts SizeOptions, mode GlyphMode) (cols, rows, pixW, pixH int) {
	w, h := srcW, srcH
	switch {
	case opts.Width > 0 && opts.Height > 0:
		w, h = opts.Width, opts.Height
	case opts.PreserveDims:
	case opts.TermCols > 0 && opts.TermRows > opts.ReserveRows:
		w, h = fitSize(srcW, srcH, opts.TermCols, 2*(opts.TermRows-opts.ReserveRows))
	default:
		w, h = fitSize(srcW, srcH, DefaultLongSide, DefaultLongSide)
	}

	if opts.Scale > 0 && opts.Scale != 1 {
		w = int(float64(w) * opts.Scale)
		h = int(float64(h) * opts.Scale)
	}

	cols = max(w, 1)
	rows = max(h/2, 1)
	return cols, rows, cols, rows * mode.PixelRows()
}

// fitSize computes aspect-correct dimensions to fit in the target area.
func fitSize(srcW, srcH, maxW, maxH int) (int, int) {
	if maxW == 0 || maxH == 0 || srcW == 0 || srcH == 0 {
		return srcW, srcH
	}

	srcAspect := float64(srcW) / float64(srcH)
	dstAspect := float64(maxW) / float64(maxH)

	if srcAspect > dstAspect {
		return maxW, int(float64(maxW) / srcAspect)
	}
	return int(float64(maxH) * srcAspect), maxH
}
