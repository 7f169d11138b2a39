package figure

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgpdf"
)

// ErrFormat is returned for an unsupported output extension.
var ErrFormat = errors.New("figure: unsupported format")

// Formats written by SaveAll.
var Formats = []string{".pdf", ".png"}

const pngDPI = 150

// SaveAll writes p to base+".pdf" and base+".png".
func SaveAll(p *plot.Plot, s Style, base string) error {
	return render(s, base, p.Draw)
}

// SaveGrid lays out plots in rows and columns with aligned axes and writes
// base+".pdf" and base+".png". Nil entries leave an empty tile.
func SaveGrid(plots [][]*plot.Plot, s Style, base string) error {
	if len(plots) == 0 {
		return fmt.Errorf("figure: empty grid")
	}
	tiles := draw.Tiles{
		Rows:      len(plots),
		Cols:      len(plots[0]),
		PadX:      vg.Millimeter,
		PadY:      vg.Millimeter,
		PadLeft:   vg.Points(2),
		PadRight:  vg.Points(2),
		PadTop:    vg.Points(2),
		PadBottom: vg.Points(2),
	}
	return render(s, base, func(dc draw.Canvas) {
		canvases := plot.Align(plots, tiles, dc)
		for j, row := range plots {
			for i, p := range row {
				if p != nil {
					p.Draw(canvases[j][i])
				}
			}
		}
	})
}

func render(s Style, base string, drawFn func(draw.Canvas)) error {
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return fmt.Errorf("figure: %w", err)
	}
	for _, ext := range Formats {
		if err := writeCanvas(base+ext, s, drawFn); err != nil {
			return err
		}
	}
	return nil
}

func writeCanvas(path string, s Style, drawFn func(draw.Canvas)) error {
	var wt io.WriterTo
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		c := vgpdf.New(s.Width, s.Height)
		drawFn(draw.New(c))
		wt = c
	case ".png":
		c := vgimg.NewWith(vgimg.UseWH(s.Width, s.Height), vgimg.UseDPI(pngDPI))
		drawFn(draw.New(c))
		wt = vgimg.PngCanvas{Canvas: c}
	default:
		return fmt.Errorf("%w: %s", ErrFormat, path)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("figure: %w", err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("figure: write %s: %w", path, err)
	}
	return f.Close()
}
