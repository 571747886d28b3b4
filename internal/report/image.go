package report

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
)

const (
	// space between the images of a grid
	gutter = 2
	ramp   = " .:-=+*#%@"
)

// ImageGrid writes the square grayscale images as one png, cols images per row.
func ImageGrid(w io.Writer, images [][]byte, size, cols int) error {
	if len(images) == 0 || size <= 0 || cols <= 0 {
		return ErrNoData
	}
	if cols > len(images) {
		cols = len(images)
	}
	rows := (len(images) + cols - 1) / cols
	width := cols*size + (cols+1)*gutter
	height := rows*size + (rows+1)*gutter

	grid := image.NewGray(image.Rect(0, 0, width, height))
	for i := range grid.Pix {
		grid.Pix[i] = 0xff
	}
	for n, img := range images {
		if len(img) != size*size {
			return fmt.Errorf("image %d has %d pixels instead of %d: %w", n, len(img), size*size, ErrNoData)
		}
		x0 := gutter + (n%cols)*(size+gutter)
		y0 := gutter + (n/cols)*(size+gutter)
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				// dark ink on a white background
				grid.SetGray(x0+x, y0+y, color.Gray{Y: 0xff - img[y*size+x]})
			}
		}
	}
	return png.Encode(w, grid)
}

// ASCII renders a square grayscale image with one character per pixel.
func ASCII(w io.Writer, img []byte, size int) {
	var b strings.Builder
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := int(img[y*size+x])
			b.WriteByte(ramp[v*(len(ramp)-1)/255])
		}
		b.WriteByte('\n')
	}
	fmt.Fprint(w, b.String())
}
