/*
Package palette builds an exact-match color palette from a sequence of pixels.

Colors keep the order in which they were first seen and each one is assigned
its position in that order as an index. No two colors are merged, however
close they are.
*/
package palette

import "image/color"

// Palette is an ordered set of unique colors.
type Palette struct {
	colors []color.RGBA
	index  map[color.RGBA]int
}

// New returns an empty palette.
func New() *Palette {
	return &Palette{
		index: make(map[color.RGBA]int),
	}
}

// Build returns the palette of every distinct color in pixels in order of
// first appearance.
func Build(pixels []color.RGBA) *Palette {
	p := New()
	for _, c := range pixels {
		p.Add(c)
	}
	return p
}

// Add appends c if it is not already present and returns its index.
func (p *Palette) Add(c color.RGBA) int {
	if i, ok := p.index[c]; ok {
		return i
	}
	p.colors = append(p.colors, c)
	p.index[c] = len(p.colors) - 1
	return len(p.colors) - 1
}

// Index returns the position of c in the palette.
func (p *Palette) Index(c color.RGBA) (int, bool) {
	i, ok := p.index[c]
	return i, ok
}

// Len returns the number of colors in the palette.
func (p *Palette) Len() int {
	return len(p.colors)
}

// Colors returns the palette in order. The slice must not be modified.
func (p *Palette) Colors() []color.RGBA {
	return p.colors
}

// Indices maps every pixel to its index in the palette. It returns false if
// any pixel is missing from the palette.
func (p *Palette) Indices(pixels []color.RGBA) ([]int, bool) {
	out := make([]int, len(pixels))
	for i, c := range pixels {
		j, ok := p.index[c]
		if !ok {
			return nil, false
		}
		out[i] = j
	}
	return out, true
}

const hexDigits = "0123456789abcdef"

// AppendHex appends c as six lowercase hex digits in R, G, B order.
func AppendHex(b []byte, c color.RGBA) []byte {
	for _, v := range [...]uint8{c.R, c.G, c.B} {
		b = append(b, hexDigits[v>>4], hexDigits[v&0x0f])
	}
	return b
}

// Hex returns c as six lowercase hex digits in R, G, B order, e.g. "ff0000".
func Hex(c color.RGBA) string {
	return string(AppendHex(make([]byte, 0, 6), c))
}
