package spessart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strconv"

	"github.com/bodgit/spessart/bmp"
	"github.com/bodgit/spessart/palette"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Region is a palette entry pairing a color with an editable label.
type Region struct {
	// Color is "#" followed by six lowercase hex digits
	Color string `json:"clr"`
	// Text is left empty by the converter
	Text string `json:"txt"`
}

// Document is the puzzle representation of an image: a palette of regions
// and, for every pixel from the top-left corner, the index of its region.
type Document struct {
	Width   int      `json:"w"`
	Height  int      `json:"h"`
	Regions []Region `json:"rgn"`
	Bitmap  []int    `json:"bmp"`
}

var (
	errBitmapLength = errors.New("spessart: bitmap length does not match dimensions")
	errBadIndex     = errors.New("spessart: region index out of range")
)

// NewDocument builds a document from a decoded BMP image.
func NewDocument(m *bmp.Bitmap) (*Document, error) {
	pixels, err := m.Pixels()
	if err != nil {
		return nil, err
	}

	p := palette.Build(pixels)

	indices, ok := p.Indices(pixels)
	if !ok {
		// Every pixel went into the palette so this cannot happen
		return nil, errors.New("spessart: pixel missing from palette")
	}

	d := &Document{
		Width:   int(m.Header.Width),
		Height:  int(m.Header.Height),
		Regions: make([]Region, 0, p.Len()),
		Bitmap:  indices,
	}

	for _, c := range p.Colors() {
		d.Regions = append(d.Regions, Region{Color: "#" + palette.Hex(c)})
	}

	return d, nil
}

// Validate checks the bitmap covers every pixel and only refers to regions
// that exist.
func (d *Document) Validate() error {
	if d.Width < 0 || d.Height < 0 || len(d.Bitmap) != d.Width*d.Height {
		return errBitmapLength
	}
	for _, i := range d.Bitmap {
		if i < 0 || i >= len(d.Regions) {
			return errBadIndex
		}
	}
	return nil
}

func appendString(b []byte, s string) ([]byte, error) {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c < 0x20 || c >= 0x7f || c == '"' || c == '\\' {
			buf := bytes.NewBuffer(b)
			enc := json.NewEncoder(buf)
			// Leave <, > and & alone, as the fast path does
			enc.SetEscapeHTML(false)
			if err := enc.Encode(s); err != nil {
				return nil, err
			}
			return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
		}
	}
	b = append(b, '"')
	b = append(b, s...)
	return append(b, '"'), nil
}

// MarshalJSON encodes the document with no whitespace between tokens.
func (d *Document) MarshalJSON() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	// Roughly 25 bytes per region and up to 4 per pixel
	b := make([]byte, 0, 64+len(d.Regions)*25+len(d.Bitmap)*4)

	b = append(b, `{"w":`...)
	b = strconv.AppendInt(b, int64(d.Width), 10)
	b = append(b, `,"h":`...)
	b = strconv.AppendInt(b, int64(d.Height), 10)

	b = append(b, `,"rgn":[`...)
	var err error
	for i, r := range d.Regions {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, `{"clr":`...)
		if b, err = appendString(b, r.Color); err != nil {
			return nil, err
		}
		b = append(b, `,"txt":`...)
		if b, err = appendString(b, r.Text); err != nil {
			return nil, err
		}
		b = append(b, '}')
	}

	b = append(b, `],"bmp":[`...)
	for i, v := range d.Bitmap {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendInt(b, int64(v), 10)
	}
	b = append(b, "]}"...)

	return b, nil
}

// UnmarshalJSON decodes and validates a document.
func (d *Document) UnmarshalJSON(b []byte) error {
	type document Document
	var tmp document
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	if err := (*Document)(&tmp).Validate(); err != nil {
		return err
	}
	*d = Document(tmp)
	return nil
}

// WriteTo writes the encoded document to w. Nothing is written if the
// document cannot be encoded.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	b, err := d.MarshalJSON()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// Palette parses the region colors.
func (d *Document) Palette() (color.Palette, error) {
	p := make(color.Palette, 0, len(d.Regions))
	for i, r := range d.Regions {
		c, err := colorful.Hex(r.Color)
		if err != nil {
			return nil, fmt.Errorf("spessart: region %d: %w", i, err)
		}
		red, green, blue := c.RGB255()
		p = append(p, color.RGBA{red, green, blue, 0xff})
	}
	return p, nil
}

// Image reconstructs the image described by the document.
func (d *Document) Image() (*image.RGBA, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	p, err := d.Palette()
	if err != nil {
		return nil, err
	}

	m := image.NewRGBA(image.Rect(0, 0, d.Width, d.Height))
	for i, v := range d.Bitmap {
		m.Set(i%d.Width, i/d.Width, p[v])
	}

	return m, nil
}
