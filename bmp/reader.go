package bmp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
)

func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

func readInt32(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}

// Bitmap is a decoded BMP header together with its raw pixel data. It
// implements image.Image with the origin at the top-left corner.
type Bitmap struct {
	Header Header
	// Stride is the number of bytes between the start of consecutive rows
	Stride int
	// Pix holds the pixel data exactly as stored in the file, B, G, R
	// order, bottom row first
	Pix []byte
}

type decoder struct {
	r      io.Reader
	layout RowLayout
	header Header

	tmp [headerSize]byte
}

func (d *decoder) readHeader() error {
	if err := readFull(d.r, d.tmp[:]); err != nil {
		if err != io.ErrUnexpectedEOF {
			return corrupted("cannot read header", err)
		}
		return corrupted(fmt.Sprintf("header is shorter than %d bytes", headerSize), err)
	}

	copy(d.header.Signature[:], d.tmp[:2])
	if d.header.Signature != ([2]byte{'B', 'M'}) {
		return corrupted(fmt.Sprintf("bad signature %q", d.header.Signature[:]), nil)
	}

	d.header.FileSize = readInt32(d.tmp[0x02:])
	d.header.PixelDataOffset = readInt32(d.tmp[0x0a:])
	d.header.Width = readInt32(d.tmp[offsetWidth:])
	d.header.Height = readInt32(d.tmp[offsetHeight:])
	d.header.BitDepth = readInt32(d.tmp[offsetBitDepth:])
	d.header.RawDataSize = readInt32(d.tmp[offsetDataSize:])

	if d.header.BitDepth != bitDepth {
		return &Error{Kind: Unsupported, BitDepth: d.header.BitDepth}
	}

	switch {
	case d.header.Width < 0:
		return corrupted(fmt.Sprintf("negative width %d", d.header.Width), nil)
	case d.header.Height < 0:
		return &Error{Kind: Unsupported, BitDepth: d.header.BitDepth, Reason: "top-down row order is not supported"}
	case d.header.RawDataSize < 0:
		return corrupted(fmt.Sprintf("negative pixel data size %d", d.header.RawDataSize), nil)
	}

	return nil
}

func (d *decoder) readPixels() ([]byte, error) {
	size := int64(d.header.RawDataSize)
	if size == 0 {
		// Permitted for uncompressed images, the size is implied
		size = int64(d.layout.Stride(int(d.header.Width))) * int64(d.header.Height)
	}

	pix, err := io.ReadAll(io.LimitReader(d.r, size))
	if err != nil {
		return nil, corrupted("cannot read pixel data", err)
	}
	if int64(len(pix)) < size {
		return nil, corrupted(fmt.Sprintf("pixel data is %d bytes, expected %d", len(pix), size), io.ErrUnexpectedEOF)
	}

	return pix, nil
}

func (d *decoder) decode(r io.Reader) (*Bitmap, error) {
	d.r = r

	if err := d.readHeader(); err != nil {
		return nil, err
	}

	pix, err := d.readPixels()
	if err != nil {
		return nil, err
	}

	return &Bitmap{
		Header: d.header,
		Stride: d.layout.Stride(int(d.header.Width)),
		Pix:    pix,
	}, nil
}

// Decode reads a 24-bit BMP image from r using the given row layout.
func Decode(r io.Reader, layout RowLayout) (*Bitmap, error) {
	d := decoder{layout: layout}
	return d.decode(r)
}

// Open decodes the BMP image stored in the named file. If w is not nil every
// byte consumed by the decoder is also written to it. The file is closed
// before returning.
func Open(path string, layout RowLayout, w io.Writer) (*Bitmap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Kind: NotFound, Path: path, Err: err}
	}
	defer f.Close()

	var r io.Reader = f
	if w != nil {
		r = io.TeeReader(f, w)
	}

	b, err := Decode(r, layout)
	if err != nil {
		return nil, WithPath(err, path)
	}
	return b, nil
}

// WithPath records path against err if it is an *Error without one.
func WithPath(err error, path string) error {
	var e *Error
	if errors.As(err, &e) && e.Path == "" {
		e.Path = path
	}
	return err
}

// Bounds implements image.Image.
func (b *Bitmap) Bounds() image.Rectangle {
	return image.Rect(0, 0, int(b.Header.Width), int(b.Header.Height))
}

// ColorModel implements image.Image.
func (b *Bitmap) ColorModel() color.Model {
	return color.RGBAModel
}

func (b *Bitmap) offset(x, y int) int {
	return (int(b.Header.Height)-1-y)*b.Stride + x*bytesPerPixel
}

// RGBAAt returns the color of the pixel at (x, y) where (0, 0) is the
// top-left corner. Pixels outside the image or the pixel data are zero.
func (b *Bitmap) RGBAAt(x, y int) color.RGBA {
	if !(image.Point{x, y}.In(b.Bounds())) {
		return color.RGBA{}
	}
	i := b.offset(x, y)
	if i < 0 || i+bytesPerPixel > len(b.Pix) {
		return color.RGBA{}
	}
	return color.RGBA{b.Pix[i+2], b.Pix[i+1], b.Pix[i], 0xff}
}

// At implements image.Image.
func (b *Bitmap) At(x, y int) color.Color {
	return b.RGBAAt(x, y)
}

func (b *Bitmap) checkBounds() error {
	width, height := int64(b.Header.Width), int64(b.Header.Height)
	if width == 0 || height == 0 {
		return nil
	}

	row := width * bytesPerPixel
	if int64(len(b.Pix)) < row || (int64(len(b.Pix))-row)/int64(b.Stride)+1 < height {
		return corrupted(fmt.Sprintf("pixel data is %d bytes, too short for %dx%d", len(b.Pix), width, height), nil)
	}

	return nil
}

// Pixels returns the color of every pixel, starting with the top-left corner
// and proceeding right then down. The rows in the pixel data are walked from
// last to first to undo the bottom-up storage order.
func (b *Bitmap) Pixels() ([]color.RGBA, error) {
	if err := b.checkBounds(); err != nil {
		return nil, err
	}

	width, height := int(b.Header.Width), int(b.Header.Height)
	pixels := make([]color.RGBA, 0, width*height)

	for y := height - 1; y >= 0; y-- {
		row := b.Pix[y*b.Stride:]
		for x := 0; x < width; x++ {
			i := x * bytesPerPixel
			// Stored as B, G, R
			pixels = append(pixels, color.RGBA{row[i+2], row[i+1], row[i], 0xff})
		}
	}

	return pixels, nil
}
