/*
Package bmp implements a decoder for 24-bit uncompressed BMP images.

Only the fields needed to locate and walk the pixel data are read from the
fixed 54 byte header. Pixel data is stored as B, G, R triplets with the rows
ordered bottom to top. Other bit depths, compression, color tables and top-down
images are rejected rather than handled.
*/
package bmp

const (
	headerSize = 54

	offsetWidth    = 0x12
	offsetHeight   = 0x16
	offsetBitDepth = 0x1c
	offsetDataSize = 0x22

	bitDepth      = 24
	bytesPerPixel = bitDepth >> 3
)

// Header holds the fields of a BMP header used by the decoder.
type Header struct {
	Signature       [2]byte
	FileSize        int32
	PixelDataOffset int32
	Width           int32
	Height          int32
	// BitDepth is read as 32 bits from offset 0x1c, so a non-zero
	// compression field also shows up here
	BitDepth    int32
	RawDataSize int32
}

// RowLayout controls how many bytes each row of pixel data occupies.
type RowLayout int

const (
	// Packed rows are exactly width*3 bytes with no padding. This ignores
	// the 4-byte row alignment written by most encoders so only images
	// where width*3 is a multiple of 4 decode as intended.
	Packed RowLayout = iota
	// Aligned rows are padded to a multiple of 4 bytes.
	Aligned
)

// Stride returns the number of bytes per row for an image of the given width.
func (l RowLayout) Stride(width int) int {
	if l == Aligned {
		return (width*bytesPerPixel + 3) &^ 3
	}
	return width * bytesPerPixel
}

func (l RowLayout) String() string {
	switch l {
	case Packed:
		return "packed"
	case Aligned:
		return "aligned"
	}
	return "unknown"
}
