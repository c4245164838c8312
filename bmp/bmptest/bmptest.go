// Package bmptest builds BMP files byte by byte for use in tests.
package bmptest

import (
	"encoding/binary"
	"io/ioutil"
	"path/filepath"
	"testing"
)

// File describes the header fields to write ahead of Pix.
type File struct {
	Signature string
	Width     int32
	Height    int32
	BitDepth  int32
	// RawDataSize is written as len(Pix) if nil
	RawDataSize *int32
	Pix         []byte
}

// Size returns a pointer to n for use as File.RawDataSize.
func Size(n int32) *int32 {
	return &n
}

// Bytes returns the encoded file.
func (f File) Bytes() []byte {
	b := make([]byte, 54, 54+len(f.Pix))

	sig := f.Signature
	if sig == "" {
		sig = "BM"
	}
	copy(b, sig)

	size := int32(len(f.Pix))
	if f.RawDataSize != nil {
		size = *f.RawDataSize
	}

	depth := f.BitDepth
	if depth == 0 {
		depth = 24
	}

	binary.LittleEndian.PutUint32(b[0x02:], uint32(len(b)+len(f.Pix)))
	binary.LittleEndian.PutUint32(b[0x0a:], 54)
	binary.LittleEndian.PutUint32(b[0x0e:], 40)
	binary.LittleEndian.PutUint32(b[0x12:], uint32(f.Width))
	binary.LittleEndian.PutUint32(b[0x16:], uint32(f.Height))
	binary.LittleEndian.PutUint16(b[0x1a:], 1)
	binary.LittleEndian.PutUint32(b[0x1c:], uint32(depth))
	binary.LittleEndian.PutUint32(b[0x22:], uint32(size))

	return append(b, f.Pix...)
}

// Write writes b to name inside dir and returns the path.
func Write(t *testing.T, dir, name string, b []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := ioutil.WriteFile(path, b, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
