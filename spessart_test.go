package spessart

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/bodgit/spessart/bmp"
	"github.com/bodgit/spessart/bmp/bmptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	// 2x2, bottom row red and green, top row blue and red
	square = bmptest.File{
		Width:  2,
		Height: 2,
		Pix: []byte{
			0x00, 0x00, 0xff, 0x00, 0xff, 0x00,
			0xff, 0x00, 0x00, 0x00, 0x00, 0xff,
		},
	}
	squareJSON = `{"w":2,"h":2,"rgn":[{"clr":"#0000ff","txt":""},{"clr":"#ff0000","txt":""},{"clr":"#00ff00","txt":""}],"bmp":[0,1,1,2]}`
)

func newTestConverter(t *testing.T, catalog *Catalog, layout bmp.RowLayout) *Converter {
	t.Helper()
	return New(catalog, layout, log.New(ioutil.Discard, "", 0))
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	path := bmptest.Write(t, dir, "square.bmp", square.Bytes())

	c := newTestConverter(t, nil, bmp.Packed)

	var first, second bytes.Buffer
	require.Nil(t, c.Convert(path, &first))
	require.Nil(t, c.Convert(path, &second))

	assert.Equal(t, squareJSON, first.String())
	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestConvertErrors(t *testing.T) {
	dir := t.TempDir()

	tables := []struct {
		name    string
		path    string
		target  error
		message string
	}{
		{
			name:    "missing",
			path:    filepath.Join(dir, "missing.bmp"),
			target:  bmp.ErrNotFound,
			message: "file not found: " + filepath.Join(dir, "missing.bmp"),
		},
		{
			name:   "empty",
			path:   bmptest.Write(t, dir, "empty.bmp", nil),
			target: bmp.ErrCorrupted,
		},
		{
			name:   "signature",
			path:   bmptest.Write(t, dir, "xx.bmp", bmptest.File{Signature: "XX", Width: 1, Height: 1, Pix: []byte{0, 0, 0}}.Bytes()),
			target: bmp.ErrCorrupted,
		},
		{
			name:    "32-bit",
			path:    bmptest.Write(t, dir, "32.bmp", bmptest.File{BitDepth: 32, Width: 1, Height: 1, Pix: []byte{0, 0, 0, 0}}.Bytes()),
			target:  bmp.ErrUnsupported,
			message: "file is not a 24bit BMP: " + filepath.Join(dir, "32.bmp") + " is 32bit",
		},
		{
			name:   "short pixel data",
			path:   bmptest.Write(t, dir, "short.bmp", bmptest.File{Width: 2, Height: 2, Pix: make([]byte, 6)}.Bytes()),
			target: bmp.ErrCorrupted,
		},
	}

	c := newTestConverter(t, nil, bmp.Packed)

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := c.Convert(table.path, &buf)
			require.NotNil(t, err)
			assert.True(t, errors.Is(err, table.target))
			assert.Contains(t, err.Error(), table.path)
			if table.message != "" {
				assert.Equal(t, table.message, err.Error())
			}
			assert.Equal(t, 0, buf.Len())
		})
	}
}

func TestConvertProperties(t *testing.T) {
	const width, height = 8, 5

	pix := make([]byte, 0, width*height*3)
	for i := 0; i < width*height; i++ {
		pix = append(pix, byte(i%3*100), byte(i%5*50), byte(i%2*200))
	}
	path := bmptest.Write(t, t.TempDir(), "props.bmp", bmptest.File{Width: width, Height: height, Pix: pix}.Bytes())

	doc, err := newTestConverter(t, nil, bmp.Packed).ConvertDocument(path)
	require.Nil(t, err)

	m, err := bmp.Open(path, bmp.Packed, nil)
	require.Nil(t, err)
	pixels, err := m.Pixels()
	require.Nil(t, err)

	distinct := make(map[string]struct{})
	for _, c := range pixels {
		distinct[string([]byte{c.R, c.G, c.B})] = struct{}{}
	}

	assert.Len(t, doc.Bitmap, width*height)
	assert.Len(t, doc.Regions, len(distinct))

	// Indices appear in increasing order of first use
	next := 0
	for _, i := range doc.Bitmap {
		require.True(t, i >= 0 && i < len(doc.Regions))
		if i == next {
			next++
		}
		assert.True(t, i < next)
	}

	p, err := doc.Palette()
	require.Nil(t, err)
	for i, c := range pixels {
		assert.Equal(t, c, p[doc.Bitmap[i]])
	}
}

func TestConvertAligned(t *testing.T) {
	// 1x2 with each row padded to four bytes
	f := bmptest.File{Width: 1, Height: 2, Pix: []byte{0x00, 0x00, 0xff, 0x00, 0xff, 0x00, 0x00, 0x00}}
	path := bmptest.Write(t, t.TempDir(), "padded.bmp", f.Bytes())

	var buf bytes.Buffer
	require.Nil(t, newTestConverter(t, nil, bmp.Aligned).Convert(path, &buf))
	assert.Equal(t, `{"w":1,"h":2,"rgn":[{"clr":"#0000ff","txt":""},{"clr":"#ff0000","txt":""}],"bmp":[0,1]}`, buf.String())
}

func TestCatalog(t *testing.T) {
	dir := t.TempDir()

	catalog, err := NewCatalog(filepath.Join(dir, "catalog.db"))
	require.Nil(t, err)
	defer catalog.Close()

	first := bmptest.Write(t, dir, "first.bmp", square.Bytes())
	second := bmptest.Write(t, dir, "second.bmp", square.Bytes())

	c := newTestConverter(t, catalog, bmp.Packed)

	for _, path := range []string{first, second, first} {
		var buf bytes.Buffer
		require.Nil(t, c.Convert(path, &buf))
		assert.Equal(t, squareJSON, buf.String())
	}

	// Rows of four pixels need no padding so both layouts decode the same
	wide := bmptest.Write(t, dir, "wide.bmp", bmptest.File{Width: 4, Height: 1, Pix: make([]byte, 12)}.Bytes())
	for _, layout := range []bmp.RowLayout{bmp.Aligned, bmp.Packed} {
		require.Nil(t, newTestConverter(t, catalog, layout).Convert(wide, ioutil.Discard))
	}

	entries, err := catalog.Entries()
	require.Nil(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, "first.bmp", entries[0].Name)
	assert.Equal(t, bmp.Packed, entries[0].Layout)
	assert.Equal(t, 2, entries[0].Width)
	assert.Equal(t, 2, entries[0].Height)
	assert.Equal(t, 3, entries[0].Colors)
	assert.Len(t, entries[0].SHA1, 40)

	assert.Equal(t, "second.bmp", entries[1].Name)
	assert.Equal(t, entries[0].SHA1, entries[1].SHA1)

	assert.Equal(t, "wide.bmp", entries[2].Name)
	assert.Equal(t, bmp.Packed, entries[2].Layout)
	assert.Equal(t, "wide.bmp", entries[3].Name)
	assert.Equal(t, bmp.Aligned, entries[3].Layout)
	assert.Equal(t, entries[2].SHA1, entries[3].SHA1)
	assert.Equal(t, 1, entries[3].Colors)

	doc, err := catalog.Find(entries[0].SHA1, bmp.Packed)
	require.Nil(t, err)
	require.NotNil(t, doc)
	b, err := doc.MarshalJSON()
	require.Nil(t, err)
	assert.Equal(t, squareJSON, string(b))

	doc, err = catalog.Find("0000000000000000000000000000000000000000", bmp.Packed)
	assert.Nil(t, err)
	assert.Nil(t, doc)
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	hidden := filepath.Join(dir, ".hidden")
	require.Nil(t, os.Mkdir(sub, 0755))
	require.Nil(t, os.Mkdir(hidden, 0755))

	bmptest.Write(t, dir, "square.bmp", square.Bytes())
	bmptest.Write(t, sub, "other.BMP", bmptest.File{Width: 1, Height: 1, Pix: []byte{0, 0, 0}}.Bytes())
	bmptest.Write(t, dir, "broken.bmp", []byte("XX"))
	bmptest.Write(t, hidden, "ignored.bmp", square.Bytes())
	bmptest.Write(t, dir, "notes.txt", []byte("not an image"))

	var logs bytes.Buffer
	c := New(nil, bmp.Packed, log.New(&logs, "", 0))
	require.Nil(t, c.Scan(dir))

	b, err := ioutil.ReadFile(filepath.Join(dir, "square.json"))
	require.Nil(t, err)
	assert.Equal(t, squareJSON, string(b))

	b, err = ioutil.ReadFile(filepath.Join(sub, "other.json"))
	require.Nil(t, err)
	assert.Equal(t, `{"w":1,"h":1,"rgn":[{"clr":"#000000","txt":""}],"bmp":[0]}`, string(b))

	for _, file := range []string{
		filepath.Join(dir, "broken.json"),
		filepath.Join(hidden, "ignored.json"),
		filepath.Join(dir, "notes.json"),
	} {
		_, err := os.Stat(file)
		assert.True(t, os.IsNotExist(err), file)
	}

	assert.Contains(t, logs.String(), "broken.bmp")
}

func TestScanDuplicates(t *testing.T) {
	const width, height, copies = 512, 512, 20

	// Large enough that encoding a document overlaps other workers
	pix := make([]byte, 0, width*height*3)
	for i := 0; i < width*height; i++ {
		pix = append(pix, byte(i), byte(i>>8), byte(i%251))
	}
	b := bmptest.File{Width: width, Height: height, Pix: pix}.Bytes()

	for run := 0; run < 5; run++ {
		dir := t.TempDir()
		for i := 0; i < copies; i++ {
			bmptest.Write(t, dir, fmt.Sprintf("copy%02d.bmp", i), b)
		}

		catalog, err := NewCatalog(filepath.Join(t.TempDir(), "catalog.db"))
		require.Nil(t, err)

		require.Nil(t, newTestConverter(t, catalog, bmp.Packed).Scan(dir))

		entries, err := catalog.Entries()
		require.Nil(t, err)
		require.Len(t, entries, copies)
		for i, e := range entries {
			assert.Equal(t, fmt.Sprintf("copy%02d.bmp", i), e.Name)
			assert.Equal(t, entries[0].SHA1, e.SHA1)
		}

		var first []byte
		for i := 0; i < copies; i++ {
			out, err := ioutil.ReadFile(filepath.Join(dir, fmt.Sprintf("copy%02d.json", i)))
			require.Nil(t, err)
			if first == nil {
				first = out
			}
			assert.Equal(t, first, out)
		}

		require.Nil(t, catalog.Close())
	}
}
