/*
Package spessart is a library for converting 24-bit BMP images into the JSON
palette-index format used by spessart paint-by-region puzzles.

A document holds the image dimensions, one region per distinct color in the
order the colors are first seen scanning from the top-left corner, and the
region index of every pixel in that same order.
*/
package spessart

import (
	"crypto/sha1"
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/bodgit/spessart/bmp"
)

// Converter converts BMP files into documents.
type Converter struct {
	catalog *Catalog
	layout  bmp.RowLayout
	logger  *log.Logger
}

// New returns a Converter reading rows with the given layout. The catalog may
// be nil.
func New(catalog *Catalog, layout bmp.RowLayout, logger *log.Logger) *Converter {
	return &Converter{
		catalog: catalog,
		layout:  layout,
		logger:  logger,
	}
}

// ConvertDocument converts the BMP file at path into a document. Any error
// decoding the file is a *bmp.Error.
func (c *Converter) ConvertDocument(path string) (*Document, error) {
	h := sha1.New()
	m, err := bmp.Open(path, c.layout, h)
	if err != nil {
		return nil, err
	}
	sha := fmt.Sprintf("%X", h.Sum(nil))

	c.logger.Printf("Decoded \"%s\", %dx%d, SHA1 %s\n", path, m.Header.Width, m.Header.Height, sha)

	if c.catalog != nil {
		doc, err := c.catalog.Find(sha, c.layout)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			c.logger.Printf("Found \"%s\" in catalog\n", path)
			return doc, c.catalog.Add(filepath.Base(path), sha, c.layout, doc)
		}
	}

	doc, err := NewDocument(m)
	if err != nil {
		return nil, bmp.WithPath(err, path)
	}

	c.logger.Printf("\"%s\" has %d distinct colors\n", path, len(doc.Regions))

	if c.catalog != nil {
		if err := c.catalog.Add(filepath.Base(path), sha, c.layout, doc); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// Convert converts the BMP file at path and writes the document to w. Nothing
// is written to w unless the conversion succeeds.
func (c *Converter) Convert(path string, w io.Writer) error {
	doc, err := c.ConvertDocument(path)
	if err != nil {
		return err
	}
	_, err = doc.WriteTo(w)
	return err
}
