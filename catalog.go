package spessart

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/bodgit/spessart/bmp"
	"github.com/klauspost/compress/zstd"
	_ "github.com/mattn/go-sqlite3"
)

// Catalog stores converted documents keyed by the SHA1 of the source image
// so converting the same image again skips the palette and encoding work.
type Catalog struct {
	db      *sql.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Entry describes a stored document and one of the file names it was
// converted from.
type Entry struct {
	Name   string
	SHA1   string
	Layout bmp.RowLayout
	Width  int
	Height int
	Colors int
}

// NewCatalog opens or creates the catalog in file.
func NewCatalog(file string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", file))
	if err != nil {
		return nil, err
	}
	// Workers share the catalog and sqlite allows one writer
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS document (id INTEGER PRIMARY KEY NOT NULL, sha1 TEXT NOT NULL, layout INTEGER NOT NULL, width INTEGER NOT NULL, height INTEGER NOT NULL, colors INTEGER NOT NULL, json BLOB NOT NULL, UNIQUE(sha1, layout))"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS source (document_id INTEGER NOT NULL, name TEXT NOT NULL, UNIQUE(document_id, name), FOREIGN KEY(document_id) REFERENCES document(id))"); err != nil {
		db.Close()
		return nil, err
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, err
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, err
	}

	return &Catalog{
		db:      db,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// Close closes the catalog.
func (c *Catalog) Close() error {
	c.decoder.Close()
	if err := c.encoder.Close(); err != nil {
		c.db.Close()
		return err
	}
	return c.db.Close()
}

// Find returns the document stored for the image with the given SHA1 and row
// layout, or nil if there is none.
func (c *Catalog) Find(sha string, layout bmp.RowLayout) (*Document, error) {
	var b []byte
	switch err := c.db.QueryRow("SELECT json FROM document WHERE sha1 = ? AND layout = ?", sha, int(layout)).Scan(&b); err {
	case sql.ErrNoRows:
		return nil, nil
	case nil:
		raw, err := c.decoder.DecodeAll(b, nil)
		if err != nil {
			return nil, err
		}
		doc := new(Document)
		if err := json.Unmarshal(raw, doc); err != nil {
			return nil, err
		}
		return doc, nil
	default:
		return nil, err
	}
}

func (c *Catalog) findID(sha string, layout bmp.RowLayout) (int64, bool, error) {
	var id int64
	switch err := c.db.QueryRow("SELECT id FROM document WHERE sha1 = ? AND layout = ?", sha, int(layout)).Scan(&id); err {
	case sql.ErrNoRows:
		return 0, false, nil
	case nil:
		return id, true, nil
	default:
		return 0, false, err
	}
}

func (c *Catalog) addDocument(sha string, layout bmp.RowLayout, doc *Document) (int64, error) {
	if id, ok, err := c.findID(sha, layout); err != nil || ok {
		return id, err
	}

	b, err := doc.MarshalJSON()
	if err != nil {
		return 0, err
	}

	// Another worker may have stored the same image since the lookup
	if _, err := c.db.Exec("INSERT OR IGNORE INTO document (sha1, layout, width, height, colors, json) VALUES (?, ?, ?, ?, ?, ?)", sha, int(layout), doc.Width, doc.Height, len(doc.Regions), c.encoder.EncodeAll(b, nil)); err != nil {
		return 0, err
	}

	id, ok, err := c.findID(sha, layout)
	if err == nil && !ok {
		err = sql.ErrNoRows
	}
	return id, err
}

// Add stores doc for the image with the given SHA1 and row layout, if not
// already present, and records name as one of its sources.
func (c *Catalog) Add(name, sha string, layout bmp.RowLayout, doc *Document) error {
	id, err := c.addDocument(sha, layout, doc)
	if err != nil {
		return err
	}
	if _, err := c.db.Exec("INSERT OR IGNORE INTO source (document_id, name) VALUES (?, ?)", id, name); err != nil {
		return err
	}
	return nil
}

// Entries lists every stored document and source name, ordered by name.
func (c *Catalog) Entries() ([]Entry, error) {
	rows, err := c.db.Query("SELECT s.name, d.sha1, d.layout, d.width, d.height, d.colors FROM source AS s JOIN document AS d ON s.document_id = d.id ORDER BY s.name, d.layout")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var layout int
		if err := rows.Scan(&e.Name, &e.SHA1, &layout, &e.Width, &e.Height, &e.Colors); err != nil {
			return nil, err
		}
		e.Layout = bmp.RowLayout(layout)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
