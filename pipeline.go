package spessart

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/spessart/bmp"
	"golang.org/x/sync/errgroup"
)

const scanWorkers = 10

func (c *Converter) findImages(ctx context.Context, base string, out chan<- string) error {
	return filepath.Walk(base, func(file string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Ignore any hidden files or directories, otherwise we end up fighting with things like Spotlight, etc.
		if info.Name()[0] == '.' && file != base {
			if info.Mode().IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.Mode().IsRegular() || !strings.EqualFold(filepath.Ext(file), ".bmp") {
			return nil
		}

		select {
		case out <- file:
		case <-ctx.Done():
			return ctx.Err()
		}

		return nil
	})
}

func writeDocument(file string, doc *Document) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}

	if _, err := doc.WriteTo(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func (c *Converter) convertWorker(ctx context.Context, in <-chan string) error {
	for file := range in {
		doc, err := c.ConvertDocument(file)
		if err != nil {
			// A bad image shouldn't stop the rest of the directory
			if bmp.KindOf(err) != 0 {
				c.logger.Printf("Skipping \"%s\": %s\n", file, err)
				continue
			}
			return err
		}

		out := strings.TrimSuffix(file, filepath.Ext(file)) + ".json"
		if err := writeDocument(out, doc); err != nil {
			return err
		}

		c.logger.Printf("Wrote \"%s\"\n", out)

		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Scan walks the directory at path and converts every BMP image found,
// writing each document next to its image with a ".json" extension. Images
// that fail to decode are logged and skipped.
func (c *Converter) Scan(path string) error {
	dir, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(context.Background())

	files := make(chan string)
	g.Go(func() error {
		defer close(files)
		return c.findImages(ctx, dir, files)
	})

	for i := 0; i < scanWorkers; i++ {
		g.Go(func() error {
			return c.convertWorker(ctx, files)
		})
	}

	return g.Wait()
}
