package main

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/spessart"
	"github.com/bodgit/spessart/bmp"
	"github.com/urfave/cli/v2"
	xbmp "golang.org/x/image/bmp"
)

const (
	appName = "bmp2spessart"
	prompt  = "File (24bit BMP): "
)

// Exit status per failure kind
const (
	exitFailure     = 1
	exitNotFound    = 2
	exitCorrupted   = 3
	exitUnsupported = 4
)

var (
	errUsage     = errors.New("unsupported launch: try " + appName + " <file>")
	errNoCatalog = errors.New("no catalog, use --db")
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func exitError(err error) cli.ExitCoder {
	switch bmp.KindOf(err) {
	case bmp.NotFound:
		return cli.NewExitError(err, exitNotFound)
	case bmp.Corrupted:
		return cli.NewExitError(err, exitCorrupted)
	case bmp.Unsupported:
		return cli.NewExitError(err, exitUnsupported)
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec
	}
	return cli.NewExitError(err, exitFailure)
}

func newLogger(c *cli.Context, stderr io.Writer) *log.Logger {
	logger := log.New(ioutil.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(stderr)
	}
	return logger
}

func openCatalog(c *cli.Context) (*spessart.Catalog, error) {
	if c.String("db") == "" {
		return nil, nil
	}
	return spessart.NewCatalog(c.String("db"))
}

func layout(c *cli.Context) bmp.RowLayout {
	if c.Bool("aligned") {
		return bmp.Aligned
	}
	return bmp.Packed
}

func readPath(stdin io.Reader, stdout io.Writer) (string, error) {
	fmt.Fprint(stdout, prompt)
	s := bufio.NewScanner(stdin)
	if !s.Scan() {
		if err := s.Err(); err != nil {
			return "", err
		}
		return "", errUsage
	}
	path := strings.TrimSpace(s.Text())
	if path == "" {
		return "", errUsage
	}
	return path, nil
}

func writePreview(file string, doc *spessart.Document) error {
	m, err := doc.Image()
	if err != nil {
		return err
	}

	f, err := os.Create(file)
	if err != nil {
		return err
	}

	var encode func(io.Writer, image.Image) error = png.Encode
	if strings.EqualFold(filepath.Ext(file), ".bmp") {
		encode = xbmp.Encode
	}

	if err := encode(f, m); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	app := cli.NewApp()

	app.Name = appName
	app.Usage = "Convert a 24-bit BMP image into a spessart puzzle"
	app.ArgsUsage = "[FILE]"
	app.Version = "1.0.0"
	app.Writer = stdout
	app.ErrWriter = stderr

	// Actions return plain errors, run maps them to exit codes
	app.ExitErrHandler = func(*cli.Context, error) {}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			EnvVars: []string{"SPESSART_DB"},
			Usage:   "path to catalog of converted images",
		},
		&cli.BoolFlag{
			Name:    "aligned",
			EnvVars: []string{"SPESSART_ALIGNED"},
			Usage:   "pad rows to 4 bytes as written by most encoders",
		},
		&cli.StringFlag{
			Name:  "preview",
			Usage: "write the converted image to `FILE` as PNG, or BMP with a .bmp extension",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.Action = func(c *cli.Context) error {
		var path string
		switch c.NArg() {
		case 0:
			p, err := readPath(stdin, stdout)
			if err != nil {
				return err
			}
			path = p
		case 1:
			path = c.Args().First()
		default:
			return errUsage
		}

		catalog, err := openCatalog(c)
		if err != nil {
			return err
		}
		if catalog != nil {
			defer catalog.Close()
		}

		doc, err := spessart.New(catalog, layout(c), newLogger(c, stderr)).ConvertDocument(path)
		if err != nil {
			return err
		}

		if _, err := doc.WriteTo(stdout); err != nil {
			return err
		}
		fmt.Fprintln(stdout)

		if file := c.String("preview"); file != "" {
			if err := writePreview(file, doc); err != nil {
				return err
			}
		}

		return nil
	}

	app.Commands = []*cli.Command{
		{
			Name:        "batch",
			Usage:       "Convert every BMP image beneath a directory",
			Description: "Each document is written next to its image with a .json extension.",
			ArgsUsage:   "DIRECTORY",
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return fmt.Errorf("usage: %s batch DIRECTORY", appName)
				}

				catalog, err := openCatalog(c)
				if err != nil {
					return err
				}
				if catalog != nil {
					defer catalog.Close()
				}

				if err := spessart.New(catalog, layout(c), newLogger(c, stderr)).Scan(c.Args().First()); err != nil {
					return err
				}

				return nil
			},
		},
		{
			Name:  "list",
			Usage: "List the catalog of converted images",
			Action: func(c *cli.Context) error {
				if c.String("db") == "" {
					return errNoCatalog
				}

				catalog, err := openCatalog(c)
				if err != nil {
					return err
				}
				defer catalog.Close()

				entries, err := catalog.Entries()
				if err != nil {
					return err
				}

				for _, e := range entries {
					fmt.Fprintf(stdout, "%s\t%s\t%s\t%dx%d\t%d\n", e.Name, e.SHA1, e.Layout, e.Width, e.Height, e.Colors)
				}

				return nil
			},
		},
	}

	return app
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if err := newApp(stdin, stdout, stderr).Run(args); err != nil {
		ec := exitError(err)
		fmt.Fprintln(stderr, ec.Error())
		return ec.ExitCode()
	}
	return 0
}

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}
