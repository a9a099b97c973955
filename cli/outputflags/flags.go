// Package outputflags holds the flags that select how a translation is
// written: formatted text for people or JSON for programs.
package outputflags

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/brimdata/semq/compiler"
	"github.com/brimdata/semq/compiler/sfmt"
	"github.com/kr/pretty"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

type Flags struct {
	Format     string
	outputFile string
	indent     int
	debug      bool
}

func (f *Flags) SetFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&f.Format, "format", "f", "", "output format [text,json] (default text on a terminal, json otherwise)")
	fs.StringVarP(&f.outputFile, "output", "o", "", "write output to file")
	fs.IntVar(&f.indent, "pretty", 2, "indentation of JSON output (0 for a single line)")
	fs.BoolVar(&f.debug, "debug", false, "dump the raw model in Go syntax")
}

func (f *Flags) Init() error {
	if f.outputFile == "-" {
		f.outputFile = ""
	}
	switch f.Format {
	case "":
		f.Format = "json"
		if f.outputFile == "" && term.IsTerminal(int(os.Stdout.Fd())) {
			f.Format = "text"
		}
	case "text", "json":
	default:
		return fmt.Errorf("unknown output format %q", f.Format)
	}
	if f.debug && f.Format == "json" && f.outputFile == "" && !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("-debug output is for terminals; use -f text")
	}
	return nil
}

// Open returns the destination writer, which the caller closes.
func (f *Flags) Open() (io.WriteCloser, error) {
	if f.outputFile == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(f.outputFile)
}

// WriteResponse writes a finished translation.  Problems are written in
// text mode to the same writer after the model.
func (f *Flags) WriteResponse(w io.Writer, resp *compiler.Response) error {
	if f.debug {
		_, err := pretty.Fprintf(w, "%# v\n", resp)
		return err
	}
	if f.Format == "json" {
		return f.WriteJSON(w, resp)
	}
	if resp.Translated != nil {
		if _, err := io.WriteString(w, sfmt.Model(resp.Translated.ModelDef)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, compiler.FormatProblems(resp.Problems))
	return err
}

func (f *Flags) WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if f.indent > 0 {
		enc.SetIndent("", fmt.Sprintf("%*s", f.indent, ""))
	}
	return enc.Encode(v)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
