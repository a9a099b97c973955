package compile

import (
	"errors"

	"github.com/brimdata/semq/cli/outputflags"
	"github.com/brimdata/semq/cmd/semq/root"
	"github.com/brimdata/semq/compiler"
	"github.com/spf13/cobra"
)

var ErrTranslationFailed = errors.New("translation failed")

type Command struct {
	outputFlags outputflags.Flags
	text        string
}

func init() {
	c := &Command{}
	cmd := &cobra.Command{
		Use:   "compile [flags] document",
		Short: "translate a document and print its model",
		Long: `
This command translates a document and the documents it imports and
writes the resulting model.  Text output lists each source with its
fields and each query with its stages and the fields they use.  JSON
output is the complete translation response.

Problems found in the document are written after the model.  The
command exits with an error if any problem is an error.

With -c, the given text is translated as if it were the content of the
named document, so imports are still resolved relative to it.
`,
		Args: cobra.ExactArgs(1),
		RunE: c.Run,
	}
	c.outputFlags.SetFlags(cmd.Flags())
	cmd.Flags().StringVarP(&c.text, "command", "c", "", "translate this text as the document")
	root.Semq.AddCommand(cmd)
}

func (c *Command) Run(cmd *cobra.Command, args []string) error {
	if err := c.outputFlags.Init(); err != nil {
		return err
	}
	url, err := root.DocumentURL(args[0])
	if err != nil {
		return err
	}
	rc, err := root.New(cmd)
	if err != nil {
		return err
	}
	defer rc.Close()
	r, err := rc.Runner()
	if err != nil {
		return err
	}
	var opts []compiler.Option
	if c.text != "" {
		opts = append(opts, compiler.WithText(c.text))
	}
	resp, err := r.Translate(cmd.Context(), url, opts...)
	if err != nil {
		return err
	}
	w, err := c.outputFlags.Open()
	if err != nil {
		return err
	}
	if err := c.outputFlags.WriteResponse(w, resp); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if resp.Translated == nil {
		return ErrTranslationFailed
	}
	return nil
}
