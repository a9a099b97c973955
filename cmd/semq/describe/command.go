package describe

import (
	"github.com/brimdata/semq/cli/outputflags"
	"github.com/brimdata/semq/cmd/semq/compile"
	"github.com/brimdata/semq/cmd/semq/root"
	"github.com/brimdata/semq/compiler"
	"github.com/brimdata/semq/compiler/describe"
	"github.com/spf13/cobra"
)

type Command struct {
	outputFlags outputflags.Flags
}

func init() {
	c := &Command{}
	cmd := &cobra.Command{
		Use:   "describe [flags] document",
		Short: "summarize the queries of a document as JSON",
		Long: `
This command translates a document and writes, for each query, the
source its rows come from, the composite input chosen if any, and the
aggregation keys and field usage of each stage.
`,
		Args: cobra.ExactArgs(1),
		RunE: c.Run,
	}
	c.outputFlags.SetFlags(cmd.Flags())
	root.Semq.AddCommand(cmd)
}

func (c *Command) Run(cmd *cobra.Command, args []string) error {
	c.outputFlags.Format = "json"
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
	resp, err := r.Translate(cmd.Context(), url)
	if err != nil {
		return err
	}
	if resp.Translated == nil {
		cmd.PrintErr(compiler.FormatProblems(resp.Problems))
		return compile.ErrTranslationFailed
	}
	w, err := c.outputFlags.Open()
	if err != nil {
		return err
	}
	defer w.Close()
	return c.outputFlags.WriteJSON(w, describe.Analyze(resp.Translated.ModelDef))
}
