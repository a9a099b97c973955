package needs

import (
	"github.com/brimdata/semq/cli/outputflags"
	"github.com/brimdata/semq/cmd/semq/root"
	"github.com/spf13/cobra"
)

type Command struct {
	outputFlags outputflags.Flags
}

func init() {
	c := &Command{}
	cmd := &cobra.Command{
		Use:   "needs [flags] document",
		Short: "list the imports and schemas a document needs first",
		Args:  cobra.ExactArgs(1),
		RunE:  c.Run,
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
	needs, err := r.Needs(cmd.Context(), url)
	if err != nil {
		return err
	}
	w, err := c.outputFlags.Open()
	if err != nil {
		return err
	}
	defer w.Close()
	return c.outputFlags.WriteJSON(w, needs)
}
