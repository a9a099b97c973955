package root

import (
	"github.com/brimdata/semq/cli/config"
	"github.com/brimdata/semq/connection"
	"github.com/brimdata/semq/pkg/storage"
	"github.com/brimdata/semq/runner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is set at link time.
var Version = "unknown"

var Semq = &cobra.Command{
	Use:   "semq",
	Short: "translate semantic models and queries",
	Long: `
The "semq" command translates documents of source, query, and run:
definitions into models whose queries are annotated with the fields
they use.

Documents are named by path or by file, http, https, or s3 URL, or by "-"
for standard input.  Imports are resolved relative to the importing
document.  The schemas of tables and SQL blocks are read from the
connections named in the configuration file, e.g.,

  connections:
    duckdb:
      driver: sqlite
      dsn: flights.db

Configuration is read from --config, then from SEMQ_ environment
variables (SEMQ_FETCH__MAX_ROUNDS sets fetch.max_rounds), and finally
from command-line flags.
`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	Semq.CompletionOptions.DisableDefaultCmd = true
	config.SetFlags(Semq.PersistentFlags())
}

// Command is the state shared by subcommands.
type Command struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *connection.Registry
}

// New loads the configuration from the flags of cmd and opens the
// configured connections.  The caller must call Close.
func New(cmd *cobra.Command) (*Command, error) {
	conf, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger, err := conf.Log.NewLogger()
	if err != nil {
		return nil, err
	}
	reg, err := connection.OpenRegistry(conf.Connections)
	if err != nil {
		return nil, err
	}
	return &Command{Config: conf, Logger: logger, Registry: reg}, nil
}

func (c *Command) Runner(opts ...runner.Option) (*runner.Runner, error) {
	opts = append([]runner.Option{runner.WithLogger(c.Logger)}, opts...)
	return runner.New(storage.NewRemoteEngine(), c.Registry, c.Config.Runner(), opts...)
}

func (c *Command) Close() error {
	// Sync fails on some terminals.
	c.Logger.Sync()
	return c.Registry.Close()
}

// DocumentURL returns the URL of a document named on the command line.
func DocumentURL(arg string) (string, error) {
	if arg == "-" {
		return "stdio:stdin", nil
	}
	u, err := storage.ParseURI(arg)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
