package serve

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brimdata/semq/cmd/semq/root"
	"github.com/brimdata/semq/runner"
	"github.com/brimdata/semq/service"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type Command struct {
	shutdownTimeout time.Duration
}

func init() {
	c := &Command{}
	cmd := &cobra.Command{
		Use:   "serve [flags]",
		Short: "serve translations over HTTP",
		Long: `
This command listens for translation requests.  POST /translate and
POST /describe take a JSON body with the document URL and, optionally,
its text along with imports and schemas to use instead of fetching.
Prometheus metrics are served at /metrics.

Translations of requests that carry only a URL and text are cached,
in Redis when --redis is given and in memory otherwise.
`,
		Args: cobra.NoArgs,
		RunE: c.Run,
	}
	cmd.Flags().DurationVar(&c.shutdownTimeout, "shutdown-timeout", 5*time.Second, "time allowed for requests to finish on shutdown")
	root.Semq.AddCommand(cmd)
}

func (c *Command) Run(cmd *cobra.Command, args []string) error {
	rc, err := root.New(cmd)
	if err != nil {
		return err
	}
	defer rc.Close()
	conf := rc.Config
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r, err := rc.Runner(runner.WithMetrics(runner.NewMetrics(registry)))
	if err != nil {
		return err
	}
	var plans runner.PlanCache
	if conf.Cache.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: conf.Cache.RedisAddr})
		defer client.Close()
		plans = runner.NewRedisPlanCache(client, conf.Cache.RedisTTL)
	} else {
		plans, err = runner.NewARCPlanCache(conf.Cache.Size)
		if err != nil {
			return err
		}
	}
	core, err := service.NewCore(service.Config{
		Auth:        service.AuthConfig{Secret: conf.Service.AuthSecret},
		CORSOrigins: conf.Service.CORSOrigins,
		Logger:      rc.Logger,
		Version:     root.Version,
	}, r, plans, registry)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ln, err := net.Listen("tcp", conf.Service.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           core,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	rc.Logger.Info("listening", zap.String("addr", ln.Addr().String()), zap.Strings("connections", rc.Registry.Names()))
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	rc.Logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), c.shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
