// Package service serves translations over HTTP.
package service

import (
	"net/http"

	"github.com/brimdata/semq/runner"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type Config struct {
	Auth        AuthConfig
	CORSOrigins []string
	Logger      *zap.Logger
	Version     string
}

type Core struct {
	conf     Config
	runner   *runner.Runner
	plans    runner.PlanCache
	logger   *zap.Logger
	registry *prometheus.Registry
	auth     *TokenValidator
	handler  http.Handler
}

// NewCore creates a service over r.  plans may be nil to disable the plan
// cache.  Metrics registered with registry are served at /metrics.
func NewCore(conf Config, r *runner.Runner, plans runner.PlanCache, registry *prometheus.Registry) (*Core, error) {
	logger := conf.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	c := &Core{
		conf:     conf,
		runner:   r,
		plans:    plans,
		logger:   logger,
		registry: registry,
	}
	if conf.Auth.Enabled() {
		v, err := NewAuthValidator(conf.Auth)
		if err != nil {
			return nil, err
		}
		c.auth = v
	}
	router := mux.NewRouter()
	router.Use(requestIDMiddleware())
	router.Use(accessLogMiddleware(logger))
	c.handle(router, "/version", handleVersion, http.MethodGet).noAuth = true
	c.handle(router, "/status", handleStatus, http.MethodGet).noAuth = true
	c.handle(router, "/translate", handleTranslate, http.MethodPost)
	c.handle(router, "/describe", handleDescribe, http.MethodPost)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.writeError(w, r, errNotFound("no such route"))
	})
	c.handler = cors.New(cors.Options{
		AllowedOrigins:   conf.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		ExposedHeaders:   []string{"X-Request-ID", "X-Plan-Cache"},
	}).Handler(router)
	return c, nil
}

func (c *Core) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.handler.ServeHTTP(w, r)
}

type handlerFunc func(c *Core, w http.ResponseWriter, r *http.Request) error

type route struct {
	core   *Core
	fn     handlerFunc
	noAuth bool
}

func (c *Core) handle(router *mux.Router, path string, fn handlerFunc, methods ...string) *route {
	rt := &route{core: c, fn: fn}
	router.Handle(path, rt).Methods(methods...)
	return rt
}

func (rt *route) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c := rt.core
	if c.auth != nil && !rt.noAuth {
		if err := c.auth.ValidateRequest(r); err != nil {
			c.writeError(w, r, err)
			return
		}
	}
	if err := rt.fn(c, w, r); err != nil {
		c.writeError(w, r, err)
	}
}
