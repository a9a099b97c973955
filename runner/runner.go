// Package runner drives a translation to completion, fetching the
// documents and schemas it needs round by round.
package runner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/alecthomas/units"
	"github.com/brimdata/semq/compiler"
	"github.com/brimdata/semq/compiler/model"
	"github.com/brimdata/semq/pkg/storage"
	arc "github.com/hashicorp/golang-lru/arc/v2"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrTooManyRounds = errors.New("translation did not finish")

// Schemas supplies table and SQL block schemas by key.
// *connection.Registry implements it.
type Schemas interface {
	Table(ctx context.Context, key string) (*model.TableSchema, error)
	SQL(ctx context.Context, key string) (*model.TableSchema, error)
}

type Config struct {
	Concurrency   int
	MaxRounds     int
	MaxImportSize units.Base2Bytes
	CacheSize     int
	// CacheTTL bounds how long a fetched document or schema is reused.
	CacheTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = 32
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 1024
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Second
	}
	return c
}

type Runner struct {
	engine  storage.Engine
	schemas Schemas
	conf    Config
	cache   *arc.ARCCache[string, entry]
	logger  *zap.Logger
	metrics *Metrics
}

type Option func(*Runner)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

func New(engine storage.Engine, schemas Schemas, conf Config, opts ...Option) (*Runner, error) {
	conf = conf.withDefaults()
	cache, err := arc.NewARC[string, entry](conf.CacheSize)
	if err != nil {
		return nil, err
	}
	r := &Runner{
		engine:  engine,
		schemas: schemas,
		conf:    conf,
		cache:   cache,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Inputs maps each document and schema a translation fetched to a digest
// of what was fetched.  A failed fetch has an empty digest.
type Inputs map[string]string

// Translate translates the document at url.  Fetch failures are supplied
// to the translator as errors and so end up as diagnostics; only context
// cancellation and ErrTooManyRounds are returned as errors.
func (r *Runner) Translate(ctx context.Context, url string, opts ...compiler.Option) (*compiler.Response, error) {
	resp, _, err := r.TranslateInputs(ctx, url, opts...)
	return resp, err
}

// TranslateInputs is Translate but also returns the inputs the translation
// was made from.  Values supplied through opts are not inputs.
func (r *Runner) TranslateInputs(ctx context.Context, url string, opts ...compiler.Option) (*compiler.Response, Inputs, error) {
	start := time.Now()
	logger := r.logger.With(zap.String("url", url), zap.Stringer("session", ksuid.New()))
	inputs := make(Inputs)
	t := compiler.NewTranslator(url, opts...)
	for round := 0; ; round++ {
		resp := t.Step()
		if resp.Final {
			logger.Debug("translation finished",
				zap.Int("rounds", round),
				zap.Int("problems", len(resp.Problems)),
				zap.Duration("elapsed", time.Since(start)))
			r.metrics.observe(time.Since(start), resp)
			return resp, inputs, nil
		}
		if round >= r.conf.MaxRounds {
			return nil, nil, fmt.Errorf("%s: %w after %d rounds", url, ErrTooManyRounds, round)
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		logger.Debug("fetching",
			zap.Int("round", round),
			zap.Strings("urls", resp.Needs.URLs),
			zap.Strings("tables", resp.Needs.Tables),
			zap.Strings("sql", resp.Needs.CompileSQL))
		r.metrics.round()
		u, err := r.fetch(ctx, resp.Needs, inputs, logger)
		if err != nil {
			return nil, nil, err
		}
		t.Update(u)
	}
}

// Verify fetches inputs again, bypassing and refreshing the cache, and
// reports whether every digest is unchanged.
func (r *Runner) Verify(ctx context.Context, inputs Inputs) (bool, error) {
	var mu sync.Mutex
	fresh := true
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(r.conf.Concurrency)
	for key, want := range inputs {
		group.Go(func() error {
			v, err := r.load(ctx, key)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == nil {
				r.cache.Add(key, r.entry(v))
			}
			if digest(v, err) != want {
				mu.Lock()
				fresh = false
				mu.Unlock()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return false, err
	}
	return fresh, nil
}

// Needs runs a single step and reports what the translation of url would
// fetch first.  The root document is read so its own needs are known.
func (r *Runner) Needs(ctx context.Context, url string) (*compiler.Needs, error) {
	t := compiler.NewTranslator(url)
	u, err := r.fetch(ctx, &compiler.Needs{URLs: []string{url}}, nil, r.logger)
	if err != nil {
		return nil, err
	}
	if msg, ok := u.Errors.URLs[url]; ok {
		return nil, errors.New(msg)
	}
	t.Update(u)
	resp := t.Step()
	if resp.Needs == nil {
		return &compiler.Needs{}, nil
	}
	return resp.Needs, nil
}

// fetch gets every need concurrently, recording each in inputs when it is
// not nil.
func (r *Runner) fetch(ctx context.Context, needs *compiler.Needs, inputs Inputs, logger *zap.Logger) (compiler.Update, error) {
	u := compiler.Update{
		URLs:       make(map[string]string),
		Tables:     make(map[string]*model.TableSchema),
		CompileSQL: make(map[string]*model.TableSchema),
		Errors: compiler.Errors{
			URLs:       make(map[string]string),
			Tables:     make(map[string]string),
			CompileSQL: make(map[string]string),
		},
	}
	var mu sync.Mutex
	record := func(key string, v any, err error) {
		if inputs != nil {
			inputs[key] = digest(v, err)
		}
	}
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(r.conf.Concurrency)
	for _, url := range needs.URLs {
		group.Go(func() error {
			text, err := r.readText(ctx, url)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			mu.Lock()
			defer mu.Unlock()
			record("url:"+url, text, err)
			if err != nil {
				logger.Debug("import fetch failed", zap.String("import", url), zap.Error(err))
				u.Errors.URLs[url] = err.Error()
				r.metrics.fetched("url", err)
				return nil
			}
			u.URLs[url] = text
			r.metrics.fetched("url", nil)
			return nil
		})
	}
	schema := func(kind, key string, ok map[string]*model.TableSchema, failed map[string]string) {
		group.Go(func() error {
			s, err := r.cached(ctx, kind+":"+key)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			mu.Lock()
			defer mu.Unlock()
			record(kind+":"+key, s, err)
			r.metrics.fetched(kind, err)
			if err != nil {
				logger.Debug("schema fetch failed", zap.String("kind", kind), zap.String("key", key), zap.Error(err))
				failed[key] = err.Error()
				return nil
			}
			ok[key] = s.(*model.TableSchema)
			return nil
		})
	}
	for _, key := range needs.Tables {
		schema("table", key, u.Tables, u.Errors.Tables)
	}
	for _, key := range needs.CompileSQL {
		schema("sql", key, u.CompileSQL, u.Errors.CompileSQL)
	}
	return u, group.Wait()
}

func (r *Runner) readText(ctx context.Context, url string) (string, error) {
	v, err := r.cached(ctx, "url:"+url)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

type entry struct {
	value   any
	expires time.Time
}

func (r *Runner) entry(v any) entry {
	return entry{value: v, expires: time.Now().Add(r.conf.CacheTTL)}
}

// cached returns the unexpired cached value for key or loads it.  Failures
// are not cached.
func (r *Runner) cached(ctx context.Context, key string) (any, error) {
	if e, ok := r.cache.Get(key); ok {
		if time.Now().Before(e.expires) {
			r.metrics.cacheHit()
			return e.value, nil
		}
		r.cache.Remove(key)
	}
	v, err := r.load(ctx, key)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, r.entry(v))
	return v, nil
}

// load fetches the document or schema named by a cache key, which is
// "url:", "table:", or "sql:" followed by the URL or schema key.
func (r *Runner) load(ctx context.Context, key string) (any, error) {
	kind, name, _ := strings.Cut(key, ":")
	switch kind {
	case "url":
		u, err := storage.ParseURI(name)
		if err != nil {
			return nil, err
		}
		return storage.ReadText(ctx, r.engine, u, r.conf.MaxImportSize)
	case "table":
		return r.schemas.Table(ctx, name)
	case "sql":
		return r.schemas.SQL(ctx, name)
	}
	return nil, fmt.Errorf("unknown input %q", key)
}

func digest(v any, err error) string {
	if err != nil {
		return ""
	}
	h := sha256.New()
	if s, ok := v.(string); ok {
		io.WriteString(h, s)
	} else if err := json.NewEncoder(h).Encode(v); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}
