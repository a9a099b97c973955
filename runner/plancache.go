package runner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	arc "github.com/hashicorp/golang-lru/arc/v2"
)

// PlanCache holds encoded translation responses for documents whose
// translation finished.  Keys are made with PlanKey.
type PlanCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// PlanKey identifies a translation of text at url, optionally extending
// a base model identified by base.
func PlanKey(url, text, base string) string {
	h := sha256.New()
	for _, s := range []string{url, text, base} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Plan is a cached translation response and the inputs it was made from.
// A plan is only reused after Runner.Verify finds its inputs unchanged.
type Plan struct {
	Inputs   Inputs          `json:"inputs"`
	Response json.RawMessage `json:"response"`
}

type ARCPlanCache struct {
	cache *arc.ARCCache[string, []byte]
}

var _ PlanCache = (*ARCPlanCache)(nil)

func NewARCPlanCache(size int) (*ARCPlanCache, error) {
	cache, err := arc.NewARC[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &ARCPlanCache{cache: cache}, nil
}

func (a *ARCPlanCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, ok := a.cache.Get(key)
	return b, ok, nil
}

func (a *ARCPlanCache) Put(_ context.Context, key string, value []byte) error {
	a.cache.Add(key, value)
	return nil
}

// RedisPlanCache shares plans among service instances.
type RedisPlanCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ PlanCache = (*RedisPlanCache)(nil)

func NewRedisPlanCache(client *redis.Client, ttl time.Duration) *RedisPlanCache {
	return &RedisPlanCache{client: client, prefix: "semq:plan:", ttl: ttl}
}

func (r *RedisPlanCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisPlanCache) Put(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.prefix+key, value, r.ttl).Err()
}
