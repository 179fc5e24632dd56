// Package registry resolves fleet-side vehicle context for a device
// identity. Contexts live in Redis as JSON, keyed by namespace:identity,
// with an in-process cache and optional pub/sub invalidation.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/acmgroup/gps-ingestion/internal/model"
)

// ErrNotFound means the device is not registered. Callers treat this as
// "no enrichment", not as a failure.
var ErrNotFound = errors.New("registry: vehicle not found")

type VehicleRegistry interface {
	Lookup(ctx context.Context, deviceID string) (*model.VehicleContext, error)
}

type Opts struct {
	Addr              string
	Password          string
	Namespace         string
	InvalidateChannel string
	DB                int
	UsePubSub         bool
	Timeout           time.Duration
}

type redisRegistry struct {
	rdb       *redis.Client
	nsPrefix  string
	subject   string
	usePubSub bool
	memCache  sync.Map
}

func NewRedisRegistry(o Opts) VehicleRegistry {
	rdb := redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  o.Timeout,
		ReadTimeout:  o.Timeout,
		WriteTimeout: o.Timeout,
	})
	r := &redisRegistry{
		rdb:       rdb,
		nsPrefix:  firstNonEmpty(o.Namespace, "vehicle"),
		subject:   firstNonEmpty(o.InvalidateChannel, "vehicles:invalidate"),
		usePubSub: o.UsePubSub,
	}
	if r.usePubSub {
		go r.listenInvalidations(context.Background())
	}
	return r
}

func (r *redisRegistry) key(deviceID string) (string, error) {
	if strings.TrimSpace(deviceID) == "" {
		return "", errors.New("registry: empty device identity")
	}
	return r.nsPrefix + ":" + deviceID, nil
}

func (r *redisRegistry) Lookup(ctx context.Context, deviceID string) (*model.VehicleContext, error) {
	k, err := r.key(deviceID)
	if err != nil {
		return nil, err
	}
	if v, ok := r.memCache.Load(k); ok {
		return v.(*model.VehicleContext), nil
	}

	val, err := r.rdb.Get(ctx, k).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("registry: redis get %s: %w", k, err)
	}

	var vc model.VehicleContext
	if err := json.Unmarshal(val, &vc); err != nil {
		return nil, fmt.Errorf("registry: bad vehicle context at %s: %w", k, err)
	}
	r.memCache.Store(k, &vc)
	return &vc, nil
}

func (r *redisRegistry) listenInvalidations(ctx context.Context) {
	pubsub := r.rdb.Subscribe(ctx, r.subject)
	for msg := range pubsub.Channel() {
		payload := strings.TrimSpace(msg.Payload)
		if payload == "ALL" || payload == "" {
			r.memCache.Range(func(k, _ any) bool {
				r.memCache.Delete(k)
				return true
			})
			continue
		}
		r.memCache.Delete(r.nsPrefix + ":" + payload)
	}
}

func firstNonEmpty(s, def string) string {
	if strings.TrimSpace(s) != "" {
		return s
	}
	return def
}
