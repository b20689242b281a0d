package cache

import (
	"context"
	"errors"
	"time"

	"github.com/Dan9191/bureau-scoring/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrStoreUnavailable is returned by stores that cannot reach their backend
var ErrStoreUnavailable = errors.New("score store unavailable")

// Key identifies a cached score
type Key struct {
	Provider  models.Provider
	SubjectID string
}

func (k Key) String() string {
	return string(k.Provider) + "|" + k.SubjectID
}

// Store persists score results with an expiry. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key Key) (*models.ScoreResult, bool, error)
	Set(ctx context.Context, key Key, result *models.ScoreResult, ttl time.Duration) error
	// Purge removes expired entries and returns how many were removed.
	Purge(ctx context.Context) (int64, error)
}

// Request is one scoring request as seen by the cache
type Request struct {
	SubjectID    string
	Provider     models.Provider
	ForceRefresh bool
	Debug        bool
}

// Key returns the cache key of the request
func (r Request) Key() Key {
	return Key{Provider: r.Provider, SubjectID: r.SubjectID}
}

// ComputeFunc produces a fresh result on a cache miss
type ComputeFunc func(ctx context.Context) (*models.ScoreResult, error)

// Cache wraps score computation with a read-through, write-through store
type Cache struct {
	store Store
	ttl   time.Duration
	group singleflight.Group
	log   *logrus.Logger
}

// New initializes a new score cache
func New(store Store, ttl time.Duration, log *logrus.Logger) *Cache {
	return &Cache{store: store, ttl: ttl, log: log}
}

// TTL returns how long computed results are kept
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Score returns the cached result for the request or computes, stores and returns
// a fresh one. Concurrent misses for the same key share one computation.
// A forced refresh skips the lookup and overwrites the stored entry.
func (c *Cache) Score(ctx context.Context, req Request, compute ComputeFunc) (*models.ScoreResult, error) {
	key := req.Key()

	if !req.ForceRefresh {
		cached, ok, err := c.store.Get(ctx, key)
		switch {
		case err != nil:
			c.log.WithError(err).WithField("provider", key.Provider).Warn("score cache read failed, recomputing")
		case ok:
			out := cached.Clone()
			out.Metadata.FromCache = true
			return out, nil
		}
	}

	flight := key.String()
	if req.ForceRefresh {
		flight = "refresh|" + flight
	}
	// The flight is shared, so one caller going away must not cancel it for the others.
	// The upstream client's own timeout still bounds it.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(flight, func() (interface{}, error) {
		result, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}
		if result.Cacheable() {
			if err := c.store.Set(flightCtx, key, result, c.ttl); err != nil {
				c.log.WithError(err).WithField("provider", key.Provider).Warn("score cache write failed")
			}
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	out := v.(*models.ScoreResult).Clone()
	out.Metadata.FromCache = false
	return out, nil
}
