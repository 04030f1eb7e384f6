/*
Package cache puts a Redis read-through cache in front of a store.Store.

PURPOSE:
  Templates are read on every requisition request (they shape every line
  item) but change rarely. Template reads are served from Redis; every
  template write bumps a version counter that is part of each cache key,
  so stale entries are never read again and simply expire.

KEYS:
  reqengine:templates:version          current version (INCR on write)
  reqengine:template:<id>:<version>    one template record (JSON)
  reqengine:templates:all:<version>    ListTemplates result (JSON)

INVALIDATION ACROSS INSTANCES:
  Bump publishes the new version on a channel. ListenForInvalidation lets
  other processes adopt it without waiting for their next write.

FAILURE MODE:
  Redis errors never fail a read: the call falls through to the wrapped
  store and the error is logged.

SEE ALSO:
  - store/store.go: Interface
*/
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/requisition-engine/store"
)

const (
	versionKey  = "reqengine:templates:version"
	bumpChannel = "reqengine.templates.bump"
)

var errMissing = errors.New("cache: record missing")

// Store caches template reads of the wrapped store. Requisition and run
// methods pass straight through.
type Store struct {
	store.Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// New wraps inner. A nil client disables caching.
func New(inner store.Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{Store: inner, client: client, ttl: ttl, logger: logger}
}

// =============================================================================
// VERSIONING
// =============================================================================

// Version returns the current cache version, initialising it when missing.
func (s *Store) Version(ctx context.Context) (int64, error) {
	if s.client == nil {
		return 0, nil
	}
	ver, err := s.client.Get(ctx, versionKey).Int64()
	if err == redis.Nil {
		if err := s.client.SetNX(ctx, versionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return s.client.Get(ctx, versionKey).Int64()
	}
	return ver, err
}

func (s *Store) buildKey(ctx context.Context, parts ...string) (string, error) {
	ver, err := s.Version(ctx)
	if err != nil {
		return "", err
	}
	return strings.Join(parts, ":") + ":" + strconv.FormatInt(ver, 10), nil
}

// Bump invalidates every cached template by moving to a new version.
func (s *Store) Bump(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	ver, err := s.client.Incr(ctx, versionKey).Result()
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, bumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation adopts versions bumped by other processes until
// ctx is done.
func (s *Store) ListenForInvalidation(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	pubsub := s.client.Subscribe(ctx, bumpChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ver, err := strconv.ParseInt(msg.Payload, 10, 64)
				if err != nil {
					continue
				}
				current, err := s.client.Get(ctx, versionKey).Int64()
				if err == nil && current >= ver {
					continue
				}
				_ = s.client.Set(ctx, versionKey, ver, 0).Err()
			}
		}
	}()
	return nil
}

// =============================================================================
// CACHED READS
// =============================================================================

// fetchJSON loads key into dest, or fills it from loader and caches it.
// loader returns errMissing for records that must not be cached.
func (s *Store) fetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	payload, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if err != redis.Nil {
		s.logger.Warn("template cache read failed", "key", key, "error", err)
	}

	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.logger.Warn("template cache write failed", "key", key, "error", err)
	}
	return json.Unmarshal(raw, dest)
}

// GetTemplate serves the template from Redis when cached.
func (s *Store) GetTemplate(ctx context.Context, id string) (*store.TemplateRecord, error) {
	if s.client == nil {
		return s.Store.GetTemplate(ctx, id)
	}
	key, err := s.buildKey(ctx, "reqengine", "template", id)
	if err != nil {
		s.logger.Warn("template cache unavailable", "error", err)
		return s.Store.GetTemplate(ctx, id)
	}

	var rec store.TemplateRecord
	err = s.fetchJSON(ctx, key, &rec, func(ctx context.Context) (any, error) {
		found, err := s.Store.GetTemplate(ctx, id)
		if err != nil {
			return nil, err
		}
		if found == nil {
			return nil, errMissing
		}
		return found, nil
	})
	if errors.Is(err, errMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListTemplates serves the template list from Redis when cached.
func (s *Store) ListTemplates(ctx context.Context) ([]store.TemplateRecord, error) {
	if s.client == nil {
		return s.Store.ListTemplates(ctx)
	}
	key, err := s.buildKey(ctx, "reqengine", "templates", "all")
	if err != nil {
		s.logger.Warn("template cache unavailable", "error", err)
		return s.Store.ListTemplates(ctx)
	}

	var out []store.TemplateRecord
	err = s.fetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.Store.ListTemplates(ctx)
	})
	return out, err
}

// =============================================================================
// INVALIDATING WRITES
// =============================================================================

// SaveTemplate writes through and bumps the cache version.
func (s *Store) SaveTemplate(ctx context.Context, rec store.TemplateRecord) error {
	if err := s.Store.SaveTemplate(ctx, rec); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// DeleteTemplate deletes through and bumps the cache version.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	if err := s.Store.DeleteTemplate(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Reset resets the wrapped store and bumps the cache version.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.Store.Reset(ctx); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Store) invalidate(ctx context.Context) {
	if err := s.Bump(ctx); err != nil {
		s.logger.Error("template cache invalidation failed", "error", err)
	}
}
