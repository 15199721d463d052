// Package store provides the local persistence port shared by the reactive
// stores: each store's state is serialized as a JSON envelope keyed by store
// name and schema version. A version mismatch discards the stale snapshot
// rather than crashing; the store then rehydrates from remote on next sync.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrSnapshotMissing indicates no snapshot exists for the store.
	ErrSnapshotMissing = errors.New("store: snapshot missing")
	// ErrSnapshotVersion indicates a snapshot with an incompatible schema
	// version was found and discarded.
	ErrSnapshotVersion = errors.New("store: snapshot schema version mismatch")
)

// Snapshots persists and restores store state.
type Snapshots interface {
	Save(ctx context.Context, name string, version int, state any) error
	Load(ctx context.Context, name string, version int, dest any) error
	Delete(ctx context.Context, name string) error
}

type envelope struct {
	Store   string          `json:"store"`
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
	SavedAt time.Time       `json:"saved_at"`
}

// RedisSnapshots keeps snapshots in Redis under makercost:snapshot:<name>.
type RedisSnapshots struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSnapshots wraps a Redis client as a snapshot store. A zero ttl
// keeps snapshots indefinitely.
func NewRedisSnapshots(client *redis.Client, ttl time.Duration) *RedisSnapshots {
	return &RedisSnapshots{client: client, ttl: ttl}
}

func snapshotKey(name string) string {
	return fmt.Sprintf("makercost:snapshot:%s", name)
}

// Save serializes the state into a versioned envelope.
func (s *RedisSnapshots) Save(ctx context.Context, name string, version int, state any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: marshal snapshot %s: %w", name, err)
	}
	raw, err := json.Marshal(envelope{Store: name, Version: version, Data: data, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("store: marshal envelope %s: %w", name, err)
	}
	if err := s.client.Set(ctx, snapshotKey(name), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store: save snapshot %s: %w", name, err)
	}
	return nil
}

// Load restores the state, discarding snapshots with a mismatched version.
func (s *RedisSnapshots) Load(ctx context.Context, name string, version int, dest any) error {
	raw, err := s.client.Get(ctx, snapshotKey(name)).Bytes()
	if err == redis.Nil {
		return ErrSnapshotMissing
	}
	if err != nil {
		return fmt.Errorf("store: load snapshot %s: %w", name, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Corrupt snapshots are treated like a version mismatch: drop them.
		_ = s.client.Del(ctx, snapshotKey(name)).Err()
		return ErrSnapshotVersion
	}
	if env.Version != version {
		_ = s.client.Del(ctx, snapshotKey(name)).Err()
		return ErrSnapshotVersion
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return fmt.Errorf("store: decode snapshot %s: %w", name, err)
	}
	return nil
}

// Delete removes the snapshot.
func (s *RedisSnapshots) Delete(ctx context.Context, name string) error {
	return s.client.Del(ctx, snapshotKey(name)).Err()
}

// MemorySnapshots is an in-process snapshot store for tests and for running
// without Redis.
type MemorySnapshots struct {
	mu   sync.Mutex
	data map[string]envelope
}

// NewMemorySnapshots constructs an empty in-memory snapshot store.
func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{data: make(map[string]envelope)}
}

func (s *MemorySnapshots) Save(ctx context.Context, name string, version int, state any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: marshal snapshot %s: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = envelope{Store: name, Version: version, Data: data, SavedAt: time.Now().UTC()}
	return nil
}

func (s *MemorySnapshots) Load(ctx context.Context, name string, version int, dest any) error {
	s.mu.Lock()
	env, ok := s.data[name]
	if ok && env.Version != version {
		delete(s.data, name)
	}
	s.mu.Unlock()
	if !ok {
		return ErrSnapshotMissing
	}
	if env.Version != version {
		return ErrSnapshotVersion
	}
	return json.Unmarshal(env.Data, dest)
}

func (s *MemorySnapshots) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, name)
	return nil
}
