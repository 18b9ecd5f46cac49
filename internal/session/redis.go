package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ecomarket/ecobot/internal/flow"
)

// DefaultKeyPrefix namespaces session keys.
const DefaultKeyPrefix = "ecobot:session:"

const (
	// DefaultLockTTL bounds how long a crashed holder blocks a conversation.
	// It must outlast the slowest message, LLM retries included.
	DefaultLockTTL = 2 * time.Minute

	lockRetryInterval = 25 * time.Millisecond
	lockSuffix        = ":lock"
)

// releaseLock deletes a lock only while it still carries the holder's token.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisStore keeps flow state in Redis with a per-conversation TTL, so
// several server replicas can serve the same conversation.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	// LockTTL is the lease of a conversation lock.
	LockTTL time.Duration
	closed  atomic.Bool
}

// NewRedisStore creates a RedisStore on an existing client. The store owns
// the client and closes it on Close.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, LockTTL: DefaultLockTTL}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Load(ctx context.Context, id string) (flow.State, error) {
	if s.closed.Load() {
		return flow.State{}, ErrClosed
	}
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return flow.State{}, nil
	}
	if err != nil {
		return flow.State{}, fmt.Errorf("loading session %s: %w", id, err)
	}

	var state flow.State
	if err := json.Unmarshal(val, &state); err != nil {
		return flow.State{}, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return state, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, state flow.State) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if state.Phase() == flow.PhaseIdle {
		return s.Delete(ctx, id)
	}
	val, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", id, err)
	}
	if err := s.client.Set(ctx, s.key(id), val, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving session %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

// Lock takes a leased lock on id with SET NX PX, polling until it is free.
// Every replica sharing the Redis database sees the same lock. A holder
// that dies releases it when the lease runs out.
func (s *RedisStore) Lock(ctx context.Context, id string) (func(), error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	key := s.key(id) + lockSuffix
	token := uuid.NewString()

	for {
		ok, err := s.client.SetNX(ctx, key, token, s.LockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("locking session %s: %w", id, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("locking session %s: %w", id, ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}

	return func() {
		// Released even when the request context is already done.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		releaseLock.Run(rctx, s.client, []string{key}, token)
	}, nil
}

func (s *RedisStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.client.Close()
}
