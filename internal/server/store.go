package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/user/securemsg/internal/keyserver"
)

// ErrNotFound is returned by stores when nothing is held for an address.
var ErrNotFound = errors.New("server: not found")

// Store holds published public keys and pending messages, one of each per address.
type Store interface {
	PutKey(ctx context.Context, email string, rec keyserver.KeyRecord) error
	GetKey(ctx context.Context, email string) (keyserver.KeyRecord, error)
	PutMessage(ctx context.Context, email string, msg keyserver.Message) error
	GetMessage(ctx context.Context, email string) (keyserver.Message, error)
	Close() error
}

// StoreConfig selects and configures a Store.
type StoreConfig struct {
	Kind       string // memory | redis
	MessageTTL time.Duration
	RedisAddr  string
	RedisDB    int
	Prefix     string
}

// NewStore builds the store named by cfg.Kind. Redis connectivity is checked with a ping.
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Kind {
	case "", "memory":
		return NewMemoryStore(cfg.MessageTTL), nil
	case "redis":
		s := NewRedisStore(cfg.RedisAddr, cfg.RedisDB, cfg.Prefix, cfg.MessageTTL)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store kind: %s", cfg.Kind)
	}
}

func normalize(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// MemoryStore keeps keys forever and messages for a TTL, in process.
type MemoryStore struct {
	keys       *gocache.Cache
	messages   *gocache.Cache
	messageTTL time.Duration
}

// NewMemoryStore creates a store whose messages expire after messageTTL (0 keeps them).
func NewMemoryStore(messageTTL time.Duration) *MemoryStore {
	ttl := messageTTL
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &MemoryStore{
		keys:       gocache.New(gocache.NoExpiration, 0),
		messages:   gocache.New(ttl, time.Minute),
		messageTTL: ttl,
	}
}

func (m *MemoryStore) PutKey(_ context.Context, email string, rec keyserver.KeyRecord) error {
	m.keys.Set(normalize(email), rec, gocache.NoExpiration)
	return nil
}

func (m *MemoryStore) GetKey(_ context.Context, email string) (keyserver.KeyRecord, error) {
	v, ok := m.keys.Get(normalize(email))
	if !ok {
		return keyserver.KeyRecord{}, ErrNotFound
	}
	return v.(keyserver.KeyRecord), nil
}

func (m *MemoryStore) PutMessage(_ context.Context, email string, msg keyserver.Message) error {
	m.messages.Set(normalize(email), msg, m.messageTTL)
	return nil
}

func (m *MemoryStore) GetMessage(_ context.Context, email string) (keyserver.Message, error) {
	v, ok := m.messages.Get(normalize(email))
	if !ok {
		return keyserver.Message{}, ErrNotFound
	}
	return v.(keyserver.Message), nil
}

func (m *MemoryStore) Close() error {
	m.keys.Flush()
	m.messages.Flush()
	return nil
}

// RedisStore keeps records as JSON strings under <prefix>key:<email> and <prefix>msg:<email>.
type RedisStore struct {
	c          *redis.Client
	prefix     string
	messageTTL time.Duration
}

func NewRedisStore(addr string, db int, prefix string, messageTTL time.Duration) *RedisStore {
	return &RedisStore{
		c:          redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		prefix:     prefix,
		messageTTL: messageTTL,
	}
}

func (r *RedisStore) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *RedisStore) PutKey(ctx context.Context, email string, rec keyserver.KeyRecord) error {
	return r.set(ctx, r.prefix+"key:"+normalize(email), rec, 0)
}

func (r *RedisStore) GetKey(ctx context.Context, email string) (keyserver.KeyRecord, error) {
	var rec keyserver.KeyRecord
	err := r.get(ctx, r.prefix+"key:"+normalize(email), &rec)
	return rec, err
}

func (r *RedisStore) PutMessage(ctx context.Context, email string, msg keyserver.Message) error {
	return r.set(ctx, r.prefix+"msg:"+normalize(email), msg, r.messageTTL)
}

func (r *RedisStore) GetMessage(ctx context.Context, email string) (keyserver.Message, error) {
	var msg keyserver.Message
	err := r.get(ctx, r.prefix+"msg:"+normalize(email), &msg)
	return msg, err
}

func (r *RedisStore) Close() error { return r.c.Close() }

func (r *RedisStore) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.c.Set(ctx, key, b, ttl).Err()
}

func (r *RedisStore) get(ctx context.Context, key string, v any) error {
	b, err := r.c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
