package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 10 * time.Minute

// Lock даёт запускать задачу только одному экземпляру сервиса одновременно.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFactory создаёт блокировку для задачи с именем job.
type LockFactory func(job string) Lock

// NopLocks выдаёт блокировки, которые всегда захватываются. Подходит для одного экземпляра.
func NopLocks(string) Lock {
	return nopLock{}
}

type nopLock struct{}

func (nopLock) Acquire(context.Context) (bool, error) { return true, nil }

func (nopLock) Release(context.Context) error { return nil }

// redisStore описывает операции Redis, нужные RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock реализует Lock через SET NX с TTL.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

// NewRedisLock создаёт блокировку в Redis по ключу key.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire пытается стать владельцем блокировки на время TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release снимает блокировку, только если она всё ещё принадлежит этому владельцу.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	value, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			l.owner = ""
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != l.owner {
		l.owner = ""
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.owner = ""
	return nil
}

// goRedisStore адаптирует клиент go-redis к redisStore.
type goRedisStore struct {
	client redis.UniversalClient
}

func (s goRedisStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s goRedisStore) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s goRedisStore) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

// RedisLocks возвращает фабрику блокировок с ключами prefix + имя задачи.
func RedisLocks(client redis.UniversalClient, prefix string, ttl time.Duration) LockFactory {
	store := goRedisStore{client: client}
	return func(job string) Lock {
		lock, err := NewRedisLock(store, prefix+job, ttl)
		if err != nil {
			panic(err)
		}
		return lock
	}
}
