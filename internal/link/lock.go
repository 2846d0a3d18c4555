package link

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/errs"
)

// Locker serializes linking actions per entity. Lock blocks until every id
// is held or ctx is done; the returned func releases them and is safe to call
// more than once.
type Locker interface {
	Lock(ctx context.Context, ids ...string) (unlock func(), err error)
}

// lockKeys dedups and sorts ids so that every caller acquires overlapping
// sets in the same order.
func lockKeys(ids []string) []string {
	keys := slices.Clone(ids)
	slices.Sort(keys)
	return slices.Compact(keys)
}

// LocalLocker is an in-process Locker built on per-id channel semaphores.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker returns an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

func (l *LocalLocker) Lock(ctx context.Context, ids ...string) (func(), error) {
	keys := lockKeys(ids)
	held := make([]string, 0, len(keys))
	for _, k := range keys {
		s := l.ref(k)
		select {
		case s.ch <- struct{}{}:
			held = append(held, k)
		case <-ctx.Done():
			l.unref(k)
			l.release(held)
			return nil, eris.Wrapf(ctx.Err(), "link: acquire lock on %s", k)
		}
	}
	var once sync.Once
	return func() { once.Do(func() { l.release(held) }) }, nil
}

func (l *LocalLocker) ref(k string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[k]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[k] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) unref(k string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[k]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, k)
	}
}

func (l *LocalLocker) release(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.mu.Lock()
		s := l.slots[keys[i]]
		l.mu.Unlock()
		<-s.ch
		l.unref(keys[i])
	}
}

// releaseScript deletes a lock key only if it still holds our token, so an
// expired lock re-acquired by another process is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared across processes. Each id maps to a key set
// with NX and a TTL, so a crashed holder cannot block others forever.
type RedisLocker struct {
	client  *redis.Client
	ttl     time.Duration
	prefix  string
	minPoll time.Duration
	maxPoll time.Duration
}

// NewRedisLocker returns a RedisLocker whose locks expire after ttl.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client:  client,
		ttl:     ttl,
		prefix:  "basset:lock:",
		minPoll: 10 * time.Millisecond,
		maxPoll: 200 * time.Millisecond,
	}
}

// NewRedisClient parses url and verifies the server is reachable.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "link: parse redis url")
	}
	opts.DialTimeout = 5 * time.Second
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrap(errs.Unavailable("redis ping", err), "link: connect redis")
	}
	return client, nil
}

func (l *RedisLocker) Lock(ctx context.Context, ids ...string) (func(), error) {
	token := uuid.NewString()
	keys := lockKeys(ids)
	held := make([]string, 0, len(keys))
	for _, k := range keys {
		if err := l.acquire(ctx, l.prefix+k, token); err != nil {
			l.release(held, token)
			return nil, err
		}
		held = append(held, l.prefix+k)
	}
	var once sync.Once
	return func() { once.Do(func() { l.release(held, token) }) }, nil
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	wait := l.minPoll
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return eris.Wrapf(ctx.Err(), "link: acquire lock %s", key)
			}
			return eris.Wrap(errs.Unavailable("redis setnx", err), "link: acquire lock")
		}
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return eris.Wrapf(ctx.Err(), "link: acquire lock %s", key)
		case <-timer.C:
		}
		wait = min(wait*2, l.maxPoll)
	}
}

func (l *RedisLocker) release(keys []string, token string) {
	// The caller's context may already be cancelled; release regardless.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(keys) - 1; i >= 0; i-- {
		if err := releaseScript.Run(ctx, l.client, []string{keys[i]}, token).Err(); err != nil {
			zap.L().Warn("link: release lock", zap.String("key", keys[i]), zap.Error(err))
		}
	}
}
