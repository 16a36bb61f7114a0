package votes

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"flashvote/clock"
)

const DefaultWindow = 60 * time.Second

// WindowStore remembers which (source, subject) keys voted recently.
type WindowStore interface {
	// Remaining returns how long key stays blocked; zero means it may vote.
	Remaining(ctx context.Context, key string, now time.Time) (time.Duration, error)
	// Mark blocks key for d starting at now.
	Mark(ctx context.Context, key string, now time.Time, d time.Duration) error
}

// MemoryStore keeps the window in process memory. It is lost on restart and
// not shared between instances, so several instances under-enforce the limit.
type MemoryStore struct {
	mu      sync.Mutex
	expires map[string]time.Time
	marks   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{expires: make(map[string]time.Time)}
}

func (s *MemoryStore) Remaining(_ context.Context, key string, now time.Time) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.expires[key]
	if !ok || !until.After(now) {
		return 0, nil
	}
	return until.Sub(now), nil
}

func (s *MemoryStore) Mark(_ context.Context, key string, now time.Time, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expires[key] = now.Add(d)
	s.marks++
	// 每 1024 次寫入順手清一次過期 key，避免記憶體累積
	if s.marks%1024 == 0 {
		for k, until := range s.expires {
			if !until.After(now) {
				delete(s.expires, k)
			}
		}
	}
	return nil
}

// Len is the number of keys currently held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expires)
}

// RedisStore keeps the window in Redis with a TTL per key so every instance
// sees the same limit. Redis' clock is authoritative; now is ignored.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "vote:window:"}
}

func (s *RedisStore) Remaining(ctx context.Context, key string, _ time.Time) (time.Duration, error) {
	ttl, err := s.rdb.PTTL(ctx, s.prefix+key).Result()
	if err != nil {
		return 0, errors.Wrap(err, "read vote window")
	}
	// -2: key 不存在；-1: 沒有 TTL（不該發生，當成沒被擋）
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

func (s *RedisStore) Mark(ctx context.Context, key string, _ time.Time, d time.Duration) error {
	// NX: 已經有窗口就不延長
	err := s.rdb.SetNX(ctx, s.prefix+key, 1, d).Err()
	return errors.Wrap(err, "write vote window")
}

// keyLocks hands out one mutex per key while someone holds it.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Window rejects a second vote on the same subject from the same source
// until the window has elapsed.
type Window struct {
	store    WindowStore
	length   time.Duration
	clock    clock.Clock
	inflight keyLocks
}

func NewWindow(store WindowStore, length time.Duration, clk clock.Clock) *Window {
	if length <= 0 {
		length = DefaultWindow
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Window{store: store, length: length, clock: clk, inflight: keyLocks{locks: make(map[string]*keyLock)}}
}

func windowKey(sourceIP, subjectID string) string {
	return sourceIP + "|" + subjectID
}

// Hold serializes attempts of one source on one subject inside this process.
// The returned func releases it.
func (w *Window) Hold(sourceIP, subjectID string) func() {
	return w.inflight.lock(windowKey(sourceIP, subjectID))
}

// Check returns a *RateLimitError while the key is blocked.
func (w *Window) Check(ctx context.Context, sourceIP, subjectID string) error {
	left, err := w.store.Remaining(ctx, windowKey(sourceIP, subjectID), w.clock.Now())
	if err != nil {
		return err
	}
	if left <= 0 {
		return nil
	}
	return &RateLimitError{RetryAfter: retryAfterSeconds(left)}
}

// Mark starts a new window for the key.
func (w *Window) Mark(ctx context.Context, sourceIP, subjectID string) error {
	return w.store.Mark(ctx, windowKey(sourceIP, subjectID), w.clock.Now(), w.length)
}

func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}
