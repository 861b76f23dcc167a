// Package distlock serialises mutations of a shared resource across planner
// replicas. Redis is preferred; Postgres advisory locks cover deployments
// without Redis; the in-process lock serves single-node runs and tests.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned by Do when another holder owns the lock.
var ErrNotAcquired = errors.New("lock held by another holder")

// ErrLockLost is returned by Do when a lease could not be renewed while fn ran.
var ErrLockLost = errors.New("lock lost while held")

// DistLock is a single-use lock handle. Create one handle per critical section.
type DistLock interface {
	// Acquire tries to take the lock without blocking.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock back if this handle still owns it.
	Release(ctx context.Context) error
}

// Lease is implemented by locks that expire unless renewed. Do renews a lease
// for as long as its critical section runs.
type Lease interface {
	TTL() time.Duration
	Extend(ctx context.Context, ttl time.Duration) error
}

// Factory hands out lock handles by key.
type Factory interface {
	Lock(key string) DistLock
}

// NewFactory picks the backend: Redis when a client is given, else Postgres
// when a DB is given, else an in-process lock table.
func NewFactory(redisClient *redis.Client, db *sql.DB, ttl time.Duration) Factory {
	switch {
	case redisClient != nil:
		return redisFactory{client: redisClient, ttl: ttl}
	case db != nil:
		return pgFactory{db: db}
	default:
		return NewLocalFactory()
	}
}

type redisFactory struct {
	client *redis.Client
	ttl    time.Duration
}

func (f redisFactory) Lock(key string) DistLock { return NewRedisLock(f.client, key, f.ttl) }

type pgFactory struct{ db *sql.DB }

func (f pgFactory) Lock(key string) DistLock { return NewPGAdvisoryLock(f.db, key) }

// retryInterval is how often Do polls a held lock while waiting.
const retryInterval = 50 * time.Millisecond

// Do runs fn while holding lock, polling for up to wait if it is taken. It
// returns ErrNotAcquired without running fn when the wait runs out. Release
// uses a fresh context so a cancelled request still frees the lock.
func Do(ctx context.Context, lock DistLock, wait time.Duration, fn func(ctx context.Context) error) error {
	deadline := time.Now().Add(wait)
	for {
		ok, err := lock.Acquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lock.Release(rctx)
	}()

	lease, ok := lock.(Lease)
	if !ok || lease.TTL() <= 0 {
		return fn(ctx)
	}

	fctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lost := make(chan struct{})
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		renew(fctx, lease, done, lost, cancel)
	}()

	err := fn(fctx)
	close(done)
	wg.Wait()

	select {
	case <-lost:
		return errors.Join(ErrLockLost, err)
	default:
		return err
	}
}

// renew extends lease every third of its TTL until done is closed. A failed
// extension closes lost and cancels the critical section.
func renew(ctx context.Context, lease Lease, done <-chan struct{}, lost chan<- struct{}, cancel context.CancelFunc) {
	ttl := lease.TTL()
	interval := ttl / 3
	if interval <= 0 {
		interval = ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lease.Extend(ctx, ttl); err != nil {
				if ctx.Err() != nil {
					return
				}
				close(lost)
				cancel()
				return
			}
		}
	}
}

// PGAdvisoryLock holds a session-scoped advisory lock. The connection is
// pinned between Acquire and Release because the lock belongs to the session;
// the lock also drops if that connection dies.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewPGAdvisoryLock derives a stable lock id from key.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("advisory lock conn: %w", err)
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("advisory lock %d: %w", l.lockID, err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Close()
		l.conn = nil
	}()
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}

// LocalFactory is an in-process lock table keyed by name.
type LocalFactory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalFactory creates an empty lock table.
func NewLocalFactory() *LocalFactory {
	return &LocalFactory{held: make(map[string]struct{})}
}

func (f *LocalFactory) Lock(key string) DistLock { return &localLock{f: f, key: key} }

type localLock struct {
	f     *LocalFactory
	key   string
	owned bool
}

func (l *localLock) Acquire(context.Context) (bool, error) {
	l.f.mu.Lock()
	defer l.f.mu.Unlock()
	if _, taken := l.f.held[l.key]; taken {
		return false, nil
	}
	l.f.held[l.key] = struct{}{}
	l.owned = true
	return true, nil
}

func (l *localLock) Release(context.Context) error {
	if !l.owned {
		return nil
	}
	l.f.mu.Lock()
	delete(l.f.held, l.key)
	l.f.mu.Unlock()
	l.owned = false
	return nil
}
