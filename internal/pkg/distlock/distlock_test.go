package distlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedisLock_ExclusiveUntilReleased(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()
	f := NewFactory(client, nil, time.Minute)

	a := f.Lock("plan:p-1")
	b := f.Lock("plan:p-1")

	ok, err := a.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if ok, _ := b.Acquire(ctx); ok {
		t.Fatal("second holder acquired a held lock")
	}
	if !mr.Exists("lock:plan:p-1") {
		t.Fatal("expected lock key in redis")
	}

	// a non-owner release must not free the lock
	if err := b.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if !mr.Exists("lock:plan:p-1") {
		t.Fatal("non-owner release removed the lock")
	}

	if err := a.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := b.Acquire(ctx); !ok {
		t.Fatal("lock not reacquirable after release")
	}
}

func TestRedisLock_TTLAndExtend(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	l := NewRedisLock(client, "plan:p-2", 10*time.Second)
	if ok, _ := l.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}
	if err := l.Extend(ctx, time.Minute); err != nil {
		t.Fatalf("extend: %v", err)
	}
	mr.FastForward(30 * time.Second)
	if !mr.Exists("lock:plan:p-2") {
		t.Fatal("extended lock expired early")
	}
	mr.FastForward(time.Minute)
	if err := l.Extend(ctx, time.Minute); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("extend after expiry: got %v", err)
	}
}

func TestPGAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	l := NewPGAdvisoryLock(db, "plan:p-3")
	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(\$1\)`).
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(`SELECT pg_advisory_unlock\(\$1\)`).
		WithArgs(l.lockID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	ok, err := l.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	if err := l.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPGAdvisoryLock_StableID(t *testing.T) {
	a := NewPGAdvisoryLock(nil, "plan:x")
	b := NewPGAdvisoryLock(nil, "plan:x")
	c := NewPGAdvisoryLock(nil, "plan:y")
	if a.lockID != b.lockID {
		t.Error("same key produced different lock ids")
	}
	if a.lockID == c.lockID {
		t.Error("different keys collided")
	}
}

func TestDo(t *testing.T) {
	f := NewLocalFactory()
	ctx := context.Background()

	held := f.Lock("k")
	if ok, _ := held.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}

	ran := false
	err := Do(ctx, f.Lock("k"), 0, func(context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, ErrNotAcquired) || ran {
		t.Fatalf("expected ErrNotAcquired without running, got err=%v ran=%v", err, ran)
	}

	_ = held.Release(ctx)
	boom := errors.New("boom")
	err = Do(ctx, f.Lock("k"), 0, func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	// Do released the lock even though fn failed
	if ok, _ := f.Lock("k").Acquire(ctx); !ok {
		t.Fatal("lock leaked after Do")
	}
}

func TestDo_WaitsForRelease(t *testing.T) {
	f := NewLocalFactory()
	ctx := context.Background()

	held := f.Lock("k")
	if ok, _ := held.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}
	go func() {
		time.Sleep(120 * time.Millisecond)
		_ = held.Release(ctx)
	}()

	ran := false
	err := Do(ctx, f.Lock("k"), 2*time.Second, func(context.Context) error {
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("expected fn to run after release, err=%v ran=%v", err, ran)
	}
}

func TestDo_RenewsRedisLeaseWhileRunning(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()
	f := NewFactory(client, nil, 300*time.Millisecond)

	err := Do(ctx, f.Lock("plan:p-3"), 0, func(ctx context.Context) error {
		for i := 0; i < 4; i++ {
			// real time for the renewer to tick, then push the redis clock
			// past what an unrenewed lease would survive
			time.Sleep(250 * time.Millisecond)
			mr.FastForward(200 * time.Millisecond)
			if !mr.Exists("lock:plan:p-3") {
				t.Errorf("lease expired during critical section (round %d)", i)
				return nil
			}
			if ok, _ := f.Lock("plan:p-3").Acquire(ctx); ok {
				t.Errorf("second holder entered critical section (round %d)", i)
				return nil
			}
		}
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if mr.Exists("lock:plan:p-3") {
		t.Fatal("lock not released after Do")
	}
}

func TestDo_CancelsWhenLeaseLost(t *testing.T) {
	client, mr := setupTestRedis(t)
	f := NewFactory(client, nil, 150*time.Millisecond)

	err := Do(context.Background(), f.Lock("plan:p-4"), 0, func(ctx context.Context) error {
		mr.Del("lock:plan:p-4")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			t.Error("critical section kept running after the lease was lost")
			return nil
		}
	})
	if !errors.Is(err, ErrLockLost) {
		t.Fatalf("expected ErrLockLost, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected fn to see cancellation, got %v", err)
	}
}
