// Package distlock provides the per-organization cycle locks used by
// the sequencer and mailbox poller so that only one worker instance
// processes an organization at a time. Redis is the preferred backend;
// without it, Postgres advisory locks cover the single-database case.
package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is a non-blocking, single-holder lock. Instances are not
// goroutine-safe; each cycle creates its own.
type DistLock interface {
	// Acquire tries to take the lock, returning false when another
	// holder has it.
	Acquire(ctx context.Context) (bool, error)
	// Release frees the lock if this instance still owns it.
	Release(ctx context.Context) error
}

// NewLock picks the best available backend: Redis when a client is
// configured (works across hosts, TTL covers crashed holders),
// otherwise a Postgres advisory lock (session-scoped, released when
// the connection drops).
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// PGAdvisoryLock implements DistLock on pg_try_advisory_lock /
// pg_advisory_unlock. Advisory locks are session-scoped, so the lock
// checks out one pooled connection on Acquire and holds it until
// Release runs the unlock on that same connection. Running the two
// statements through the pool at large would lock on one connection
// and unlock on another, leaving the lock held by an idle session.
type PGAdvisoryLock struct {
	db     *sql.DB
	conn   *sql.Conn
	lockID int64
}

// NewPGAdvisoryLock derives a deterministic 64-bit lock ID from the key
// so every worker maps "sequencer:<org>" to the same advisory slot.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire is non-blocking: pg_try_advisory_lock returns immediately.
// On success the connection stays pinned until Release.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// Release frees the advisory lock on the pinned connection and returns
// the connection to the pool. Without a prior successful Acquire it is
// a no-op.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	closeErr := l.conn.Close()
	l.conn = nil
	if err != nil {
		return err
	}
	return closeErr
}
