package limiter

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	fails        int
	firstFail    time.Time
	blockedUntil time.Time
}

// Memory is a process-local limiter for single-instance servers and tests.
type Memory struct {
	mu  sync.Mutex
	set Settings
	m   map[string]*memEntry
	now func() time.Time
}

// NewMemory constructs an in-process limiter.
func NewMemory(set Settings) *Memory {
	return &Memory{set: set.withDefaults(), m: make(map[string]*memEntry), now: time.Now}
}

func memKey(subject string, peerHash []byte) string { return subject + "\x00" + string(peerHash) }

func (l *Memory) Allow(ctx context.Context, subject string, peerHash []byte) (bool, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.m[memKey(subject, peerHash)]
	if !ok {
		return true, 0, nil
	}
	if wait := e.blockedUntil.Sub(l.now()); wait > 0 {
		return false, wait, nil
	}
	return true, 0, nil
}

func (l *Memory) Success(ctx context.Context, subject string, peerHash []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	delete(l.m, memKey(subject, peerHash))
	l.mu.Unlock()
	return nil
}

func (l *Memory) Failure(ctx context.Context, subject string, peerHash []byte) (bool, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	k := memKey(subject, peerHash)
	e, ok := l.m[k]
	if !ok || now.Sub(e.firstFail) > l.set.Window {
		e = &memEntry{firstFail: now}
		l.m[k] = e
	}
	e.fails++
	if e.fails >= l.set.MaxFails {
		e.fails = 0
		e.firstFail = now
		e.blockedUntil = now.Add(l.set.BlockFor)
		return true, l.set.BlockFor, nil
	}
	return false, 0, nil
}

var (
	_ Limiter = (*PG)(nil)
	_ Limiter = (*Redis)(nil)
	_ Limiter = (*Memory)(nil)
)
