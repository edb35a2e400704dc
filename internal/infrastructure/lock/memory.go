// Package lock provides the LockManager implementations that serialize
// learning per cuisine and card generation per recipe
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	"go.uber.org/zap"
)

// MemoryLockManager serializes work within one process. Each key is a
// one-slot channel so waiting honours context cancellation.
type MemoryLockManager struct {
	mu          sync.Mutex
	keys        map[string]*keyLock
	nextToken   uint64
	waitTimeout time.Duration
	logger      *zap.Logger
}

type keyLock struct {
	sem   chan struct{}
	owner uint64
	refs  int
}

// NewMemoryLockManager creates an in-process lock manager. waitTimeout
// bounds how long Acquire blocks; zero waits for ctx alone.
func NewMemoryLockManager(waitTimeout time.Duration, logger *zap.Logger) *MemoryLockManager {
	return &MemoryLockManager{
		keys:        make(map[string]*keyLock),
		waitTimeout: waitTimeout,
		logger:      logger.Named("lock"),
	}
}

var _ outbound.LockManager = (*MemoryLockManager)(nil)

// Acquire implements outbound.LockManager
func (m *MemoryLockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (outbound.Lock, error) {
	waitCtx, cancel := withWaitTimeout(ctx, m.waitTimeout)
	defer cancel()

	kl := m.ref(key)

	select {
	case kl.sem <- struct{}{}:
	case <-waitCtx.Done():
		m.unref(key)
		return nil, waitError(ctx, key)
	}

	m.mu.Lock()
	m.nextToken++
	token := m.nextToken
	kl.owner = token
	m.mu.Unlock()

	l := &memoryLock{manager: m, key: key, token: token}
	if ttl > 0 {
		l.timer = time.AfterFunc(ttl, func() {
			if l.manager.release(key, token) == nil {
				m.logger.Warn("Lock expired before release", zap.String("key", key), zap.Duration("ttl", ttl))
			}
		})
	}
	return l, nil
}

func (m *MemoryLockManager) ref(key string) *keyLock {
	m.mu.Lock()
	defer m.mu.Unlock()

	kl, ok := m.keys[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		m.keys[key] = kl
	}
	kl.refs++
	return kl
}

// unref must be called with m.mu unlocked
func (m *MemoryLockManager) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unrefLocked(key)
}

func (m *MemoryLockManager) unrefLocked(key string) {
	kl := m.keys[key]
	kl.refs--
	if kl.refs == 0 {
		delete(m.keys, key)
	}
}

func (m *MemoryLockManager) release(key string, token uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kl, ok := m.keys[key]
	if !ok || kl.owner != token {
		return outbound.ErrLockNotHeld
	}

	kl.owner = 0
	<-kl.sem
	m.unrefLocked(key)
	return nil
}

type memoryLock struct {
	manager *MemoryLockManager
	key     string
	token   uint64
	timer   *time.Timer
}

func (l *memoryLock) Key() string { return l.key }

func (l *memoryLock) Release(context.Context) error {
	if l.timer != nil {
		l.timer.Stop()
	}
	return l.manager.release(l.key, l.token)
}

func withWaitTimeout(ctx context.Context, wait time.Duration) (context.Context, context.CancelFunc) {
	if wait <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, wait)
}

// waitError reports the caller's own cancellation as is and anything else
// as a lock timeout
func waitError(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return &TimeoutError{Key: key}
}

// TimeoutError names the key that could not be taken
type TimeoutError struct {
	Key string
}

func (e *TimeoutError) Error() string {
	return "timed out waiting for lock " + e.Key
}

// Is makes errors.Is(err, outbound.ErrLockTimeout) hold
func (e *TimeoutError) Is(target error) bool {
	return target == outbound.ErrLockTimeout
}

// IsTimeout reports whether err is a lock wait timeout
func IsTimeout(err error) bool {
	return errors.Is(err, outbound.ErrLockTimeout)
}
