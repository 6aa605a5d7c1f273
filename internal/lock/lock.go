// Package lock serializes turns per conversation. Turns for different
// conversations run fully parallel; a second turn for the same
// conversation must not start until the prior turn has committed.
package lock

import (
	"context"
	"sync"
)

// ConversationLocker acquires an exclusive per-conversation lock for
// the duration of one orchestrated turn.
type ConversationLocker interface {
	// Lock blocks until the conversation lock is held or ctx is done.
	// The returned function releases the lock.
	Lock(ctx context.Context, conversationID string) (func(), error)
}

// KeyedMutex is the in-process ConversationLocker. It is sufficient for
// single-replica deployments; multi-replica deployments use RedisLocker.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*entry)}
}

// Lock implements ConversationLocker.
func (m *KeyedMutex) Lock(ctx context.Context, conversationID string) (func(), error) {
	m.mu.Lock()
	e, ok := m.entries[conversationID]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		m.entries[conversationID] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return func() { m.release(conversationID, e) }, nil
	case <-ctx.Done():
		m.drop(conversationID, e)
		return nil, ctx.Err()
	}
}

func (m *KeyedMutex) release(conversationID string, e *entry) {
	<-e.ch
	m.drop(conversationID, e)
}

func (m *KeyedMutex) drop(conversationID string, e *entry) {
	m.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, conversationID)
	}
	m.mu.Unlock()
}
