package services

import "sync"

// codeLocks serializes commands per organization code. Commands against
// different codes proceed in parallel; two commands against the same code
// queue behind one mutex, which gives the store a single writer per key
// without any cross-code contention.
type codeLocks struct {
	mu    sync.Mutex
	locks map[string]*codeLock
}

type codeLock struct {
	mu   sync.Mutex
	refs int
}

func newCodeLocks() *codeLocks {
	return &codeLocks{locks: make(map[string]*codeLock)}
}

func (c *codeLocks) acquire(code string) *codeLock {
	c.mu.Lock()
	l, ok := c.locks[code]
	if !ok {
		l = &codeLock{}
		c.locks[code] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return l
}

func (c *codeLocks) release(code string, l *codeLock) {
	l.mu.Unlock()

	c.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(c.locks, code)
	}
	c.mu.Unlock()
}
