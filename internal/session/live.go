package session

import "sync"

// Live shares one session between concurrent front-ends. Reads run under a
// shared lock; updates are serialized and announced to subscribers after
// the lock is released.
type Live struct {
	mu      sync.RWMutex
	current *Session

	subMu sync.Mutex
	subs  []func(Snapshot)
}

func NewLive(s *Session) *Live {
	return &Live{current: s}
}

// Read runs fn with shared access. fn must not modify the session.
func (l *Live) Read(fn func(s *Session)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fn(l.current)
}

// Update runs fn with exclusive access. Subscribers are notified with a
// fresh snapshot when fn succeeds.
func (l *Live) Update(fn func(s *Session) error) error {
	l.mu.Lock()
	err := fn(l.current)
	var snap Snapshot
	if err == nil {
		snap = l.current.Snapshot()
	}
	l.mu.Unlock()

	if err == nil {
		l.notify(snap)
	}
	return err
}

// Swap replaces the session, for example after reloading it from disk.
func (l *Live) Swap(s *Session) {
	l.mu.Lock()
	l.current = s
	snap := s.Snapshot()
	l.mu.Unlock()
	l.notify(snap)
}

// Snapshot copies the current state under the read lock.
func (l *Live) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current.Snapshot()
}

// OnChange registers fn to receive a snapshot after every successful
// update.
func (l *Live) OnChange(fn func(Snapshot)) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	l.subs = append(l.subs, fn)
}

func (l *Live) notify(snap Snapshot) {
	l.subMu.Lock()
	subs := append([]func(Snapshot){}, l.subs...)
	l.subMu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}
