package coffer

import "sync"

// storeLocks serializes structural changes per store id. Entries are
// reference-counted and removed once the last holder releases, so the
// map does not grow with the number of stores ever touched.
type storeLocks struct {
	mu    sync.Mutex
	locks map[string]*storeLock
}

type storeLock struct {
	mu   sync.Mutex
	refs int
}

func newStoreLocks() *storeLocks {
	return &storeLocks{locks: make(map[string]*storeLock)}
}

// lock acquires the mutex for the given store id, creating it on first use.
func (s *storeLocks) lock(storeID string) {
	s.mu.Lock()
	l, ok := s.locks[storeID]
	if !ok {
		l = &storeLock{}
		s.locks[storeID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
}

// unlock releases the mutex for the given store id and drops the entry
// when no other holder remains.
func (s *storeLocks) unlock(storeID string) {
	s.mu.Lock()
	l := s.locks[storeID]
	l.refs--
	if l.refs == 0 {
		delete(s.locks, storeID)
	}
	s.mu.Unlock()

	l.mu.Unlock()
}
