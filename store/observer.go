package store

// Observer receives the new snapshot after every successful mutation.
// Observers run synchronously on the mutating goroutine and must not mutate
// the store from within OnSnapshot.
type Observer interface {
	OnSnapshot(snap Snapshot)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(snap Snapshot)

// OnSnapshot calls f(snap)
func (f ObserverFunc) OnSnapshot(snap Snapshot) {
	f(snap)
}

type observerEntry struct {
	id       int
	observer Observer
}

// Subscribe registers an observer and returns a function removing it.
// Observers are notified in subscription order.
func (s *Store) Subscribe(observer Observer) (unsubscribe func()) {
	s.mu.Lock()
	s.nextObserverID++
	id := s.nextObserverID
	s.observers = append(s.observers, observerEntry{id: id, observer: observer})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, entry := range s.observers {
			if entry.id == id {
				observers := make([]observerEntry, 0, len(s.observers)-1)
				observers = append(observers, s.observers[:i]...)
				s.observers = append(observers, s.observers[i+1:]...)
				return
			}
		}
	}
}

// ObserverCount returns the number of subscribed observers
func (s *Store) ObserverCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}
