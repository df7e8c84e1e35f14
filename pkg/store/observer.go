package store

import (
	"time"

	"github.com/latticedb/store/pkg/adapter"
	"github.com/latticedb/store/pkg/change"
	"github.com/latticedb/store/pkg/logging"
)

// Observer receives one Notification per transaction that produced a
// change (spec §4.8 "emits a single notification per transaction to
// registered observers").
type Observer func(change.Notification)

type observerEntry struct {
	id           uint64
	fn           Observer
	registeredAt time.Time
	lastNotified *time.Time
}

type observerDisposable struct {
	store *Store
	id    uint64
}

func (d *observerDisposable) Dispose() {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	for i, e := range d.store.observers {
		if e.id == d.id {
			d.store.observers = append(d.store.observers[:i], d.store.observers[i+1:]...)
			return
		}
	}
}

// Subscribe registers fn to receive future change notifications, returning
// a Disposable that unregisters it.
func (s *Store) Subscribe(fn Observer) adapter.Disposable {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextObserverID++
	s.observers = append(s.observers, &observerEntry{id: s.nextObserverID, fn: fn, registeredAt: time.Now()})
	return &observerDisposable{store: s, id: s.nextObserverID}
}

// notifyObservers delivers n to every currently registered observer and
// prunes observers that have sat idle (never notified) past the
// subscription TTL — an ambient cleanup the wire protocol never needs but
// a long-lived in-process Store does, to stop accumulating forgotten
// subscriptions (SPEC_FULL.md ambient stack addition; spec.md itself is
// silent on observer lifecycle).
func (s *Store) notifyObservers(n change.Notification) {
	s.mu.Lock()
	entries := append([]*observerEntry(nil), s.observers...)
	s.pruneIdleObserversLocked()
	s.mu.Unlock()

	for _, e := range entries {
		s.invokeObserver(e, n)
	}
}

func (s *Store) invokeObserver(e *observerEntry, n change.Notification) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("store: observer panicked", logging.Any("panic", r))
		}
	}()
	e.fn(n)
	now := time.Now()
	s.mu.Lock()
	e.lastNotified = &now
	s.mu.Unlock()
}

func (s *Store) pruneIdleObserversLocked() {
	if s.opts.SubscriptionTTL <= 0 {
		return
	}
	kept := s.observers[:0]
	now := time.Now()
	for _, e := range s.observers {
		if e.lastNotified == nil && now.Sub(e.registeredAt) > s.opts.SubscriptionTTL {
			continue
		}
		kept = append(kept, e)
	}
	s.observers = kept
}
