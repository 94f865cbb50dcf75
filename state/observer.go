package state

import (
	"fmt"
	"reflect"
)

// Observer is notified synchronously, on the mutating goroutine, every time
// a room's occupant count changes.
type Observer interface {
	Update(room *Room) error
}

// ObserverFunc adapts a plain function to Observer. Functions have no
// identity, so every ObserverFunc attached is kept and none can be removed;
// attach a pointer when the observer must be detached later.
type ObserverFunc func(room *Room) error

func (f ObserverFunc) Update(room *Room) error {
	return f(room)
}

// AddObserver attaches o. Attaching the same observer twice is a no-op.
func (r *Room) AddObserver(o Observer) {
	if o == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.observers {
		if sameObserver(existing, o) {
			return
		}
	}
	r.observers = append(r.observers, o)
}

func (r *Room) RemoveObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.observers {
		if sameObserver(existing, o) {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

// notifyObservers stops at the first failing observer.
func (r *Room) notifyObservers(observers []Observer) error {
	for i, o := range observers {
		if err := o.Update(r); err != nil {
			r.logger.Warn().Err(err).Int("skipped", len(observers)-i-1).Msg("observer failed")
			return fmt.Errorf("room %d: notify observer: %w", r.id, err)
		}
	}
	return nil
}

func sameObserver(a, b Observer) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if va.Kind() == reflect.Func || !va.Type().Comparable() {
		return false
	}
	return a == b
}
