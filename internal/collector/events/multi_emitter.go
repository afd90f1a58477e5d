package events

import (
	"errors"
)

// MultiEmitter fans an event out to several emitters in order
type MultiEmitter struct {
	emitters []EventEmitter
}

func NewMultiEmitter(emitters ...EventEmitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

func (m *MultiEmitter) Emit(event *TrackedEvent) {
	for _, e := range m.emitters {
		e.Emit(event)
	}
}

// Len reports how many emitters are attached
func (m *MultiEmitter) Len() int {
	return len(m.emitters)
}

// Close closes every emitter, even after a failure, and joins the errors
func (m *MultiEmitter) Close() error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
