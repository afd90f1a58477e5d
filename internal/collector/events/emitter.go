package events

// EventEmitter receives events after they are stored.
// Emit must not block the request path; failures are logged by the implementation.
type EventEmitter interface {
	Emit(event *TrackedEvent)
	Close() error
}

// NoopEmitter discards everything. Used when no secondary sink is configured.
type NoopEmitter struct{}

func (n *NoopEmitter) Emit(event *TrackedEvent) {}

func (n *NoopEmitter) Close() error { return nil }
