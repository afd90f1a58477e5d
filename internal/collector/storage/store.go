package storage

import (
	"context"

	"github.com/lugx/beacon/internal/collector/events"
)

// Store persists tracked events
type Store interface {
	Insert(ctx context.Context, event *events.TrackedEvent) error
	Ping(ctx context.Context) error
	Close() error
}
