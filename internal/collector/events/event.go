package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/lugx/beacon/pkg/types"
)

// UnknownUserAgent is recorded when the request carries no User-Agent header
const UnknownUserAgent = "Unknown"

// TrackedEvent is one accepted /track request, as stored and emitted
type TrackedEvent struct {
	ID        uuid.UUID `json:"id"`
	RequestID string    `json:"request_id"`
	EventType string    `json:"event_type"`
	PageURL   string    `json:"page_url"`
	UserAgent string    `json:"user_agent"`
	ClientIP  string    `json:"client_ip,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTrackedEvent stamps record with a fresh id and the current UTC time
func NewTrackedEvent(record types.EventRecord, userAgent, requestID string) *TrackedEvent {
	if userAgent == "" {
		userAgent = UnknownUserAgent
	}
	return &TrackedEvent{
		ID:        uuid.New(),
		RequestID: requestID,
		EventType: record.EventType,
		PageURL:   record.PageURL,
		UserAgent: userAgent,
		Timestamp: time.Now().UTC(),
	}
}
