package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() *TrackedEvent {
	return &TrackedEvent{
		ID:        uuid.MustParse("6f1c2a3b-4d5e-4f60-8a9b-0c1d2e3f4a5b"),
		RequestID: "req-42",
		EventType: "page_view",
		PageURL:   "/home",
		UserAgent: "Mozilla/5.0",
		ClientIP:  "203.0.113.7",
		Timestamp: time.Date(2025, 3, 1, 12, 30, 45, 123_000_000, time.UTC),
	}
}

func TestNewTemplateFormatter_Errors(t *testing.T) {
	tests := []struct {
		template string
		errText  string
	}{
		{"", "template cannot be empty"},
		{"{event_type", "unclosed placeholder at position 0"},
		{"x {}", "empty placeholder at position 2"},
		{"{status_code}", "unknown placeholder {status_code}"},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			f, err := NewTemplateFormatter(tt.template)
			require.Error(t, err)
			assert.Nil(t, f)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"literal only", "static line", "static line"},
		{"single field", "{event_type}", `"page_view"`},
		{"timestamp", "{timestamp}", "2025-03-01T12:30:45.123Z"},
		{"id unquoted", "{id}", "6f1c2a3b-4d5e-4f60-8a9b-0c1d2e3f4a5b"},
		{"mixed", "[{request_id}] {event_type} on {page_url}", `["req-42"] "page_view" on "/home"`},
		{"client ip", "{client_ip}", `"203.0.113.7"`},
		{"repeated", "{page_url}{page_url}", `"/home""/home"`},
		{"default", DefaultTemplate, "2025-03-01T12:30:45.123Z\t6f1c2a3b-4d5e-4f60-8a9b-0c1d2e3f4a5b\t\"page_view\"\t\"/home\"\t\"Mozilla/5.0\"\t\"203.0.113.7\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewTemplateFormatter(tt.template)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Format(sampleEvent()))
		})
	}
}

func TestFormat_EscapesAndDashes(t *testing.T) {
	f, err := NewTemplateFormatter("{page_url} {request_id} {timestamp}")
	require.NoError(t, err)

	ev := sampleEvent()
	ev.PageURL = "/a\"b\n\tc\\"
	ev.RequestID = ""
	ev.Timestamp = time.Time{}

	assert.Equal(t, `"/a\"b\n\tc\\" - -`, f.Format(ev))
}
