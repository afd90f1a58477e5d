package events

import (
	"fmt"
	"strings"
	"time"
)

// TemplateFormatter renders a TrackedEvent into a single log line.
// Placeholders are {field} names from knownFields.
type TemplateFormatter struct {
	template string
	segments []segment
}

// segment is either literal text or a field reference
type segment struct {
	literal string
	field   string
}

var knownFields = map[string]func(*TrackedEvent) string{
	"timestamp":  func(e *TrackedEvent) string { return formatTime(e.Timestamp) },
	"id":         func(e *TrackedEvent) string { return e.ID.String() },
	"request_id": func(e *TrackedEvent) string { return formatString(e.RequestID) },
	"event_type": func(e *TrackedEvent) string { return formatString(e.EventType) },
	"page_url":   func(e *TrackedEvent) string { return formatString(e.PageURL) },
	"user_agent": func(e *TrackedEvent) string { return formatString(e.UserAgent) },
	"client_ip":  func(e *TrackedEvent) string { return formatString(e.ClientIP) },
}

// NewTemplateFormatter parses template and rejects unknown or malformed placeholders
func NewTemplateFormatter(template string) (*TemplateFormatter, error) {
	if template == "" {
		return nil, fmt.Errorf("template cannot be empty")
	}

	var segments []segment
	rest := template
	offset := 0
	for {
		open := strings.IndexByte(rest, '{')
		if open == -1 {
			if rest != "" {
				segments = append(segments, segment{literal: rest})
			}
			break
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing == -1 {
			return nil, fmt.Errorf("unclosed placeholder at position %d", offset+open)
		}
		closing += open

		name := rest[open+1 : closing]
		if name == "" {
			return nil, fmt.Errorf("empty placeholder at position %d", offset+open)
		}
		if _, ok := knownFields[name]; !ok {
			return nil, fmt.Errorf("unknown placeholder {%s}", name)
		}

		if open > 0 {
			segments = append(segments, segment{literal: rest[:open]})
		}
		segments = append(segments, segment{field: name})

		offset += closing + 1
		rest = rest[closing+1:]
	}

	return &TemplateFormatter{template: template, segments: segments}, nil
}

func (f *TemplateFormatter) Template() string {
	return f.template
}

// Format renders event; empty strings become "-"
func (f *TemplateFormatter) Format(event *TrackedEvent) string {
	var b strings.Builder
	for _, s := range f.segments {
		if s.field == "" {
			b.WriteString(s.literal)
			continue
		}
		b.WriteString(knownFields[s.field](event))
	}
	return b.String()
}

var escaper = strings.NewReplacer(
	"\\", "\\\\",
	"\"", "\\\"",
	"\n", "\\n",
	"\t", "\\t",
	"\r", "\\r",
)

func formatString(s string) string {
	if s == "" {
		return "-"
	}
	return "\"" + escaper.Replace(s) + "\""
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
