package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Event type constants sent by the beacon triggers.
// The dispatcher itself accepts any string.
const (
	EventTypePageView = "page_view"
	EventTypeScroll   = "scroll"
	EventTypeClick    = "click"
)

// TrackPath is the collector endpoint path that receives event records
const TrackPath = "/track"

// EventRecord is the payload posted for every tracked interaction
type EventRecord struct {
	EventType string `json:"event_type"`
	PageURL   string `json:"page_url"`
}

// NewEventRecord builds a record for the given event type and page path
func NewEventRecord(eventType, pagePath string) EventRecord {
	return EventRecord{
		EventType: eventType,
		PageURL:   pagePath,
	}
}

// Missing reports whether either field is empty
func (r EventRecord) Missing() bool {
	return r.EventType == "" || r.PageURL == ""
}

// Duration is a time.Duration that decodes from YAML/JSON strings ("15s", "2d", "1w")
type Duration time.Duration

var extendedDurationRe = regexp.MustCompile(`^(-?)(\d+(?:\.\d+)?)(d|w)$`)

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	dur, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalJSON accepts nanosecond numbers and duration strings
func (d *Duration) UnmarshalJSON(data []byte) error {
	var ns int64
	if err := json.Unmarshal(data, &ns); err == nil {
		*d = Duration(ns)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string or number, got %s", string(data))
	}

	dur, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// ToDuration converts to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// ParseDuration parses standard Go durations plus day (d) and week (w) suffixes
func ParseDuration(s string) (time.Duration, error) {
	if dur, err := time.ParseDuration(s); err == nil {
		return dur, nil
	}

	m := extendedDurationRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	value, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if m[1] == "-" {
		value = -value
	}

	unit := 24 * time.Hour
	if m[3] == "w" {
		unit = 7 * 24 * time.Hour
	}
	return time.Duration(value * float64(unit)), nil
}
