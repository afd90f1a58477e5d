package redis

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

const (
	keyPrefix = "beacon:"

	// EventTotalsKey is a hash of event_type -> count
	EventTotalsKey = keyPrefix + "events"

	pageKeyPrefix = keyPrefix + "page:"
)

// PageKey returns the per-page counter hash key.
// page_url is client controlled, so it is hashed to keep keys bounded.
func PageKey(pageURL string) string {
	return pageKeyPrefix + strconv.FormatUint(xxhash.Sum64String(pageURL), 16)
}

// PageURLKey holds the original page_url next to its counter hash.
// Counter fields are client-chosen event types, so the URL cannot share the hash.
func PageURLKey(pageURL string) string {
	return PageKey(pageURL) + ":url"
}
