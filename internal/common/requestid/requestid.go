package requestid

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// MaxRequestIDLength matches the length of a UUID string
const MaxRequestIDLength = 36

var (
	invalidChars = regexp.MustCompile(`[^a-zA-Z0-9-]+`)
	hyphenRuns   = regexp.MustCompile(`-+`)
)

// FromHeader returns a safe request ID derived from an incoming X-Request-ID value.
// Characters outside [a-zA-Z0-9-] are dropped and the result is capped at 36 chars.
// A fresh UUID is returned when nothing usable remains.
func FromHeader(value string) string {
	id := strings.ReplaceAll(value, " ", "-")
	id = invalidChars.ReplaceAllString(id, "")
	id = hyphenRuns.ReplaceAllString(id, "-")
	id = strings.Trim(id, "-")

	if id == "" {
		return uuid.NewString()
	}
	if len(id) > MaxRequestIDLength {
		id = id[:MaxRequestIDLength]
	}
	return id
}
