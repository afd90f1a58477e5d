package requestid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromHeader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "abc-123", "abc-123"},
		{"spaces become hyphens", "my request 1", "my-request-1"},
		{"special chars dropped", "a@b#c!", "abc"},
		{"hyphen runs collapse", "a---b", "a-b"},
		{"edges trimmed", "-abc-", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromHeader(tt.input))
		})
	}
}

func TestFromHeader_FallsBackToUUID(t *testing.T) {
	for _, input := range []string{"", "@#$%", "---"} {
		id := FromHeader(input)
		_, err := uuid.Parse(id)
		require.NoError(t, err, "input %q", input)
	}
}

func TestFromHeader_Truncates(t *testing.T) {
	id := FromHeader(strings.Repeat("x", 100))
	assert.Len(t, id, MaxRequestIDLength)
}
