package clientip

import (
	"net"
	"strings"

	"github.com/valyala/fasthttp"
)

// DefaultHeaders are consulted in order when the collector runs behind a proxy
var DefaultHeaders = []string{"X-Forwarded-For", "X-Real-IP"}

// FromRequest returns the leftmost address of the first populated header,
// or the connection's remote address when none is set.
func FromRequest(ctx *fasthttp.RequestCtx, headers []string) string {
	for _, header := range headers {
		value := string(ctx.Request.Header.Peek(header))
		first, _, _ := strings.Cut(value, ",")
		if ip := normalize(strings.TrimSpace(first)); ip != "" {
			return ip
		}
	}

	addr := ctx.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return normalize(addr)
}

// normalize strips brackets and zone ids; unparseable values are returned as is
func normalize(raw string) string {
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	raw, _, _ = strings.Cut(raw, "%")
	if ip := net.ParseIP(raw); ip != nil {
		return ip.String()
	}
	return raw
}
