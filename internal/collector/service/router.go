package service

import (
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/lugx/beacon/internal/common/httputil"
	"github.com/lugx/beacon/pkg/types"
)

// CORSConfig controls the Access-Control-* response headers
type CORSConfig struct {
	AllowOrigin string
}

var (
	corsAllowMethods = strings.Join([]string{fasthttp.MethodGet, fasthttp.MethodPost, fasthttp.MethodOptions}, ", ")
	corsAllowHeaders = "Content-Type, " + headerRequestID
)

// CreateHTTPHandler routes requests to h and applies CORS to every response
func CreateHTTPHandler(h *Handler, cors CORSConfig) fasthttp.RequestHandler {
	allowOrigin := cors.AllowOrigin
	if allowOrigin == "" {
		allowOrigin = "*"
	}

	routes := map[string]map[string]fasthttp.RequestHandler{
		types.TrackPath: {fasthttp.MethodPost: h.HandleTrack},
		PathStats:       {fasthttp.MethodGet: h.HandleStats},
		PathHealth:      {fasthttp.MethodGet: h.HandleHealth},
	}

	return func(ctx *fasthttp.RequestCtx) {
		ctx.Response.Header.Set(fasthttp.HeaderAccessControlAllowOrigin, allowOrigin)

		path := string(ctx.Path())
		methods, ok := routes[path]
		if !ok {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			ctx.SetBodyString("Not Found")
			h.metrics.RecordHTTPRequest("other", "404")
			return
		}

		if ctx.IsOptions() {
			ctx.Response.Header.Set(fasthttp.HeaderAccessControlAllowMethods, corsAllowMethods)
			ctx.Response.Header.Set(fasthttp.HeaderAccessControlAllowHeaders, corsAllowHeaders)
			ctx.Response.Header.Set(fasthttp.HeaderAccessControlMaxAge, "600")
			ctx.SetStatusCode(fasthttp.StatusNoContent)
			return
		}

		handler, ok := methods[string(ctx.Method())]
		if !ok {
			httputil.JSONError(ctx, "method not allowed", fasthttp.StatusMethodNotAllowed)
			h.metrics.RecordHTTPRequest(path, "405")
			return
		}
		handler(ctx)
	}
}
