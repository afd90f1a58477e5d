package httputil

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
)

// MessageResponse is the body returned on success
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body returned on failure
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON writes v as an application/json body
func JSON(ctx *fasthttp.RequestCtx, v interface{}, statusCode int) {
	body, _ := json.Marshal(v)
	ctx.SetStatusCode(statusCode)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

// JSONMessage writes {"message": ...}
func JSONMessage(ctx *fasthttp.RequestCtx, message string, statusCode int) {
	JSON(ctx, MessageResponse{Message: message}, statusCode)
}

// JSONError writes {"error": ...}
func JSONError(ctx *fasthttp.RequestCtx, message string, statusCode int) {
	JSON(ctx, ErrorResponse{Error: message}, statusCode)
}
