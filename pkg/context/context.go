package context

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

type ctxKey string

// RequestIDKey matches the field name used in structured logs.
const RequestIDKey ctxKey = "request_id"

// HeaderRequestID is both the inbound header and the fiber Locals key.
const HeaderRequestID = "X-Request-ID"

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	requestID, ok := ctx.Value(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

// FromFiberCtx detaches from fasthttp's pooled context and carries only the request id.
func FromFiberCtx(c *fiber.Ctx) context.Context {
	requestID, ok := c.Locals(HeaderRequestID).(string)
	if !ok || requestID == "" {
		requestID = c.Get(HeaderRequestID)

		if requestID == "" {
			requestID = "unknown"
		}
	}

	return WithRequestID(context.Background(), requestID)
}
