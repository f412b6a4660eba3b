package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// HeaderRequestID is the header a request id travels in, both inbound
	// (a client or proxy may supply one) and on every response.
	HeaderRequestID = "X-Request-ID"
	// LocalsRequestID keys the request id in fiber's per-request locals.
	LocalsRequestID = "requestID"
)

// RequestID tags every request with a unique id so a failed signup or
// login can be correlated across the gateway's logs. An id supplied by
// the client is kept; otherwise a fresh UUID is issued.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Locals(LocalsRequestID, requestID)
		c.Set(HeaderRequestID, requestID)

		return c.Next()
	}
}
