package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestIDKey is the fiber.Ctx locals key carrying the request id.
const RequestIDKey = "request_id"

const requestIDHeader = "X-Request-ID"

// RequestID tags every ops request with an identifier, minting one when
// the caller did not supply it.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Locals(RequestIDKey, id)
		return c.Next()
	}
}
