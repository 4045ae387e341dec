package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/redis/go-redis/v9"

	"github.com/evalprd/evalprd-api/internal/utils"
)

// fixedWindowScript increments the counter and stamps the window TTL in one
// atomic step, so a counter key never exists without an expiry.
var fixedWindowScript = redis.NewScript(`local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count`)

// RateLimit creates a per-user fixed-window limiter. With a Redis client the
// window is shared across instances; without one it falls back to an
// in-process limiter.
func RateLimit(client *redis.Client, identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}

	if client == nil {
		return limiter.New(limiter.Config{
			Max:        max,
			Expiration: window,
			KeyGenerator: func(c *fiber.Ctx) string {
				return rateLimitKey(c, identifier)
			},
		})
	}

	return func(c *fiber.Ctx) error {
		key := rateLimitKey(c, identifier)
		ctx := c.UserContext()

		count, err := fixedWindowScript.Run(ctx, client, []string{key}, window.Milliseconds()).Int64()
		if err != nil {
			// Redis being down must not take the API with it.
			return c.Next()
		}
		if count > int64(max) {
			return utils.SendError(c, fiber.StatusTooManyRequests, "rate limit exceeded")
		}
		return c.Next()
	}
}

func rateLimitKey(c *fiber.Ctx, identifier string) string {
	identity := ""
	if v := c.Locals("user_id"); v != nil {
		identity = fmt.Sprintf("%v", v)
	}
	if identity == "" {
		identity = c.IP()
	}
	return fmt.Sprintf("ratelimit:%s:%s", identifier, identity)
}
