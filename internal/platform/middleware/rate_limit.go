package middleware

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

const rateLimitPrefix = "reigna_booking_rate"

// NewRateLimitStore returns a Redis store when a client is given, otherwise an in-memory store.
func NewRateLimitStore(client *redis.Client) (limiter.Store, error) {
	if client == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: rateLimitPrefix}), nil
	}
	store, err := redisstore.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:   rateLimitPrefix,
		MaxRetry: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis rate limit store: %w", err)
	}
	return store, nil
}

// RateLimitMiddleware limits requests per authenticated user, or per client IP
// before authentication. rate uses the limiter format, e.g. "300-M".
func RateLimitMiddleware(store limiter.Store, rate string) (gin.HandlerFunc, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", rate, err)
	}
	instance := limiter.New(store, parsed)
	return ginlimiter.NewMiddleware(instance, ginlimiter.WithKeyGetter(rateLimitKey)), nil
}

func rateLimitKey(c *gin.Context) string {
	if id, ok := GetUserID(c); ok {
		return "user:" + strconv.FormatUint(id, 10)
	}
	return "ip:" + c.ClientIP()
}
