package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"safecircle/internal/utils"
	"safecircle/pkg/cache"
	"safecircle/pkg/logger"
)

// NewRateLimitStore shares the Redis connection when the cache has one, so
// limits hold across instances; otherwise counters live in process.
func NewRateLimitStore(c cache.Cache) (limiter.Store, error) {
	if rc, ok := c.(*cache.RedisCache); ok {
		return sredis.NewStoreWithOptions(rc.Client(), limiter.StoreOptions{
			Prefix: rc.Prefix() + "limiter",
		})
	}
	return memory.NewStore(), nil
}

// RateLimit allows perMinute requests per client IP. A non-positive limit
// disables it.
func RateLimit(store limiter.Store, perMinute int, log *logger.Logger) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	instance := limiter.New(store, limiter.Rate{Period: time.Minute, Limit: int64(perMinute)})
	return mgin.NewMiddleware(instance,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			utils.ErrorResponse(c, http.StatusTooManyRequests, utils.KindRateLimited, "too many requests")
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			// fail open
			log.WithError(err).Warn("Rate limiter unavailable")
			c.Next()
		}),
	)
}
