package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/ulule/limiter/v3"
	mhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

type RateLimitConfig struct {
	RequestsPerPeriod int
	Store             limiter.Store
}

func NewMemoryStore() limiter.Store {
	return memory.NewStore()
}

// RateLimit applies a global requests-per-second ceiling.
func RateLimit(cfg RateLimitConfig) mux.MiddlewareFunc {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	rate := limiter.Rate{Period: time.Second, Limit: int64(cfg.RequestsPerPeriod)}
	instance := limiter.New(store, rate)
	wrapped := mhttp.NewMiddleware(instance)
	return func(next http.Handler) http.Handler {
		return wrapped.Handler(next)
	}
}
