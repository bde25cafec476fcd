package middleware

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/costline/costline/pkg/composables"
	"github.com/costline/costline/pkg/constants"
	"github.com/google/uuid"
)

// Provide stores a value in every request context under the given key.
func Provide(key interface{}, value interface{}) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), key, value)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func Cors(allowedOrigins ...string) mux.MiddlewareFunc {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler
}

func RequestID(header string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(header)
			if id == "" {
				id = uuid.New().String()
			}
			ctx := context.WithValue(r.Context(), constants.RequestID, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ProvideActor reads the identity headers asserted by the upstream gateway
// and places the acting identity in context. Requests without an actor id
// proceed anonymously; operations that require an identity reject them.
func ProvideActor() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawID := r.Header.Get("X-Actor-ID")
			if rawID == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := uuid.Parse(rawID)
			if err != nil {
				http.Error(w, "invalid X-Actor-ID", http.StatusBadRequest)
				return
			}
			actor := composables.Actor{
				ID:         id,
				Name:       r.Header.Get("X-Actor-Name"),
				CanApprove: hasRole(r.Header.Values("X-Actor-Roles"), "approver"),
			}
			next.ServeHTTP(w, r.WithContext(composables.WithActor(r.Context(), actor)))
		})
	}
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}
