package server

import (
	"strings"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/costline/costline/modules/estimation/presentation/controllers"
	"github.com/costline/costline/pkg/configuration"
	"github.com/costline/costline/pkg/constants"
	"github.com/costline/costline/pkg/middleware"
	"github.com/costline/costline/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Pool          *pgxpool.Pool
	Controllers   []server.Controller
}

func Default(options *DefaultOptions) (*server.HTTPServer, error) {
	conf := options.Configuration

	middlewares := []mux.MiddlewareFunc{
		middleware.RequestID(conf.RequestIDHeader),
		middleware.WithLogger(options.Logger),
		middleware.Provide(constants.PoolKey, options.Pool),
		middleware.Provide(constants.LoggerKey, options.Logger),
		middleware.Cors(strings.Split(conf.AllowedOrigins, ",")...),
	}

	if conf.RateLimit.Enabled {
		middlewares = append(middlewares, middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerPeriod: conf.RateLimit.GlobalRPS,
			Store:             middleware.NewMemoryStore(),
		}))
	}

	middlewares = append(middlewares, middleware.ProvideActor())

	serverInstance := server.NewHTTPServer(
		options.Controllers,
		middlewares,
		controllers.NotFound(),
		controllers.MethodNotAllowed(),
	)
	return serverInstance, nil
}
