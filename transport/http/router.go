package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter sets up the Gin router
func SetupRouter(handlers *Handlers, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(logger), gin.Recovery())

	router.GET("/healthz", handlers.Healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	accounts := router.Group("/accounts")
	{
		accounts.POST("/new", handlers.CreateAccount)
		accounts.POST("/authenticationStrategy", handlers.AuthenticationStrategy)
		accounts.POST("/authenticate", handlers.Authenticate)
		accounts.POST("/refresh", handlers.Refresh)
		accounts.GET("/details", handlers.Details)

		passkeys := accounts.Group("/passkeys")
		{
			passkeys.POST("/register", handlers.StartRegistration)
			passkeys.POST("/validateRegistrationChallenge", handlers.ValidateRegistration)
			passkeys.POST("/validatePasskeyChallenge", handlers.ValidateAssertion)
		}
	}

	return router
}
