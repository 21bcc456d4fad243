package server

import (
	"net/http"

	"fitgent/internal/googlefit"
	"fitgent/internal/utility"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStore(rate.Limit(s.rateLimit)),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return utility.GetRealIP(c), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Too many requests, please slow down"})
		},
	}))

	e.Use(LoggerMiddleware)

	e.GET("/health", s.healthHandler)

	// Health data ingestion
	e.POST("/health-data", s.ingestHealthDataHandler)
	e.GET("/health-data/:user_id", s.listHealthDataHandler)

	// Rule engines
	e.POST("/suggestions", s.suggestionsHandler)
	e.GET("/suggestions/:user_id", s.latestSuggestionsHandler)
	e.GET("/food-recommendation", s.foodRecommendationHandler)
	e.GET("/notifications/:user_id", s.notificationsHandler)
	e.GET("/summary/:user_id", s.summaryHandler)
	e.GET("/rewards/:user_id", s.rewardsHandler)

	// Live notifications
	e.GET("/ws/notifications/:user_id", s.notificationSocketHandler)

	// Google Fit integration
	e.GET("/auth/google-fit", s.googleFitBeginHandler)
	e.GET(googlefit.CallbackPath, s.googleFitCallbackHandler)
	e.GET("/google-fit/data/:user_id", s.googleFitDataHandler)
	e.POST("/google-fit/sync/:user_id", s.googleFitSyncHandler)

	return e
}

func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)

		logger := log.With().Str("request_id", requestID).Logger()

		c.Set("logger", &logger)

		return next(c)
	}
}
