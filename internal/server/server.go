/*
Package server implements the application's network transport layer.
It initializes the HTTP server, configures timeouts, and wires the rule
engines, the health data store and the integrations into the router.
*/
package server

import (
	"fmt"
	"net/http"
	"time"

	"fitgent/internal/config"
	"fitgent/internal/database"
	"fitgent/internal/googlefit"
	"fitgent/internal/rewards"
	"fitgent/internal/utility"
	"fitgent/internal/wellness"
)

// Dependencies are the collaborators the server is built from.
type Dependencies struct {
	// DB is optional; without it /health reports only host stats.
	DB database.Service

	Store     database.Store
	Rewards   rewards.Store
	Food      *wellness.FoodRecommender
	GoogleFit *googlefit.Client
}

// Server defines the configuration and dependencies for the HTTP service.
type Server struct {
	// port specifies the TCP port the server will listen on.
	port int

	// rateLimit is the sustained requests per second allowed per client IP.
	rateLimit float64

	db       database.Service
	store    database.Store
	rewards  rewards.Store
	food     *wellness.FoodRecommender
	notifier *wellness.Notifier

	// fit is nil when Google Fit credentials are not configured.
	fit *googlefit.Client
	hub *utility.Hub
}

func newApp(cfg config.Config, deps Dependencies) *Server {
	rw := deps.Rewards
	if rw == nil {
		rw = rewards.NewMemory()
	}
	food := deps.Food
	if food == nil {
		food = wellness.NewFoodRecommender(nil)
	}

	return &Server{
		port:      cfg.Port,
		rateLimit: cfg.RateLimitRPS,
		db:        deps.DB,
		store:     deps.Store,
		rewards:   rw,
		food:      food,
		notifier:  wellness.NewNotifier(deps.Store),
		fit:       deps.GoogleFit,
		hub:       utility.NewHub(),
	}
}

// NewServer returns a configured *http.Server with production network
// timeouts.
func NewServer(cfg config.Config, deps Dependencies) *http.Server {
	app := newApp(cfg, deps)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", app.port),
		Handler:      app.RegisterRoutes(),
		IdleTimeout:  time.Minute,      // Time to wait for the next request on keep-alive connections.
		ReadTimeout:  10 * time.Second, // Maximum duration for reading the entire request.
		WriteTimeout: 30 * time.Second, // Maximum duration before timing out writes of the response.
	}
}
