// Package http wires feature modules onto the shared gin engine.
package http

import (
	"context"

	"lexmatch_backend/platform/config"
	"lexmatch_backend/platform/logger"
)

// RouterConfig is the configuration the router reads.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
	config.RateLimitConfig
}

// HealthChecker reports whether backing services answer.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is assembled by cmd/api and handed to router.New.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	// Health is pinged by /api/health/ready; the database pool in production.
	Health  HealthChecker
	Modules []Module
}
