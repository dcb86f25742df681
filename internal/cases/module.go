// Package cases provides the case lifecycle bounded context module.
package cases

import (
	"lexmatch_backend/internal/cases/analysis"
	"lexmatch_backend/internal/cases/handler"
	"lexmatch_backend/internal/cases/matching"
	"lexmatch_backend/internal/cases/recommendations"
	"lexmatch_backend/internal/cases/repository"
	"lexmatch_backend/internal/cases/service"
	"lexmatch_backend/internal/events"
	apphttp "lexmatch_backend/internal/http"
	"lexmatch_backend/platform/config"
	"lexmatch_backend/platform/logger"
	"lexmatch_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the cases bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the cases module with all its dependencies.
func NewModule(
	pool *pgxpool.Pool,
	eventBus events.Bus,
	agents Agents,
	cfg config.AIConfig,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.NewPostgres(pool)
	svc := service.New(service.Dependencies{
		Cases:           repo,
		Advocates:       repo,
		Recommendations: recommendations.NewPostgresStore(pool),
		Analyzer:        analysis.NewClient(agents.Analyst, analysis.WithTimeout(cfg.GetAITimeout())),
		Ranker:          matching.NewEngine(agents.Matcher, matching.WithTimeout(cfg.GetAITimeout())),
		CallLogger:      repository.CallLogger(repo),
		EventBus:        eventBus,
		Logger:          log,
	})

	return &Module{handler: handler.New(svc, val), service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "cases"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts case routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/cases"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
