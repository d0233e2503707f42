package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/hackathon-judge/internal/config"
	"github.com/noah-isme/hackathon-judge/internal/handler"
	"github.com/noah-isme/hackathon-judge/internal/middleware"
	"github.com/noah-isme/hackathon-judge/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EvaluationHandler  *handler.EvaluationHandler
	LeaderboardHandler *handler.LeaderboardHandler
	HealthProbes       map[string]handler.Probe
	JWTMiddleware      fiber.Handler
	// SubmitLimiter throttles evaluation submissions per caller.
	SubmitLimiter fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.EvaluationHandler != nil {
		submit := []fiber.Handler{jwtMiddleware}
		if deps.SubmitLimiter != nil {
			submit = append(submit, deps.SubmitLimiter)
		}

		deps.EvaluationHandler.Register(api.Group("/evaluations"), handler.RouteGuards{
			Submit: submit,
			Batch:  []fiber.Handler{jwtMiddleware, middleware.RequireRole(middleware.RoleJudge)},
		})
	}

	if deps.LeaderboardHandler != nil {
		deps.LeaderboardHandler.Register(api.Group("/leaderboard"))
	}
}
