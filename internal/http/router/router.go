package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/norvik-as/fieldops-api/internal/config"
	"github.com/norvik-as/fieldops-api/internal/database"
	"github.com/norvik-as/fieldops-api/internal/http/handler"
	"github.com/norvik-as/fieldops-api/internal/http/middleware"
)

type Router struct {
	cfg                 *config.Config
	logger              *zap.Logger
	db                  *gorm.DB
	workOrderHandler    *handler.WorkOrderHandler
	notificationHandler *handler.NotificationHandler
	syncHandler         *handler.SyncHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	workOrderHandler *handler.WorkOrderHandler,
	notificationHandler *handler.NotificationHandler,
	syncHandler *handler.SyncHandler,
) *Router {
	return &Router{
		cfg:                 cfg,
		logger:              logger,
		db:                  db,
		workOrderHandler:    workOrderHandler,
		notificationHandler: notificationHandler,
		syncHandler:         syncHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))

	// Health check (basic liveness probe)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Readiness probe. The central store being unreachable is not fatal:
	// the process keeps serving from the cache and queueing, so it still
	// reports ready, with the store marked degraded.
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]interface{})

		if rt.db == nil {
			checks["central_store"] = map[string]interface{}{
				"status": "disabled",
			}
		} else if err := database.HealthCheck(rt.db); err != nil {
			rt.logger.Warn("central store health check failed", zap.Error(err))
			checks["central_store"] = map[string]interface{}{
				"status": "degraded",
				"error":  err.Error(),
			}
		} else {
			checks["central_store"] = map[string]interface{}{
				"status": "healthy",
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "healthy",
			"checks": checks,
		})
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(&rt.cfg.Auth, rt.cfg.App.OrganizationID, rt.logger))
		r.Use(middleware.RateLimit(&rt.cfg.RateLimit, rt.logger))

		// Work orders
		r.Route("/work-orders", func(r chi.Router) {
			r.Get("/", rt.workOrderHandler.List)
			r.Post("/", rt.workOrderHandler.Create)
			r.Get("/{id}", rt.workOrderHandler.GetByID)
			r.Patch("/{id}", rt.workOrderHandler.Update)

			// Child collections
			r.Post("/{id}/time-logs", rt.workOrderHandler.AddWorkLog)
			r.Post("/{id}/parts", rt.workOrderHandler.AddWorkPart)

			// Billing lifecycle
			r.Post("/{id}/complete", rt.workOrderHandler.CompleteForBilling)
			r.Put("/{id}/billable-details", rt.workOrderHandler.SaveBillableDetails)
			r.Put("/{id}/billing-status", rt.workOrderHandler.SetBillingStatus)
		})

		// Notifications
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", rt.notificationHandler.List)
			r.Delete("/", rt.notificationHandler.Clear)
			r.Delete("/{id}", rt.notificationHandler.Dismiss)
		})

		// Sync
		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", rt.syncHandler.Status)
			r.Post("/drain", rt.syncHandler.Drain)
			r.Put("/connectivity", rt.syncHandler.SetConnectivity)
		})
	})

	return r
}
