/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging through logrus
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend (config.Server.AllowedOrigins)

ROUTE GROUPS:
  /api/clients/*        Clients and contacts
  /api/engineers/*      Engineers
  /api/projects/*       Projects
  /api/allocations/*    Allocations
  /api/reports/*        Listings, revenue, rollups, exports
  /api/alerts/*         Background check results
  /api/scenarios/*      What-if scenarios
  /api/demo/*           Demo data (dev only)
  /healthz              Liveness

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"github.com/warp/staffing-engine/staffing"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Client routes
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.CreateClient)
			r.Get("/{id}", h.GetClient)
			r.Delete("/{id}", h.DeleteClient)
			r.Get("/{id}/contacts", h.ListContacts)
			r.Post("/{id}/contacts", h.CreateContact)
		})

		// Engineer routes
		r.Route("/engineers", func(r chi.Router) {
			r.Get("/", h.ListEngineers)
			r.Post("/", h.CreateEngineer)
			r.Get("/{id}", h.GetEngineer)
			r.Delete("/{id}", h.DeleteEngineer)
		})

		// Project routes
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/", h.CreateProject)
			r.Get("/{id}", h.GetProject)
			r.Delete("/{id}", h.DeleteProject)
		})

		// Allocation routes
		r.Route("/allocations", func(r chi.Router) {
			r.Get("/", h.ListAllocations)
			r.Post("/", h.CreateAllocation)
			r.Delete("/{id}", h.DeleteAllocation)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/unallocated", h.ReportUnallocated)
			r.Get("/allocations", h.ReportAllocations)
			r.Get("/projects-ending", h.ReportProjectsEnding)
			r.Get("/projects-ending-details", h.ReportProjectsEndingDetails)
			r.Get("/projects-no-allocations", h.ReportProjectsWithoutAllocations)
			r.Get("/project-revenue", h.revenueReport(staffing.RevenueByProject))
			r.Get("/client-revenue", h.revenueReport(staffing.RevenueByClient))
			r.Get("/engineer-revenue", h.revenueReport(staffing.RevenueByEngineer))
			r.Get("/rollup", h.ReportRollup)
			r.Get("/client-revenue-year", h.ReportClientRevenueYear)
			r.Get("/client-revenue-year.xlsx", h.ExportClientRevenueYear)
		})

		r.Get("/alerts/ending", h.GetEndingAlerts)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/", h.CreateScenario)
			r.Get("/{id}", h.GetScenario)
			r.Get("/{id}/changes", h.ListChanges)
			r.Post("/{id}/changes", h.AppendChange)
			r.Get("/{id}/report", h.ScenarioReport)
			r.Get("/{id}/report.xlsx", h.ExportScenarioReport)
		})

		// Demo routes
		r.Route("/demo", func(r chi.Router) {
			r.Post("/load", h.LoadDemo)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}

// requestLogger logs one line per request with its status and latency.
func requestLogger(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.WithFields(logrus.Fields{
					"request_id": middleware.GetReqID(r.Context()),
					"method":     r.Method,
					"path":       r.URL.Path,
					"status":     ww.Status(),
					"bytes":      ww.BytesWritten(),
					"duration":   time.Since(start).String(),
				}).Info("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
