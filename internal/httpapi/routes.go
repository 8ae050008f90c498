package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Init builds the router.
func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(h.withTraceID)
	router.Use(h.withLogging)
	router.Use(h.withMetrics)
	router.Use(h.withRecovery)
	router.Use(middleware.RequestSize(h.maxBodyBytes))

	router.Post("/transfer", h.transfer)
	router.Get("/healthz", h.health)
	router.Handle("/metrics", promhttp.Handler())

	router.MethodNotAllowed(h.methodNotAllowed)
	router.NotFound(h.notFound)

	return router
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	_, _ = writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	_, _ = writeJSON(w, errorResponse{Error: "method not allowed"}, http.StatusMethodNotAllowed)
}

func (h *Handler) notFound(w http.ResponseWriter, _ *http.Request) {
	_, _ = writeJSON(w, errorResponse{Error: "not found"}, http.StatusNotFound)
}
