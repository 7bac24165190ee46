package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/org-hierarchy-api/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router настраивает маршруты API
type Router struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	chartHandler *ChartHandler
	gatherer     prometheus.Gatherer
}

// NewRouter создаёт новый роутер. gatherer может быть nil, тогда /metrics не публикуется.
func NewRouter(chartHandler *ChartHandler, gatherer prometheus.Gatherer, logger *slog.Logger) *Router {
	return &Router{
		mux:          http.NewServeMux(),
		logger:       logger,
		chartHandler: chartHandler,
		gatherer:     gatherer,
	}
}

// Setup настраивает все маршруты
func (r *Router) Setup() http.Handler {
	// Операции над иерархией требуют область владельца
	api := http.NewServeMux()
	api.HandleFunc("/chart", r.chartRouter)
	api.HandleFunc("/chart/", r.chartRouter)
	api.HandleFunc("/employees/", r.employeesRouter)
	api.HandleFunc("/reporting-lines/", r.reportingLinesRouter)

	r.mux.Handle("/", middleware.ContentType(middleware.Scope(api)))

	// Health check
	r.mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	if r.gatherer != nil {
		r.mux.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	}

	// Применяем middleware
	handler := middleware.Logger(r.logger)(r.mux)
	handler = middleware.Recoverer(r.logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}

// chartRouter обрабатывает запросы к /chart
func (r *Router) chartRouter(w http.ResponseWriter, req *http.Request) {
	path := strings.Trim(strings.TrimPrefix(req.URL.Path, "/chart"), "/")

	switch {
	case path == "" && req.Method == http.MethodGet:
		r.chartHandler.GetChart(w, req)
	case path == "resync" && req.Method == http.MethodPost:
		r.chartHandler.Resync(w, req)
	case path == "reset" && req.Method == http.MethodPost:
		r.chartHandler.Reset(w, req)
	case path == "" || path == "resync" || path == "reset":
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
	default:
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}
}

// employeesRouter обрабатывает все запросы к /employees/
func (r *Router) employeesRouter(w http.ResponseWriter, req *http.Request) {
	path := strings.Trim(strings.TrimPrefix(req.URL.Path, "/employees"), "/")

	// POST /employees/ - создание сотрудника
	if path == "" {
		if req.Method == http.MethodPost {
			r.chartHandler.CreateEmployee(w, req)
			return
		}
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	id, action, err := parseEmployeePath(req.URL.Path)
	if err != nil {
		r.chartHandler.respondError(w, http.StatusBadRequest, "invalid employee id", err.Error())
		return
	}

	switch action {
	case "":
		// /employees/{id}
		switch req.Method {
		case http.MethodPatch:
			r.chartHandler.UpdateEmployee(w, req, id)
		case http.MethodDelete:
			r.chartHandler.DeleteEmployee(w, req, id)
		default:
			http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		}
	case "move":
		if req.Method == http.MethodPost {
			r.chartHandler.MoveEmployee(w, req, id)
			return
		}
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
	default:
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}
}

// reportingLinesRouter обрабатывает запросы к /reporting-lines/
func (r *Router) reportingLinesRouter(w http.ResponseWriter, req *http.Request) {
	if strings.Trim(strings.TrimPrefix(req.URL.Path, "/reporting-lines"), "/") != "" {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	switch req.Method {
	case http.MethodPost:
		r.chartHandler.AddReportingLine(w, req)
	case http.MethodDelete:
		r.chartHandler.RemoveReportingLine(w, req)
	default:
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
	}
}
