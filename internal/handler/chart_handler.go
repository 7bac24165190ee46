package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/org-hierarchy-api/internal/domain"
	"github.com/org-hierarchy-api/internal/dto"
	"github.com/org-hierarchy-api/internal/hierarchy"
	"github.com/org-hierarchy-api/internal/middleware"
	"github.com/org-hierarchy-api/internal/service"
)

type ChartHandler struct {
	service   service.OrgChartService
	validator *validator.Validate
	logger    *slog.Logger
}

func NewChartHandler(svc service.OrgChartService, logger *slog.Logger) *ChartHandler {
	return &ChartHandler{
		service:   svc,
		validator: validator.New(),
		logger:    logger,
	}
}

func (h *ChartHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetChart(r.Context(), middleware.ScopeFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toChartResponse(view))
}

func (h *ChartHandler) Resync(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Resync(r.Context(), middleware.ScopeFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toChartResponse(view))
}

func (h *ChartHandler) Reset(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Reinitialize(r.Context(), middleware.ScopeFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toChartResponse(view))
}

func (h *ChartHandler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	emp, err := h.service.AddEmployee(r.Context(), middleware.ScopeFromContext(r.Context()), &req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, toEmployeeResponse(emp))
}

func (h *ChartHandler) UpdateEmployee(w http.ResponseWriter, r *http.Request, id int64) {
	var req dto.UpdateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	emp, err := h.service.UpdateEmployee(r.Context(), middleware.ScopeFromContext(r.Context()), id, &req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, toEmployeeResponse(emp))
}

func (h *ChartHandler) DeleteEmployee(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.service.RemoveEmployee(r.Context(), middleware.ScopeFromContext(r.Context()), id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ChartHandler) MoveEmployee(w http.ResponseWriter, r *http.Request, id int64) {
	var req dto.MoveEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.service.MoveEmployee(r.Context(), middleware.ScopeFromContext(r.Context()), id, &req); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ChartHandler) AddReportingLine(w http.ResponseWriter, r *http.Request) {
	var req dto.ReportingLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	if err := h.service.AddReportingLine(r.Context(), middleware.ScopeFromContext(r.Context()), &req); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ChartHandler) RemoveReportingLine(w http.ResponseWriter, r *http.Request) {
	managerID, err := queryID(r, "manager_id")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid manager_id", err.Error())
		return
	}
	employeeID, err := queryID(r, "employee_id")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid employee_id", err.Error())
		return
	}

	if err := h.service.RemoveReportingLine(r.Context(), middleware.ScopeFromContext(r.Context()), managerID, employeeID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseEmployeePath разбирает {id} и необязательное действие из /employees/{id}/{action}
func parseEmployeePath(path string) (int64, string, error) {
	path = strings.Trim(strings.TrimPrefix(path, "/employees"), "/")

	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		return 0, "", errors.New("id is required")
	}
	if len(parts) > 2 {
		return 0, "", errors.New("unexpected path")
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", err
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	return id, action, nil
}

func queryID(r *http.Request, key string) (int64, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0, errors.New(key + " is required")
	}
	return strconv.ParseInt(value, 10, 64)
}

func toEmployeeResponse(emp *domain.Employee) dto.EmployeeResponse {
	return dto.EmployeeResponse{
		ID:               emp.ID,
		Name:             emp.Name,
		Title:            emp.Title,
		PrimaryManagerID: emp.PrimaryManagerID,
	}
}

func toNodeResponse(n *hierarchy.Node) dto.NodeResponse {
	resp := dto.NodeResponse{
		ID:               n.ID,
		Name:             n.Name,
		Title:            n.Title,
		PrimaryManagerID: n.PrimaryManagerID,
		ReportsTo:        n.ReportsTo,
		Children:         make([]dto.NodeResponse, len(n.Children)),
	}
	for i, child := range n.Children {
		resp.Children[i] = toNodeResponse(child)
	}
	return resp
}

func toChartResponse(view service.ChartView) dto.ChartResponse {
	directors := view.Tree.Directors()
	resp := dto.ChartResponse{
		RootID:        view.Root.ID,
		TransientRoot: view.Root.Transient,
		Directors:     make([]dto.NodeResponse, len(directors)),
		Size:          view.Tree.Len(),
	}
	for i, director := range directors {
		resp.Directors[i] = toNodeResponse(director)
	}
	return resp
}

func (h *ChartHandler) handleServiceError(w http.ResponseWriter, err error) {
	var storeErr *domain.StoreError
	switch {
	case errors.Is(err, domain.ErrScopeRequired):
		h.respondError(w, http.StatusUnauthorized, "owner scope required", "")
	case errors.Is(err, domain.ErrValidation):
		h.respondError(w, http.StatusBadRequest, "validation error", err.Error())
	case errors.Is(err, domain.ErrEmployeeNotFound):
		h.respondError(w, http.StatusNotFound, "employee not found", err.Error())
	case errors.Is(err, domain.ErrReportingLineNotFound):
		h.respondError(w, http.StatusNotFound, "reporting line not found", "")
	case errors.Is(err, domain.ErrRootImmutable):
		h.respondError(w, http.StatusBadRequest, "root container cannot be changed", "")
	case errors.Is(err, domain.ErrRootLinkRejected):
		h.respondError(w, http.StatusBadRequest, "reporting lines to or from the root are not allowed", "")
	case errors.Is(err, domain.ErrHasChildren):
		h.respondError(w, http.StatusConflict, "employee has direct reports", err.Error())
	case errors.Is(err, domain.ErrLastDirector):
		h.respondError(w, http.StatusConflict, "cannot remove the last director", "")
	case errors.Is(err, domain.ErrCycleRejected):
		h.respondError(w, http.StatusConflict, "reporting line would create a cycle", "")
	case errors.Is(err, domain.ErrDuplicateReportingLine):
		h.respondError(w, http.StatusConflict, "reporting line already exists", "")
	case errors.As(err, &storeErr):
		h.logger.Error("store error", slog.String("op", storeErr.Op), slog.Any("error", storeErr.Err))
		h.respondError(w, http.StatusInternalServerError, "internal server error", "")
	default:
		h.logger.Error("internal error", slog.Any("error", err))
		h.respondError(w, http.StatusInternalServerError, "internal server error", "")
	}
}

func (h *ChartHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}

func (h *ChartHandler) respondError(w http.ResponseWriter, status int, errMsg, details string) {
	w.WriteHeader(status)
	resp := dto.ErrorResponse{Error: errMsg}
	if details != "" {
		resp.Message = details
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode error response", slog.Any("error", err))
	}
}
