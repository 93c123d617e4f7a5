package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/fieldwork-reports/internal/application/service"
	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
	domainwf "github.com/garyjia/fieldwork-reports/internal/domain/workflow"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	reports  service.ReportService
	exporter StatementExporter
	health   HealthFunc
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(reports service.ReportService, exporter StatementExporter, health HealthFunc, logger Logger) *Handlers {
	return &Handlers{
		reports:  reports,
		exporter: exporter,
		health:   health,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// OrderRequest is the body of PUT /api/orders/:orderRef
type OrderRequest struct {
	ExecutionDate *entity.Date `json:"execution_date"`
	ElevatedRate  bool         `json:"elevated_rate"`
	Team          entity.Team  `json:"team"`
}

// TransitionRequest is the body of POST /api/reports/:id/transitions
type TransitionRequest struct {
	Trigger domainwf.Trigger `json:"trigger"`
	Version int64            `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if h.health != nil {
		healthy, detail := h.health(c.Request.Context())
		resp.Components = detail
		if !healthy {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{Success: status == http.StatusOK, Data: resp})
}

// UpsertOrder handles PUT /api/orders/:orderRef. Admin only.
func (h *Handlers) UpsertOrder(c *gin.Context) {
	actor, _ := domainwf.ActorFrom(c.Request.Context())
	if actor.Role != domainwf.RoleAdmin {
		abort(c, http.StatusForbidden, "only an admin may register orders")
		return
	}

	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid order payload: "+err.Error())
		return
	}

	order := &entity.Order{
		OrderRef:      c.Param("orderRef"),
		ExecutionDate: req.ExecutionDate,
		ElevatedRate:  req.ElevatedRate,
		Team:          req.Team,
	}
	if err := h.reports.UpsertOrder(c.Request.Context(), order); err != nil {
		h.fail(c, "Failed to store order", err, "order_ref", order.OrderRef)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: order})
}

// SavePartA handles PUT /api/orders/:orderRef/report/part-a
func (h *Handlers) SavePartA(c *gin.Context) {
	version, ok := versionQuery(c)
	if !ok {
		return
	}

	var partA entity.PartA
	if err := c.ShouldBindJSON(&partA); err != nil {
		abort(c, http.StatusBadRequest, "invalid part A payload: "+err.Error())
		return
	}

	report, err := h.reports.SavePartA(c.Request.Context(), c.Param("orderRef"), partA, version)
	if err != nil {
		h.fail(c, "Failed to save part A", err, "order_ref", c.Param("orderRef"))
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// SavePartB handles PUT /api/orders/:orderRef/report/part-b
func (h *Handlers) SavePartB(c *gin.Context) {
	version, ok := versionQuery(c)
	if !ok {
		return
	}

	var partB entity.PartB
	if err := c.ShouldBindJSON(&partB); err != nil {
		abort(c, http.StatusBadRequest, "invalid part B payload: "+err.Error())
		return
	}

	report, err := h.reports.SavePartB(c.Request.Context(), c.Param("orderRef"), partB, version)
	if err != nil {
		h.fail(c, "Failed to save part B", err, "order_ref", c.Param("orderRef"))
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// GetReportByOrder handles GET /api/reports/by-order/:orderRef
func (h *Handlers) GetReportByOrder(c *gin.Context) {
	report, err := h.reports.GetByOrderRef(c.Request.Context(), c.Param("orderRef"))
	if err != nil {
		h.fail(c, "Failed to get report", err, "order_ref", c.Param("orderRef"))
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// GetReport handles GET /api/reports/:id
func (h *Handlers) GetReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	report, err := h.reports.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get report", err, "report_id", id)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// Transition handles POST /api/reports/:id/transitions
func (h *Handlers) Transition(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid transition payload: "+err.Error())
		return
	}
	if !req.Trigger.IsValid() {
		abort(c, http.StatusBadRequest, fmt.Sprintf("unknown trigger %q", req.Trigger))
		return
	}
	// outcome triggers belong to the submission worker
	if req.Trigger == domainwf.TriggerSubmitSucceeded || req.Trigger == domainwf.TriggerSubmitFailed {
		abort(c, http.StatusForbidden, fmt.Sprintf("trigger %s is reserved for the system", req.Trigger))
		return
	}

	report, err := h.reports.Transition(c.Request.Context(), id, req.Trigger, req.Version)
	if err != nil {
		h.fail(c, "Failed to transition report", err, "report_id", id, "trigger", req.Trigger)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// History handles GET /api/reports/:id/history
func (h *Handlers) History(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	entries, err := h.reports.History(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to list history", err, "report_id", id)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// Calculation handles GET /api/reports/:id/calculations/:memberId
func (h *Handlers) Calculation(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	calc, err := h.reports.Calculation(c.Request.Context(), id, entity.MemberID(c.Param("memberId")))
	if err != nil {
		h.fail(c, "Failed to calculate", err, "report_id", id, "member_id", c.Param("memberId"))
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: calc})
}

// Statement handles GET /api/reports/:id/statement
func (h *Handlers) Statement(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	statement, err := h.reports.Statement(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to build statement", err, "report_id", id)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: statement})
}

// StatementXLSX handles GET /api/reports/:id/statement.xlsx
func (h *Handlers) StatementXLSX(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	report, err := h.reports.GetByID(ctx, id)
	if err != nil {
		h.fail(c, "Failed to get report", err, "report_id", id)
		return
	}
	statement, err := h.reports.Statement(ctx, id)
	if err != nil {
		h.fail(c, "Failed to build statement", err, "report_id", id)
		return
	}

	var buf bytes.Buffer
	if err := h.exporter.Write(&buf, report, statement); err != nil {
		h.fail(c, "Failed to export statement", err, "report_id", id)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="statement-%s.xlsx"`, report.OrderRef))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// fail logs err and writes the mapped error response
func (h *Handlers) fail(c *gin.Context, msg string, err error, keysAndValues ...interface{}) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(msg, append(keysAndValues, "error", err)...)
		abort(c, status, "internal error")
		return
	}
	h.logger.Info(msg, append(keysAndValues, "status", status, "error", err.Error())...)
	abort(c, status, err.Error())
}

func reportID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abort(c, http.StatusBadRequest, "invalid report ID")
		return 0, false
	}
	return id, true
}

// versionQuery reads the optional ?version= optimistic-lock value
func versionQuery(c *gin.Context) (int64, bool) {
	raw := c.Query("version")
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		abort(c, http.StatusBadRequest, "invalid version")
		return 0, false
	}
	return v, true
}
