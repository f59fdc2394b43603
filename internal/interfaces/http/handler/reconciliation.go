package handler

import (
	"github.com/erp/poscore/internal/application/reconciliation"
	"github.com/gin-gonic/gin"
)

// ReconciliationHandler serves drift reports
type ReconciliationHandler struct {
	BaseHandler
	service *reconciliation.Service
}

// NewReconciliationHandler creates a new ReconciliationHandler
func NewReconciliationHandler(service *reconciliation.Service) *ReconciliationHandler {
	return &ReconciliationHandler{service: service}
}

// Report handles GET /reconciliation/report. Admin only.
func (h *ReconciliationHandler) Report(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	report, err := h.service.Report(c.Request.Context(), actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{
		"healthy": report.Healthy(),
		"counts":  report.CountByKind(),
		"report":  report,
	})
}
