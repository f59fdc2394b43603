package handler

import (
	"github.com/erp/poscore/internal/application/finance"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// IdempotencyKeyHeader names the caller's retry key for payment creation
const IdempotencyKeyHeader = "Idempotency-Key"

// PaymentStatusRequest moves a payment to another status
type PaymentStatusRequest struct {
	Status             string `json:"status" binding:"required,oneof=pending cleared returned void"`
	ExpectedRowVersion *int64 `json:"expected_row_version,omitempty"`
}

// PaymentUpdateRequest edits a payment under a concurrency token
type PaymentUpdateRequest struct {
	finance.UpdatePaymentRequest
	ExpectedRowVersion *int64 `json:"expected_row_version,omitempty"`
}

// PaymentHandler exposes the payment transaction manager
type PaymentHandler struct {
	BaseHandler
	payments *finance.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments *finance.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// idempotencyKey returns the caller's key, or a fresh one. The key in use is
// echoed so a client that did not send one can still retry.
func (h *PaymentHandler) idempotencyKey(c *gin.Context) string {
	key := c.GetHeader(IdempotencyKeyHeader)
	if key == "" {
		key = uuid.NewString()
	}
	c.Header(IdempotencyKeyHeader, key)
	return key
}

func (h *PaymentHandler) respond(c *gin.Context, resp *finance.CreatePaymentResponse, replayed bool) {
	if replayed {
		c.Header(ReplayedHeader, "true")
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// Create handles POST /payments
func (h *PaymentHandler) Create(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req finance.CreatePaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, replayed, err := h.payments.CreatePayment(c.Request.Context(), req, actor, h.idempotencyKey(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.respond(c, resp, replayed)
}

// Allocate handles POST /payments/allocate
func (h *PaymentHandler) Allocate(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req finance.AllocatePaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, replayed, err := h.payments.AllocatePayment(c.Request.Context(), req, actor, h.idempotencyKey(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.respond(c, resp, replayed)
}

// Get handles GET /payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.payments.GetPayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// List handles GET /payments
func (h *PaymentHandler) List(c *gin.Context) {
	var filter finance.PaymentListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	page, err := h.payments.ListPayments(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Page(c, page)
}

// Update handles PUT /payments/:id
func (h *PaymentHandler) Update(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	var req PaymentUpdateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	expected, ok := h.ExpectedRowVersion(c, req.ExpectedRowVersion)
	if !ok {
		return
	}
	resp, err := h.payments.UpdatePayment(c.Request.Context(), id, req.UpdatePaymentRequest, actor, expected)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// UpdateStatus handles PATCH /payments/:id/status
func (h *PaymentHandler) UpdateStatus(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	var req PaymentStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	expected, ok := h.ExpectedRowVersion(c, req.ExpectedRowVersion)
	if !ok {
		return
	}
	changed, err := h.payments.UpdatePaymentStatus(c.Request.Context(), id, req.Status, actor, expected)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp, err := h.payments.GetPayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"changed": changed, "payment": resp})
}

// Delete handles DELETE /payments/:id
func (h *PaymentHandler) Delete(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	deleted, err := h.payments.DeletePayment(c.Request.Context(), id, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"id": id, "deleted": deleted})
}
