package handler

import (
	"github.com/erp/poscore/internal/application/partner"
	"github.com/gin-gonic/gin"
)

// CustomerHandler exposes customers and their cached balances
type CustomerHandler struct {
	BaseHandler
	customers *partner.CustomerService
}

// NewCustomerHandler creates a new CustomerHandler
func NewCustomerHandler(customers *partner.CustomerService) *CustomerHandler {
	return &CustomerHandler{customers: customers}
}

// Create handles POST /customers
func (h *CustomerHandler) Create(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req partner.CreateCustomerRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.customers.RegisterCustomer(c.Request.Context(), req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Get handles GET /customers/:id
func (h *CustomerHandler) Get(c *gin.Context) {
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.customers.GetCustomer(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// List handles GET /customers
func (h *CustomerHandler) List(c *gin.Context) {
	var filter partner.CustomerListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	page, err := h.customers.ListCustomers(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Page(c, page)
}

// Recompute handles POST /customers/:id/recompute
func (h *CustomerHandler) Recompute(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.customers.RecomputeCustomer(c.Request.Context(), id, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
