package handler

import (
	"strconv"

	"github.com/erp/poscore/internal/application/trade"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/gin-gonic/gin"
)

// ReplayedHeader marks a response that was served from an earlier request
const ReplayedHeader = "Idempotent-Replayed"

// SaleHandler exposes the sale transaction manager
type SaleHandler struct {
	BaseHandler
	sales *trade.SaleService
}

// NewSaleHandler creates a new SaleHandler
func NewSaleHandler(sales *trade.SaleService) *SaleHandler {
	return &SaleHandler{sales: sales}
}

// Create handles POST /sales. Repeating a request with the same
// external_reference returns the original sale with 200.
func (h *SaleHandler) Create(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req trade.CreateSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.sales.CreateSale(c.Request.Context(), req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.createdOrReplayed(c, resp)
}

// CreateWithOverride handles POST /sales/override
func (h *SaleHandler) CreateWithOverride(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req trade.CreateSaleWithOverrideRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.sales.CreateSaleWithOverride(c.Request.Context(), req.CreateSaleRequest, actor, req.OverrideReason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.createdOrReplayed(c, resp)
}

func (h *SaleHandler) createdOrReplayed(c *gin.Context, resp *trade.SaleResponse) {
	if resp.Replayed {
		c.Header(ReplayedHeader, "true")
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// Get handles GET /sales/:id
func (h *SaleHandler) Get(c *gin.Context) {
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.sales.GetSale(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// List handles GET /sales
func (h *SaleHandler) List(c *gin.Context) {
	var filter trade.SaleListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	page, err := h.sales.ListSales(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Page(c, page)
}

// Update handles PUT /sales/:id
func (h *SaleHandler) Update(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	var req trade.UpdateSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	expected, ok := h.ExpectedRowVersion(c, req.ExpectedRowVersion)
	if !ok {
		return
	}
	resp, err := h.sales.UpdateSale(c.Request.Context(), id, req, actor, req.EditReason, expected)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Delete handles DELETE /sales/:id. A repeated delete is a no-op that
// reports deleted=false.
func (h *SaleHandler) Delete(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	deleted, err := h.sales.DeleteSale(c.Request.Context(), id, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"id": id, "deleted": deleted})
}

// Unlock handles POST /sales/:id/unlock
func (h *SaleHandler) Unlock(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	var req trade.UnlockSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	unlocked, err := h.sales.UnlockInvoice(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"id": id, "unlocked": unlocked})
}

// ListVersions handles GET /sales/:id/versions
func (h *SaleHandler) ListVersions(c *gin.Context) {
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	versions, err := h.sales.ListVersions(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, versions)
}

// GetVersion handles GET /sales/:id/versions/:version
func (h *SaleHandler) GetVersion(c *gin.Context) {
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	number, ok := h.versionNumber(c)
	if !ok {
		return
	}
	version, err := h.sales.GetVersion(c.Request.Context(), id, number)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, version)
}

// RestoreVersion handles POST /sales/:id/versions/:version/restore. The body
// is optional.
func (h *SaleHandler) RestoreVersion(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	number, ok := h.versionNumber(c)
	if !ok {
		return
	}
	var req trade.RestoreVersionRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}
	expected, ok := h.ExpectedRowVersion(c, req.ExpectedRowVersion)
	if !ok {
		return
	}
	resp, err := h.sales.RestoreVersion(c.Request.Context(), id, number, actor, expected)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

func (h *SaleHandler) versionNumber(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("version"))
	if err != nil || n < 1 {
		h.Error(c, shared.CodeValidation, "Invalid version number")
		return 0, false
	}
	return n, true
}
