package handler

import (
	"context"

	"github.com/erp/poscore/internal/application/inventory"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProductHandler exposes products and their stock ledger
type ProductHandler struct {
	BaseHandler
	inventory *inventory.InventoryService
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(svc *inventory.InventoryService) *ProductHandler {
	return &ProductHandler{inventory: svc}
}

// Create handles POST /products
func (h *ProductHandler) Create(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req inventory.RegisterProductRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.inventory.RegisterProduct(c.Request.Context(), req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Get handles GET /products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.inventory.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// List handles GET /products
func (h *ProductHandler) List(c *gin.Context) {
	var filter inventory.ProductListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	page, err := h.inventory.ListProducts(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Page(c, page)
}

// ReceivePurchase handles POST /products/:id/purchases
func (h *ProductHandler) ReceivePurchase(c *gin.Context) {
	h.movement(c, h.inventory.ReceivePurchase)
}

// ReturnPurchase handles POST /products/:id/purchase-returns
func (h *ProductHandler) ReturnPurchase(c *gin.Context) {
	h.movement(c, h.inventory.ReturnPurchase)
}

type movementFunc = func(ctx context.Context, productID uuid.UUID, req inventory.StockMovementRequest, actor shared.Actor) (*inventory.StockMovementResponse, error)

func (h *ProductHandler) movement(c *gin.Context, apply movementFunc) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	var req inventory.StockMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := apply(c.Request.Context(), id, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Adjust handles POST /products/:id/adjustments
func (h *ProductHandler) Adjust(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	var req inventory.AdjustStockRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.inventory.AdjustStock(c.Request.Context(), id, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// ChangePrice handles PUT /products/:id/price
func (h *ProductHandler) ChangePrice(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	var req inventory.ChangePriceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	expected, ok := h.ExpectedRowVersion(c, req.ExpectedRowVersion)
	if !ok {
		return
	}
	req.ExpectedRowVersion = expected
	resp, err := h.inventory.ChangePrice(c.Request.Context(), id, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Disable handles POST /products/:id/disable
func (h *ProductHandler) Disable(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.inventory.DisableProduct(c.Request.Context(), id, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ListTransactions handles GET /products/:id/transactions
func (h *ProductHandler) ListTransactions(c *gin.Context) {
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	var filter inventory.TransactionListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	page, err := h.inventory.ListTransactions(c.Request.Context(), id, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Page(c, page)
}

// ReturnSale handles POST /sales/:id/returns
func (h *ProductHandler) ReturnSale(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	saleID, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	var req inventory.SaleReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.inventory.ReturnSale(c.Request.Context(), saleID, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}
