package inventory

import (
	"context"
	"fmt"

	"github.com/erp/poscore/internal/application/txn"
	"github.com/erp/poscore/internal/domain/audit"
	"github.com/erp/poscore/internal/domain/catalog"
	"github.com/erp/poscore/internal/domain/inventory"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InventoryService handles product registration and every stock movement
// that is not caused by a sale edit. All stock writes go through the ledger.
type InventoryService struct {
	scope  txn.TransactionScope
	ledger *StockLedger
	logger *zap.Logger
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(scope txn.TransactionScope, ledger *StockLedger, logger *zap.Logger) *InventoryService {
	if ledger == nil {
		ledger = NewStockLedger()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{scope: scope, ledger: ledger, logger: logger}
}

// RegisterProduct creates a product. Opening stock is written as an opening
// ledger row so the ledger total always matches the counter.
func (s *InventoryService) RegisterProduct(ctx context.Context, req RegisterProductRequest, actor shared.Actor) (*ProductResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if req.OpeningStock.IsNegative() {
		return nil, shared.NewValidationError("Opening stock cannot be negative")
	}
	product, err := catalog.NewProduct(req.SKU, req.Name, req.UnitType, req.CostPrice, req.SellPrice, req.ReorderLevel)
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(repos txn.TransactionalRepositories) error {
		if existing, err := repos.ProductRepo().FindBySKU(ctx, product.SKU); err == nil && existing != nil {
			return shared.ErrAlreadyExists.WithDetail("sku", product.SKU)
		} else if err != nil && !shared.IsCode(err, shared.CodeNotFound) {
			return err
		}
		if err := repos.ProductRepo().Create(ctx, product); err != nil {
			return err
		}
		if !req.OpeningStock.IsPositive() {
			return nil
		}
		if _, err := s.ledger.ApplyStockChange(ctx, repos, StockChange{
			ProductID:   product.ID,
			Delta:       req.OpeningStock,
			Type:        inventory.TransactionTypeOpening,
			ReferenceID: product.ID,
			Reason:      "Opening stock",
			ActorID:     actor.ID,
		}); err != nil {
			return err
		}
		reloaded, err := repos.ProductRepo().FindByID(ctx, product.ID)
		if err != nil {
			return err
		}
		product = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("product registered",
		zap.String("product_id", product.ID.String()),
		zap.String("sku", product.SKU),
		zap.String("opening_stock", req.OpeningStock.String()))
	resp := ToProductResponse(product)
	return &resp, nil
}

// GetProduct returns a product by ID
func (s *InventoryService) GetProduct(ctx context.Context, id uuid.UUID) (*ProductResponse, error) {
	product, err := s.scope.Repositories().ProductRepo().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

// ListProducts lists products with pagination
func (s *InventoryService) ListProducts(ctx context.Context, filter ProductListFilter) (shared.Paginated[ProductResponse], error) {
	f := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
	}.Normalize()

	products, total, err := s.scope.Repositories().ProductRepo().FindAll(ctx, f)
	if err != nil {
		return shared.Paginated[ProductResponse]{}, err
	}
	items := make([]ProductResponse, len(products))
	for i := range products {
		items[i] = ToProductResponse(&products[i])
	}
	return shared.NewPaginated(items, total, f.Page, f.PageSize), nil
}

// ReceivePurchase adds purchased stock
func (s *InventoryService) ReceivePurchase(ctx context.Context, productID uuid.UUID, req StockMovementRequest, actor shared.Actor) (*StockMovementResponse, error) {
	if !req.Quantity.IsPositive() {
		return nil, shared.NewValidationError("Quantity must be positive")
	}
	return s.move(ctx, actor, StockChange{
		ProductID:   productID,
		Delta:       req.Quantity,
		Type:        inventory.TransactionTypePurchase,
		ReferenceID: refOrNil(req.ReferenceID),
		Reason:      req.Reason,
		ActorID:     actor.ID,
	})
}

// ReturnPurchase removes stock sent back to a supplier
func (s *InventoryService) ReturnPurchase(ctx context.Context, productID uuid.UUID, req StockMovementRequest, actor shared.Actor) (*StockMovementResponse, error) {
	if !req.Quantity.IsPositive() {
		return nil, shared.NewValidationError("Quantity must be positive")
	}
	return s.move(ctx, actor, StockChange{
		ProductID:   productID,
		Delta:       req.Quantity.Neg(),
		Type:        inventory.TransactionTypePurchaseReturn,
		ReferenceID: refOrNil(req.ReferenceID),
		Reason:      req.Reason,
		ActorID:     actor.ID,
	})
}

func (s *InventoryService) move(ctx context.Context, actor shared.Actor, change StockChange) (*StockMovementResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	var resp StockMovementResponse
	err := s.scope.Execute(ctx, func(repos txn.TransactionalRepositories) error {
		result, err := s.ledger.ApplyStockChange(ctx, repos, change)
		if err != nil {
			return err
		}
		product, err := repos.ProductRepo().FindByID(ctx, change.ProductID)
		if err != nil {
			return err
		}
		resp = StockMovementResponse{
			Product:       ToProductResponse(product),
			PreviousQty:   result.PreviousQty,
			NewQty:        result.NewQty,
			TransactionID: result.TransactionID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock moved",
		zap.String("product_id", change.ProductID.String()),
		zap.String("type", string(change.Type)),
		zap.String("delta", change.Delta.String()),
		zap.String("new_qty", resp.NewQty.String()))
	return &resp, nil
}

// AdjustStock applies a manual correction. Overriding the negative stock
// check is reserved for admins.
func (s *InventoryService) AdjustStock(ctx context.Context, productID uuid.UUID, req AdjustStockRequest, actor shared.Actor) (*StockMovementResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if req.Override {
		if err := actor.RequireAdmin("override_stock_adjustment"); err != nil {
			return nil, err
		}
	}
	if req.Delta.IsZero() {
		return nil, shared.NewValidationError("Adjustment quantity cannot be zero")
	}

	var resp StockMovementResponse
	err := s.scope.Execute(ctx, func(repos txn.TransactionalRepositories) error {
		result, err := s.ledger.ApplyStockChange(ctx, repos, StockChange{
			ProductID:   productID,
			Delta:       req.Delta,
			Type:        inventory.TransactionTypeAdjustment,
			ReferenceID: productID,
			Reason:      req.Reason,
			Override:    req.Override,
			ActorID:     actor.ID,
		})
		if err != nil {
			return err
		}

		adj, err := inventory.NewStockAdjustment(productID, req.Delta, result.PreviousQty, result.NewQty,
			req.Reason, req.Override, actor.ID, *result.TransactionID)
		if err != nil {
			return err
		}
		if err := repos.StockAdjustmentRepo().Create(ctx, adj); err != nil {
			return err
		}

		entry, err := audit.NewAuditLog(actor, audit.ActionStockAdjusted, audit.EntityProduct, productID, req.Reason)
		if err != nil {
			return err
		}
		entry.With("delta", req.Delta.String()).
			With("qty_before", result.PreviousQty.String()).
			With("qty_after", result.NewQty.String()).
			With("override", req.Override)
		if err := repos.AuditLogRepo().Append(ctx, entry); err != nil {
			return err
		}

		product, err := repos.ProductRepo().FindByID(ctx, productID)
		if err != nil {
			return err
		}
		resp = StockMovementResponse{
			Product:       ToProductResponse(product),
			PreviousQty:   result.PreviousQty,
			NewQty:        result.NewQty,
			TransactionID: result.TransactionID,
			AdjustmentID:  &adj.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock adjusted",
		zap.String("product_id", productID.String()),
		zap.String("delta", req.Delta.String()),
		zap.Bool("override", req.Override),
		zap.String("actor_id", actor.ID.String()))
	return &resp, nil
}

// ReturnSale records goods coming back from a finalized sale. With restock the
// goods re-enter stock as a return movement; without it only the audit trail
// records the return.
func (s *InventoryService) ReturnSale(ctx context.Context, saleID uuid.UUID, req SaleReturnRequest, actor shared.Actor) (*SaleReturnResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if !req.Quantity.IsPositive() {
		return nil, shared.NewValidationError("Quantity must be positive")
	}

	resp := &SaleReturnResponse{SaleID: saleID, ProductID: req.ProductID, Quantity: req.Quantity, Restocked: req.Restock}
	err := s.scope.Execute(ctx, func(repos txn.TransactionalRepositories) error {
		sale, err := repos.SaleRepo().FindByID(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.IsDeleted || !sale.IsFinalized {
			return shared.NewDomainError(shared.CodeInvalidState, "Only finalized sales accept returns").
				WithDetail("sale_id", saleID.String())
		}
		sold := sale.QuantitiesByProduct()[req.ProductID]
		if req.Quantity.GreaterThan(sold) {
			return shared.NewValidationError("Return quantity exceeds quantity sold").
				WithDetail("sold", sold.String()).
				WithDetail("requested", req.Quantity.String())
		}

		if req.Restock {
			result, err := s.ledger.ApplyStockChange(ctx, repos, StockChange{
				ProductID:   req.ProductID,
				Delta:       req.Quantity,
				Type:        inventory.TransactionTypeReturn,
				ReferenceID: saleID,
				Reason:      fmt.Sprintf("Return on sale %s: %s", sale.InvoiceNo, req.Reason),
				ActorID:     actor.ID,
			})
			if err != nil {
				return err
			}
			resp.NewQty = result.NewQty
			resp.TransactionID = result.TransactionID
		} else {
			product, err := repos.ProductRepo().FindByID(ctx, req.ProductID)
			if err != nil {
				return err
			}
			resp.NewQty = product.StockQty
		}

		entry, err := audit.NewAuditLog(actor, audit.ActionSaleReturned, audit.EntitySale, saleID, req.Reason)
		if err != nil {
			return err
		}
		entry.With("product_id", req.ProductID.String()).
			With("quantity", req.Quantity.String()).
			With("restock", req.Restock)
		return repos.AuditLogRepo().Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("sale return recorded",
		zap.String("sale_id", saleID.String()),
		zap.String("product_id", req.ProductID.String()),
		zap.Bool("restock", req.Restock))
	return resp, nil
}

// ChangePrice updates product prices and records the change. Admin only.
func (s *InventoryService) ChangePrice(ctx context.Context, productID uuid.UUID, req ChangePriceRequest, actor shared.Actor) (*ProductResponse, error) {
	if err := actor.RequireAdmin("change_price"); err != nil {
		return nil, err
	}

	var product *catalog.Product
	err := s.scope.Execute(ctx, func(repos txn.TransactionalRepositories) error {
		var err error
		product, err = repos.ProductRepo().FindByIDForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if err := product.CheckRowVersion("Product", req.ExpectedRowVersion); err != nil {
			return err
		}
		change, err := product.ChangePrices(req.CostPrice, req.SellPrice, req.Reason, actor)
		if err != nil {
			return err
		}
		if change == nil {
			return nil
		}
		if err := repos.ProductRepo().SaveWithLock(ctx, product); err != nil {
			return err
		}
		if err := repos.PriceChangeLogRepo().Append(ctx, change); err != nil {
			return err
		}
		entry, err := audit.NewAuditLog(actor, audit.ActionPriceChanged, audit.EntityProduct, productID, req.Reason)
		if err != nil {
			return err
		}
		entry.With("old_sell_price", change.OldSellPrice.String()).
			With("new_sell_price", change.NewSellPrice.String()).
			With("old_cost_price", change.OldCostPrice.String()).
			With("new_cost_price", change.NewCostPrice.String())
		return repos.AuditLogRepo().Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	resp := ToProductResponse(product)
	return &resp, nil
}

// DisableProduct hides a product from sale. Admin only.
func (s *InventoryService) DisableProduct(ctx context.Context, productID uuid.UUID, actor shared.Actor) (*ProductResponse, error) {
	if err := actor.RequireAdmin("disable_product"); err != nil {
		return nil, err
	}
	var product *catalog.Product
	err := s.scope.Execute(ctx, func(repos txn.TransactionalRepositories) error {
		var err error
		product, err = repos.ProductRepo().FindByIDForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if !product.IsActive {
			return nil
		}
		product.Disable()
		return repos.ProductRepo().SaveWithLock(ctx, product)
	})
	if err != nil {
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

// ListTransactions lists a product's ledger rows, newest first
func (s *InventoryService) ListTransactions(ctx context.Context, productID uuid.UUID, filter TransactionListFilter) (shared.Paginated[TransactionResponse], error) {
	repos := s.scope.Repositories()
	if _, err := repos.ProductRepo().FindByID(ctx, productID); err != nil {
		return shared.Paginated[TransactionResponse]{}, err
	}
	f := shared.Filter{Page: filter.Page, PageSize: filter.PageSize}.Normalize()
	rows, total, err := repos.InventoryTransactionRepo().FindByProduct(ctx, productID, f)
	if err != nil {
		return shared.Paginated[TransactionResponse]{}, err
	}
	items := make([]TransactionResponse, len(rows))
	for i := range rows {
		items[i] = ToTransactionResponse(&rows[i])
	}
	return shared.NewPaginated(items, total, f.Page, f.PageSize), nil
}

func refOrNil(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
