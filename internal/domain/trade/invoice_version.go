package trade

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceVersion is an append-only snapshot of a sale after a create or edit
type InvoiceVersion struct {
	ID            uuid.UUID
	SaleID        uuid.UUID
	VersionNumber int
	Snapshot      []byte
	EditedBy      uuid.UUID
	EditedAt      time.Time
	EditReason    string
	DiffSummary   string
}

// NewInvoiceVersion validates and builds a version row
func NewInvoiceVersion(saleID uuid.UUID, versionNumber int, snapshot []byte, editorID uuid.UUID, reason, diff string) (*InvoiceVersion, error) {
	if saleID == uuid.Nil {
		return nil, shared.NewValidationError("Sale ID cannot be empty")
	}
	if versionNumber < 1 {
		return nil, shared.NewValidationError("Version number must start at 1")
	}
	if len(snapshot) == 0 {
		return nil, shared.NewValidationError("Snapshot cannot be empty")
	}
	return &InvoiceVersion{
		ID:            uuid.New(),
		SaleID:        saleID,
		VersionNumber: versionNumber,
		Snapshot:      snapshot,
		EditedBy:      editorID,
		EditedAt:      time.Now().UTC(),
		EditReason:    reason,
		DiffSummary:   diff,
	}, nil
}

// DecodeSnapshot parses the stored JSON
func (v *InvoiceVersion) DecodeSnapshot() (*SaleSnapshot, error) {
	var snap SaleSnapshot
	if err := json.Unmarshal(v.Snapshot, &snap); err != nil {
		return nil, fmt.Errorf("decode invoice version %d of sale %s: %w", v.VersionNumber, v.SaleID, err)
	}
	return &snap, nil
}

// SaleSnapshot is the JSON document stored in an invoice version
type SaleSnapshot struct {
	SaleID            uuid.UUID       `json:"sale_id"`
	InvoiceNo         string          `json:"invoice_no"`
	ExternalReference *string         `json:"external_reference,omitempty"`
	InvoiceDate       time.Time       `json:"invoice_date"`
	CustomerID        *uuid.UUID      `json:"customer_id,omitempty"`
	VATRate           decimal.Decimal `json:"vat_rate"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	VATTotal          decimal.Decimal `json:"vat_total"`
	Discount          decimal.Decimal `json:"discount"`
	GrandTotal        decimal.Decimal `json:"grand_total"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	IsFinalized       bool            `json:"is_finalized"`
	Notes             string          `json:"notes,omitempty"`
	Version           int             `json:"version"`
	Items             []SnapshotItem  `json:"items"`
}

// SnapshotItem is one line inside a snapshot
type SnapshotItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	UnitType  string          `json:"unit_type"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
	VATRate   decimal.Decimal `json:"vat_rate"`
	VATAmount decimal.Decimal `json:"vat_amount"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// NewSaleSnapshot captures the full state of a sale
func NewSaleSnapshot(s *Sale) SaleSnapshot {
	items := make([]SnapshotItem, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, SnapshotItem{
			ProductID: item.ProductID,
			UnitType:  item.UnitType,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
			Discount:  item.Discount,
			VATRate:   item.VATRate,
			VATAmount: item.VATAmount,
			LineTotal: item.LineTotal,
		})
	}
	return SaleSnapshot{
		SaleID:            s.ID,
		InvoiceNo:         s.InvoiceNo,
		ExternalReference: s.ExternalReference,
		InvoiceDate:       s.InvoiceDate,
		CustomerID:        s.CustomerID,
		VATRate:           s.VATRate,
		Subtotal:          s.Subtotal,
		VATTotal:          s.VATTotal,
		Discount:          s.Discount,
		GrandTotal:        s.GrandTotal,
		PaidAmount:        s.PaidAmount,
		PaymentStatus:     s.PaymentStatus,
		IsFinalized:       s.IsFinalized,
		Notes:             s.Notes,
		Version:           s.Version,
		Items:             items,
	}
}

// Encode serializes the snapshot
func (s SaleSnapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// Content rebuilds the editable content captured by the snapshot
func (s SaleSnapshot) Content() SaleContent {
	inputs := make([]SaleItemInput, 0, len(s.Items))
	for _, item := range s.Items {
		rate := item.VATRate
		inputs = append(inputs, SaleItemInput{
			ProductID: item.ProductID,
			UnitType:  item.UnitType,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
			Discount:  item.Discount,
			VATRate:   &rate,
		})
	}
	return SaleContent{
		InvoiceDate: s.InvoiceDate,
		CustomerID:  s.CustomerID,
		VATRate:     s.VATRate,
		Discount:    s.Discount,
		Notes:       s.Notes,
		Items:       inputs,
	}
}

// DiffSummary describes what changed between two snapshots in one line
func DiffSummary(before, after SaleSnapshot) string {
	var parts []string

	oldQty := snapshotQty(before)
	newQty := snapshotQty(after)
	ids := make([]uuid.UUID, 0, len(oldQty)+len(newQty))
	for id := range oldQty {
		ids = append(ids, id)
	}
	for id := range newQty {
		if _, ok := oldQty[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	for _, id := range ids {
		o, hadOld := oldQty[id]
		n, hasNew := newQty[id]
		short := id.String()[:8]
		switch {
		case !hadOld:
			parts = append(parts, fmt.Sprintf("added %s x%s", short, n.String()))
		case !hasNew:
			parts = append(parts, fmt.Sprintf("removed %s x%s", short, o.String()))
		case !o.Equal(n):
			parts = append(parts, fmt.Sprintf("qty %s %s->%s", short, o.String(), n.String()))
		}
	}

	if !before.Discount.Equal(after.Discount) {
		parts = append(parts, fmt.Sprintf("discount %s->%s", before.Discount.StringFixed(2), after.Discount.StringFixed(2)))
	}
	if !sameCustomer(before.CustomerID, after.CustomerID) {
		parts = append(parts, "customer changed")
	}
	if !before.InvoiceDate.Equal(after.InvoiceDate) {
		parts = append(parts, "invoice date changed")
	}
	if before.IsFinalized != after.IsFinalized {
		parts = append(parts, "finalized")
	}
	if !before.GrandTotal.Equal(after.GrandTotal) {
		parts = append(parts, fmt.Sprintf("total %s->%s", before.GrandTotal.StringFixed(2), after.GrandTotal.StringFixed(2)))
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, "; ")
}

func snapshotQty(s SaleSnapshot) map[uuid.UUID]decimal.Decimal {
	qty := make(map[uuid.UUID]decimal.Decimal, len(s.Items))
	for _, item := range s.Items {
		qty[item.ProductID] = qty[item.ProductID].Add(item.Qty)
	}
	return qty
}

func sameCustomer(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
