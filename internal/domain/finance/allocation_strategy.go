package finance

import (
	"sort"
	"time"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationStrategyType selects how a customer payment is split across invoices
type AllocationStrategyType string

const (
	AllocationStrategyFIFO   AllocationStrategyType = "FIFO"   // oldest invoice first
	AllocationStrategyManual AllocationStrategyType = "MANUAL" // caller supplied order
)

// IsValid checks if the strategy type is valid
func (t AllocationStrategyType) IsValid() bool {
	switch t {
	case AllocationStrategyFIFO, AllocationStrategyManual:
		return true
	}
	return false
}

// AllocationTarget is an open invoice that can receive money
type AllocationTarget struct {
	SaleID      uuid.UUID
	InvoiceNo   string
	Outstanding decimal.Decimal
	InvoiceDate time.Time
	CreatedAt   time.Time
}

// AllocationLine is the amount planned for one invoice
type AllocationLine struct {
	SaleID    uuid.UUID
	InvoiceNo string
	Amount    decimal.Decimal
}

// AllocationPlan is the result of splitting an amount across targets
type AllocationPlan struct {
	Lines           []AllocationLine
	TotalAllocated  decimal.Decimal
	Remaining       decimal.Decimal
	FullyAllocated  bool
	SalesFullyPaid  []uuid.UUID
	SalesPartlyPaid []uuid.UUID
}

// AllocationStrategy splits an amount across open invoices
type AllocationStrategy interface {
	Type() AllocationStrategyType
	Allocate(amount decimal.Decimal, targets []AllocationTarget) (*AllocationPlan, error)
}

// NewAllocationStrategy returns the strategy for t
func NewAllocationStrategy(t AllocationStrategyType) (AllocationStrategy, error) {
	switch t {
	case AllocationStrategyFIFO, "":
		return FIFOAllocationStrategy{}, nil
	case AllocationStrategyManual:
		return ManualAllocationStrategy{}, nil
	}
	return nil, shared.NewValidationError("Unknown allocation strategy").WithDetail("strategy", string(t))
}

// FIFOAllocationStrategy pays the oldest invoices first, by invoice date then
// creation time
type FIFOAllocationStrategy struct{}

// Type returns the strategy type
func (FIFOAllocationStrategy) Type() AllocationStrategyType {
	return AllocationStrategyFIFO
}

// Allocate allocates the amount in FIFO order
func (s FIFOAllocationStrategy) Allocate(amount decimal.Decimal, targets []AllocationTarget) (*AllocationPlan, error) {
	sorted := make([]AllocationTarget, len(targets))
	copy(sorted, targets)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].InvoiceDate.Equal(sorted[j].InvoiceDate) {
			return sorted[i].InvoiceDate.Before(sorted[j].InvoiceDate)
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return allocateInOrder(amount, sorted)
}

// ManualAllocationStrategy pays invoices in the order given
type ManualAllocationStrategy struct{}

// Type returns the strategy type
func (ManualAllocationStrategy) Type() AllocationStrategyType {
	return AllocationStrategyManual
}

// Allocate allocates the amount in caller order
func (ManualAllocationStrategy) Allocate(amount decimal.Decimal, targets []AllocationTarget) (*AllocationPlan, error) {
	return allocateInOrder(amount, targets)
}

func allocateInOrder(amount decimal.Decimal, targets []AllocationTarget) (*AllocationPlan, error) {
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("Allocation amount must be positive")
	}

	plan := &AllocationPlan{
		Lines:           make([]AllocationLine, 0, len(targets)),
		TotalAllocated:  decimal.Zero,
		SalesFullyPaid:  make([]uuid.UUID, 0),
		SalesPartlyPaid: make([]uuid.UUID, 0),
	}
	remaining := amount
	seen := make(map[uuid.UUID]struct{}, len(targets))

	for _, target := range targets {
		if remaining.IsZero() {
			break
		}
		if _, dup := seen[target.SaleID]; dup {
			continue
		}
		seen[target.SaleID] = struct{}{}
		if !target.Outstanding.IsPositive() {
			continue
		}

		part := decimal.Min(remaining, target.Outstanding)
		plan.Lines = append(plan.Lines, AllocationLine{
			SaleID:    target.SaleID,
			InvoiceNo: target.InvoiceNo,
			Amount:    part,
		})
		plan.TotalAllocated = plan.TotalAllocated.Add(part)
		remaining = remaining.Sub(part)

		if part.GreaterThanOrEqual(target.Outstanding) {
			plan.SalesFullyPaid = append(plan.SalesFullyPaid, target.SaleID)
		} else {
			plan.SalesPartlyPaid = append(plan.SalesPartlyPaid, target.SaleID)
		}
	}

	plan.Remaining = remaining
	plan.FullyAllocated = remaining.IsZero()
	return plan, nil
}
