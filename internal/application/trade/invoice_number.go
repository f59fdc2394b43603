package trade

import (
	"context"
	"fmt"

	"github.com/erp/poscore/internal/application/txn"
)

// DefaultInvoicePrefix is used when no prefix is configured
const DefaultInvoicePrefix = "INV-"

// InvoiceNumberAllocator hands out human-readable invoice numbers. It runs
// inside the sale transaction, so a rolled back create does not consume a
// number.
type InvoiceNumberAllocator interface {
	Next(ctx context.Context, repos txn.TransactionalRepositories) (string, error)
}

// SequenceInvoiceNumberAllocator formats values of a stored counter as
// <prefix><6 digits>
type SequenceInvoiceNumberAllocator struct {
	sequence string
	prefix   string
}

// NewSequenceInvoiceNumberAllocator creates an allocator backed by the named
// sequence row
func NewSequenceInvoiceNumberAllocator(sequence, prefix string) *SequenceInvoiceNumberAllocator {
	if sequence == "" {
		sequence = "sales"
	}
	if prefix == "" {
		prefix = DefaultInvoicePrefix
	}
	return &SequenceInvoiceNumberAllocator{sequence: sequence, prefix: prefix}
}

// Next increments the sequence and formats the value
func (a *SequenceInvoiceNumberAllocator) Next(ctx context.Context, repos txn.TransactionalRepositories) (string, error) {
	n, err := repos.InvoiceSequenceRepo().Next(ctx, a.sequence)
	if err != nil {
		return "", fmt.Errorf("allocate invoice number: %w", err)
	}
	return fmt.Sprintf("%s%06d", a.prefix, n), nil
}
