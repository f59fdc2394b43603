package trade

import (
	"context"
	"fmt"

	"github.com/erp/poscore/internal/application/txn"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/erp/poscore/internal/domain/trade"
	"github.com/google/uuid"
)

// SnapshotInput describes one version to append
type SnapshotInput struct {
	SaleID        uuid.UUID
	VersionNumber int
	EditorID      uuid.UUID
	Reason        string
	DiffSummary   string
	State         trade.SaleSnapshot
}

// InvoiceVersionStore appends and reads invoice versions. Versions are never
// updated or removed; a restore appends a new version.
type InvoiceVersionStore struct{}

// NewInvoiceVersionStore creates an InvoiceVersionStore
func NewInvoiceVersionStore() *InvoiceVersionStore {
	return &InvoiceVersionStore{}
}

// Snapshot appends the next version of a sale. The number must follow the
// highest stored one; a gap or a concurrent append is a VERSION_CONFLICT.
func (s *InvoiceVersionStore) Snapshot(ctx context.Context, repos txn.TransactionalRepositories, in SnapshotInput) (uuid.UUID, error) {
	versions := repos.InvoiceVersionRepo()
	latest, err := versions.MaxVersion(ctx, in.SaleID)
	if err != nil {
		return uuid.Nil, err
	}
	if in.VersionNumber != latest+1 {
		return uuid.Nil, shared.ErrVersionConflict.
			WithDetail("sale_id", in.SaleID.String()).
			WithDetail("latest_version", latest).
			WithDetail("requested_version", in.VersionNumber)
	}

	body, err := in.State.Encode()
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode sale snapshot: %w", err)
	}
	version, err := trade.NewInvoiceVersion(in.SaleID, in.VersionNumber, body, in.EditorID, in.Reason, in.DiffSummary)
	if err != nil {
		return uuid.Nil, err
	}
	if err := versions.Append(ctx, version); err != nil {
		return uuid.Nil, err
	}
	return version.ID, nil
}

// ListVersions returns a sale's versions in ascending order
func (s *InvoiceVersionStore) ListVersions(ctx context.Context, repos txn.TransactionalRepositories, saleID uuid.UUID) ([]trade.InvoiceVersion, error) {
	return repos.InvoiceVersionRepo().FindBySale(ctx, saleID)
}

// GetVersion returns one version or VERSION_NOT_FOUND
func (s *InvoiceVersionStore) GetVersion(ctx context.Context, repos txn.TransactionalRepositories, saleID uuid.UUID, number int) (*trade.InvoiceVersion, error) {
	version, err := repos.InvoiceVersionRepo().FindBySaleAndNumber(ctx, saleID, number)
	if err != nil {
		if shared.IsCode(err, shared.CodeNotFound) {
			return nil, shared.ErrVersionNotFound.
				WithDetail("sale_id", saleID.String()).
				WithDetail("version", number)
		}
		return nil, err
	}
	return version, nil
}
