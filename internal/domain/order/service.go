package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Store defines the mutations the order service performs. Implementations
// bound to a transaction are handed to InTx callbacks by a TxStore.
type Store interface {
	ByNumber(ctx context.Context, number string) (*Order, error)
	ByID(ctx context.Context, id string) (*Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	AppendCustomerNotes(ctx context.Context, id, notes string) error
	SetAdminNotes(ctx context.Context, id, notes string) error
	AppendHistory(ctx context.Context, e *HistoryEntry) error
}

// TxStore runs a function against a Store bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type TxStore interface {
	Store
	InTx(ctx context.Context, fn func(Store) error) error
}

// Service implements order cancellation and admin status updates. Both paths
// append to the status history log inside the same transaction as the status
// write, so the audit trail never diverges from the order row.
type Service struct {
	store TxStore
	now   func() time.Time
}

// NewService creates an order Service.
func NewService(store TxStore) *Service {
	return &Service{store: store, now: time.Now}
}

// Cancel performs a customer-initiated cancellation. The order must belong to
// the customer and still be pending or confirmed. The reason, when given, is
// appended to the order's customer notes.
func (s *Service) Cancel(ctx context.Context, number, customerID, reason string) (*Order, error) {
	var cancelled *Order
	err := s.store.InTx(ctx, func(st Store) error {
		o, err := st.ByNumber(ctx, number)
		if err != nil {
			return err
		}
		// Orders belonging to someone else look like a miss rather than a
		// permission failure.
		if o.CustomerID != customerID {
			return ErrNotFound
		}
		if !CustomerCanCancel(o.Status) {
			return &InvalidStateError{Status: o.Status, Op: "cancel"}
		}

		if err := st.UpdateStatus(ctx, o.ID, StatusCancelled); err != nil {
			return errors.Wrap(err, "update status")
		}
		if reason != "" {
			note := "Cancellation reason: " + reason
			if err := st.AppendCustomerNotes(ctx, o.ID, note); err != nil {
				return errors.Wrap(err, "append notes")
			}
		}
		if err := st.AppendHistory(ctx, &HistoryEntry{
			ID:        uuid.New().String(),
			OrderID:   o.ID,
			Status:    StatusCancelled,
			Notes:     "cancelled by customer",
			CreatedAt: s.now(),
		}); err != nil {
			return errors.Wrap(err, "append history")
		}

		o.Status = StatusCancelled
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// CancelEligibility reports whether the customer could cancel the order right
// now, without mutating anything.
func (s *Service) CancelEligibility(ctx context.Context, number, customerID string) (bool, Status, error) {
	o, err := s.store.ByNumber(ctx, number)
	if err != nil {
		return false, "", err
	}
	if o.CustomerID != customerID {
		return false, "", ErrNotFound
	}
	return CustomerCanCancel(o.Status), o.Status, nil
}

// UpdateStatus performs an admin-driven status change. Admin updates are not
// constrained by the customer-facing transition table, but every change is
// recorded in the status history.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status Status, changedBy, notes string) (*Order, error) {
	if !status.Valid() {
		return nil, errors.Errorf("unknown status %q", status)
	}

	var updated *Order
	err := s.store.InTx(ctx, func(st Store) error {
		o, err := st.ByID(ctx, orderID)
		if err != nil {
			return err
		}

		if err := st.UpdateStatus(ctx, o.ID, status); err != nil {
			return errors.Wrap(err, "update status")
		}
		if notes != "" {
			if err := st.SetAdminNotes(ctx, o.ID, notes); err != nil {
				return errors.Wrap(err, "set admin notes")
			}
			o.AdminNotes = notes
		}
		if err := st.AppendHistory(ctx, &HistoryEntry{
			ID:        uuid.New().String(),
			OrderID:   o.ID,
			Status:    status,
			ChangedBy: changedBy,
			Notes:     notes,
			CreatedAt: s.now(),
		}); err != nil {
			return errors.Wrap(err, "append history")
		}

		o.Status = status
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
