package market

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"goflare.io/market/models"
	"goflare.io/market/models/enum"
)

func (s *service) GetOrder(ctx context.Context, orderID uint64) (*models.Order, error) {
	o, err := s.order.GetOrder(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}

	if o.Items, err = s.order.ListOrderItems(ctx, nil, orderID); err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrderByReference resolves the public confirmation identifier handed
// back by checkout.
func (s *service) GetOrderByReference(ctx context.Context, reference string) (*models.Order, error) {
	o, err := s.order.GetOrderByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if o.Items, err = s.order.ListOrderItems(ctx, nil, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *service) ListOrders(ctx context.Context, identity models.Identity, limit, offset uint64) ([]*models.Order, error) {
	if identity.Subject == "" {
		return nil, models.ErrAuthRequired
	}
	return s.order.ListOrders(ctx, identity.Subject, limit, offset)
}

func (s *service) UpdateOrderStatus(ctx context.Context, orderID uint64, status enum.OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown order status %q", status)
	}

	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		o, err := s.order.GetOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if !o.AllowChangeStatus(status) {
			return fmt.Errorf("invalid status transition from %s to %s", o.Status, status)
		}

		return s.order.UpdateOrderStatus(ctx, tx, orderID, o.Status, status)
	})
}

// CancelOrder cancels a still-cancellable order and, in the same
// transaction, returns to stock exactly what the order's creation took. A
// cart-path order took nothing, so nothing comes back; the recorded
// decrements are the source of truth, not the order items.
func (s *service) CancelOrder(ctx context.Context, orderID uint64) error {
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		o, err := s.order.GetOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if !o.CanCancel() {
			return fmt.Errorf("order cannot be cancelled: current status is %s", o.Status)
		}

		// The status guard aborts when a concurrent cancel already won,
		// so the restore below can never run twice.
		if err = s.order.UpdateOrderStatus(ctx, tx, orderID, o.Status, enum.OrderStatusCancelled); err != nil {
			return err
		}

		decrements, err := s.order.ListStockDecrements(ctx, tx, orderID)
		if err != nil {
			return err
		}
		for i := range decrements {
			qty := uint64(-decrements[i].Quantity)
			if err = s.order.RestoreStock(ctx, tx, decrements[i].ProductID, qty, orderID); err != nil {
				return err
			}
		}
		return nil
	})
}
