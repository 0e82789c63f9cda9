package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/market/cart"
	"goflare.io/market/models"
	"goflare.io/market/models/enum"
)

// Cart reads at checkout retry with capped exponential backoff to ride out
// a cache that is still settling right after a write.
const (
	checkoutCartAttempts = 3
	checkoutRetryBase    = 100 * time.Millisecond
	checkoutRetryCap     = time.Second
)

// CheckoutConfirmation identifies the order a successful checkout produced.
// The reference is the public confirmation identifier shown to the customer.
type CheckoutConfirmation struct {
	OrderID   uint64
	Reference string
	Total     int64 // minor units
}

// DirectOrderRequest orders a single product without touching the cart.
type DirectOrderRequest struct {
	ProductID string `validate:"required"`
	Size      string
	Color     string
	Quantity  uint64 `validate:"required,gte=1"`
}

// Checkout converts the caller's cart into a durable order. It never
// panics past its boundary: every failure comes back as a *CheckoutError
// whose code the caller turns into navigation.
//
// The cart is deleted only after the order transaction commits. A crash
// between the two leaves the cart intact, so the customer can retry without
// losing what they were buying.
func (s *service) Checkout(ctx context.Context, identity models.Identity) (*CheckoutConfirmation, error) {
	if identity.Subject == "" {
		return nil, &models.CheckoutError{Code: models.CheckoutErrorAuth, Err: models.ErrAuthRequired}
	}

	// Upserting the profile first decouples order creation from
	// first-login timing.
	profile, err := s.users.UpsertFromIdentity(ctx, identity)
	if err != nil {
		return nil, &models.CheckoutError{Code: models.CheckoutErrorPersistence, Err: fmt.Errorf("%w: %v", models.ErrPersistenceFailure, err)}
	}

	userCart, err := s.loadCartWithRetry(ctx, identity.Subject)
	if err != nil {
		return nil, &models.CheckoutError{Code: models.CheckoutErrorPersistence, Err: err}
	}
	if userCart == nil || userCart.IsEmpty() {
		return nil, &models.CheckoutError{Code: models.CheckoutErrorEmptyCart, Err: models.ErrEmptyCart}
	}

	totalMajor := userCart.Subtotal() + s.cfg.ShippingFee

	// One query resolves every line's vendor for settlement attribution.
	vendors, err := s.catalog.VendorsByProductIDs(ctx, userCart.ProductIDs())
	if err != nil {
		return nil, &models.CheckoutError{Code: models.CheckoutErrorPersistence, Err: fmt.Errorf("%w: %v", models.ErrPersistenceFailure, err)}
	}

	newOrder := &models.Order{
		Reference: uuid.NewString(),
		UserID:    profile.Subject,
		Status:    enum.OrderStatusPending,
		Currency:  s.cfg.StripeCurrency(),
		// The only major-to-minor conversion for this order happens here,
		// inside the values committed by the single write below.
		Total: models.MinorUnits(totalMajor),
		Items: make([]models.OrderItem, 0, len(userCart.Items)),
	}
	for i := range userCart.Items {
		line := &userCart.Items[i]
		vendorID, ok := vendors[line.ProductID]
		if !ok {
			return nil, &models.CheckoutError{
				Code: models.CheckoutErrorPersistence,
				Err:  fmt.Errorf("vendor for product %s: %w", line.ProductID, models.ErrNotFound),
			}
		}
		newOrder.Items = append(newOrder.Items, models.OrderItem{
			ProductID: line.ProductID,
			VendorID:  vendorID,
			Quantity:  line.Quantity,
			UnitPrice: models.MinorUnits(line.EffectivePrice()),
			Size:      line.Size,
			Color:     line.Color,
		})
	}

	// Stock is not checked on this path; fulfilment enforces it. See the
	// open questions in DESIGN.md before changing that.
	err = s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		_, err := s.order.CreateOrder(ctx, tx, newOrder)
		return err
	})
	if err != nil {
		return nil, &models.CheckoutError{Code: models.CheckoutErrorPersistence, Err: fmt.Errorf("%w: %v", models.ErrPersistenceFailure, err)}
	}

	// Only after the order committed. A delete failure is logged and
	// swallowed: the order exists, the stale cart just lingers.
	if err = s.store.Delete(ctx, identity.Subject); err != nil {
		s.logger.Warn("cart delete after checkout failed",
			zap.String("owner_id", identity.Subject),
			zap.Uint64("order_id", newOrder.ID),
			zap.Error(err))
	}

	s.publishOrderCreated(ctx, newOrder)

	return &CheckoutConfirmation{
		OrderID:   newOrder.ID,
		Reference: newOrder.Reference,
		Total:     newOrder.Total,
	}, nil
}

// PlaceDirectOrder orders a single product, bypassing the cart entirely.
// Unlike the cart path it checks stock, and the decrement is conditional and
// committed atomically with the order insert: a conflict aborts the whole
// transaction instead of overselling.
func (s *service) PlaceDirectOrder(ctx context.Context, identity models.Identity, req DirectOrderRequest) (*CheckoutConfirmation, error) {
	if identity.Subject == "" {
		return nil, models.ErrAuthRequired
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, &models.ValidationError{Field: "request", Reason: "invalid", Got: req.Quantity}
	}

	profile, err := s.users.UpsertFromIdentity(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPersistenceFailure, err)
	}

	product, err := s.catalog.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	if err = product.CheckOrderQty(req.Quantity); err != nil {
		return nil, err
	}
	if req.Quantity > product.Stock {
		return nil, fmt.Errorf("product %s: %w", product.ID, models.ErrInsufficientStock)
	}

	newOrder := &models.Order{
		Reference: uuid.NewString(),
		UserID:    profile.Subject,
		Status:    enum.OrderStatusPending,
		Currency:  s.cfg.StripeCurrency(),
		Total:     models.MinorUnits(float64(req.Quantity) * product.EffectivePrice()),
		Items: []models.OrderItem{{
			ProductID: product.ID,
			VendorID:  product.VendorID,
			Quantity:  req.Quantity,
			UnitPrice: models.MinorUnits(product.EffectivePrice()),
			Size:      req.Size,
			Color:     req.Color,
		}},
	}

	err = s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := s.order.CreateOrder(ctx, tx, newOrder); err != nil {
			return err
		}
		return s.order.DecrementStock(ctx, tx, product.ID, req.Quantity,
			enum.StockMovementReferenceTypeDirectOrder, newOrder.ID)
	})
	if err != nil {
		if errors.Is(err, models.ErrInsufficientStock) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrPersistenceFailure, err)
	}

	s.publishOrderCreated(ctx, newOrder)

	return &CheckoutConfirmation{
		OrderID:   newOrder.ID,
		Reference: newOrder.Reference,
		Total:     newOrder.Total,
	}, nil
}

// loadCartWithRetry reads the cart up to checkoutCartAttempts times before
// concluding it is missing. A degraded cache reads as missing and is retried
// like a miss.
func (s *service) loadCartWithRetry(ctx context.Context, ownerID string) (*models.Cart, error) {
	delay := checkoutRetryBase
	for attempt := 0; ; attempt++ {
		c, err := s.store.Get(ctx, ownerID)
		if err != nil {
			var cacheErr *cart.CacheError
			if !errors.As(err, &cacheErr) {
				return nil, err
			}
			s.logger.Warn("cart cache degraded at checkout",
				zap.String("owner_id", ownerID),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		} else if c != nil {
			return c, nil
		}

		if attempt+1 >= checkoutCartAttempts {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > checkoutRetryCap {
			delay = checkoutRetryCap
		}
	}
}
