// Package market is the cart, checkout and flash-sale core of the
// marketplace. It is a library: request handlers supply a caller identity
// and plain arguments and decide navigation from the returned values.
package market

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"goflare.io/market/cart"
	"goflare.io/market/catalog"
	"goflare.io/market/config"
	"goflare.io/market/driver"
	"goflare.io/market/event"
	"goflare.io/market/flashsale"
	"goflare.io/market/migrate"
	"goflare.io/market/models"
	"goflare.io/market/models/enum"
	"goflare.io/market/order"
	"goflare.io/market/users"
)

// Quantity edits through UpdateCartQuantity clamp into this fixed range,
// independent of the product's own max order quantity. AddToCartWithOptions
// enforces the product bounds instead; the two rules are intentionally left
// separate (see DESIGN.md).
const (
	minLineQuantity uint64 = 1
	maxLineQuantity uint64 = 10
)

// TxRunner runs a function inside a database transaction.
// driver.TransactionManager is the production implementation.
type TxRunner interface {
	ExecuteTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
}

type Service interface {
	AddToCart(ctx context.Context, identity models.Identity, productID string, qty uint64) error
	AddToCartWithOptions(ctx context.Context, identity models.Identity, productID, size, color string, qty uint64) error
	UpdateCartQuantity(ctx context.Context, identity models.Identity, productID string, newQty uint64) error
	RemoveFromCart(ctx context.Context, identity models.Identity, productID string) error
	GetCart(ctx context.Context, identity models.Identity) (*models.Cart, error)
	CartTotals(cart *models.Cart) float64

	Checkout(ctx context.Context, identity models.Identity) (*CheckoutConfirmation, error)
	PlaceDirectOrder(ctx context.Context, identity models.Identity, req DirectOrderRequest) (*CheckoutConfirmation, error)

	GetOrder(ctx context.Context, orderID uint64) (*models.Order, error)
	GetOrderByReference(ctx context.Context, reference string) (*models.Order, error)
	ListOrders(ctx context.Context, identity models.Identity, limit, offset uint64) ([]*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uint64, status enum.OrderStatus) error
	CancelOrder(ctx context.Context, orderID uint64) error

	CreateFlashSale(ctx context.Context, params CreateFlashSaleParams) (*models.FlashSale, error)
	GetFlashSale(ctx context.Context, id uint64) (*models.FlashSale, error)
	ActiveFlashSales(ctx context.Context) ([]*models.FlashSale, error)
	EndFlashSale(ctx context.Context, id uint64) error
}

type service struct {
	store     cart.Store
	catalog   catalog.Repository
	users     users.Repository
	order     order.Repository
	flashSale flashsale.Repository
	event     event.Repository

	transactionManager TxRunner
	eventManager       *EventManager
	workerPool         *WorkerPool

	cfg      *config.Config
	validate *validator.Validate
	logger   *zap.Logger
}

func NewService(
	store cart.Store,
	catalogRepo catalog.Repository,
	userRepo users.Repository,
	orderRepo order.Repository,
	flashSaleRepo flashsale.Repository,
	eventRepo event.Repository,
	tm TxRunner,
	natsConn *nats.Conn,
	cfg *config.Config,
	logger *zap.Logger,
) Service {
	s := &service{
		store:              store,
		catalog:            catalogRepo,
		users:              userRepo,
		order:              orderRepo,
		flashSale:          flashSaleRepo,
		event:              eventRepo,
		transactionManager: tm,
		cfg:                cfg,
		validate:           validator.New(),
		logger:             logger,
	}
	s.eventManager = NewEventManager(natsConn, logger)
	s.workerPool = NewWorkerPool(10, s, logger)
	s.registerEventHandlers()

	if err := s.eventManager.SubscribeToEvents(s.workerPool); err != nil {
		logger.Error("failed to subscribe to fulfilment events", zap.Error(err))
	}

	return s
}

// New wires the full service from configuration: schema migrations, the
// postgres pool, the redis cart store and the NATS connection.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Service, error) {
	if err := migrate.Apply(ctx, cfg.PostgresDSN); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	pool, err := driver.ConnectSQL(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	rdb, err := driver.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	natsConn, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return NewService(
		cart.NewStore(rdb, logger),
		catalog.NewRepository(pool, logger),
		users.NewRepository(pool, logger),
		order.NewRepository(pool, logger),
		flashsale.NewRepository(pool, logger),
		event.NewRepository(pool, logger),
		driver.NewTransactionManager(pool, logger),
		natsConn,
		cfg,
		logger,
	), nil
}

func (s *service) AddToCart(ctx context.Context, identity models.Identity, productID string, qty uint64) error {
	if identity.Subject == "" {
		return models.ErrAuthRequired
	}
	if qty == 0 {
		qty = 1
	}

	product, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		return err
	}

	_, err = s.store.Update(ctx, identity.Subject, func(current *models.Cart) (*models.Cart, error) {
		if current == nil {
			current = models.NewCart(identity.Subject)
		}
		// Plain add matches on product ID only; size/colour variants of
		// the same product collapse into one line here.
		if i := current.FindLine(productID); i >= 0 {
			current.Items[i].Quantity += qty
		} else {
			current.Items = append(current.Items, product.SnapshotLine(qty, "", ""))
		}
		return current, nil
	})
	return s.degradeCacheError(err, "add to cart", identity.Subject)
}

func (s *service) AddToCartWithOptions(ctx context.Context, identity models.Identity, productID, size, color string, qty uint64) error {
	if identity.Subject == "" {
		return models.ErrAuthRequired
	}

	product, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		return err
	}

	// Bounds are checked before any mutation; a violation leaves the cart
	// untouched.
	if err = product.CheckOrderQty(qty); err != nil {
		return err
	}

	_, err = s.store.Update(ctx, identity.Subject, func(current *models.Cart) (*models.Cart, error) {
		if current == nil {
			current = models.NewCart(identity.Subject)
		}
		if i := current.FindVariantLine(productID, size, color); i >= 0 {
			current.Items[i].Quantity += qty
		} else {
			current.Items = append(current.Items, product.SnapshotLine(qty, size, color))
		}
		return current, nil
	})
	return s.degradeCacheError(err, "add to cart with options", identity.Subject)
}

func (s *service) UpdateCartQuantity(ctx context.Context, identity models.Identity, productID string, newQty uint64) error {
	if identity.Subject == "" {
		return models.ErrAuthRequired
	}

	if newQty < minLineQuantity {
		newQty = minLineQuantity
	}
	if newQty > maxLineQuantity {
		newQty = maxLineQuantity
	}

	// A quantity edit is the one cart mutation that re-prices the line
	// from the current catalog state.
	product, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		return err
	}

	_, err = s.store.Update(ctx, identity.Subject, func(current *models.Cart) (*models.Cart, error) {
		if current == nil {
			return nil, fmt.Errorf("cart: %w", models.ErrNotFound)
		}
		i := current.FindLine(productID)
		if i < 0 {
			return nil, fmt.Errorf("cart line %s: %w", productID, models.ErrNotFound)
		}

		line := &current.Items[i]
		line.Quantity = newQty
		line.UnitPrice = product.Price
		line.DiscountPrice = nil
		if product.DiscountPrice != nil {
			dp := *product.DiscountPrice
			line.DiscountPrice = &dp
		}
		return current, nil
	})
	return s.degradeCacheError(err, "update cart quantity", identity.Subject)
}

func (s *service) RemoveFromCart(ctx context.Context, identity models.Identity, productID string) error {
	if identity.Subject == "" {
		return models.ErrAuthRequired
	}

	_, err := s.store.Update(ctx, identity.Subject, func(current *models.Cart) (*models.Cart, error) {
		if current == nil {
			return nil, nil
		}
		current.RemoveLine(productID)
		// The store deletes the record when the last line goes; an empty
		// cart must never be written back.
		return current, nil
	})
	return s.degradeCacheError(err, "remove from cart", identity.Subject)
}

func (s *service) GetCart(ctx context.Context, identity models.Identity) (*models.Cart, error) {
	if identity.Subject == "" {
		return nil, models.ErrAuthRequired
	}

	c, err := s.store.Get(ctx, identity.Subject)
	if err != nil {
		// A degraded cache reads as an absent cart; the UI shows empty
		// rather than an error page.
		var cacheErr *cart.CacheError
		if errors.As(err, &cacheErr) {
			s.logger.Warn("cart cache degraded on read", zap.String("owner_id", identity.Subject), zap.Error(err))
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// CartTotals computes the cart subtotal in major units from the snapshot
// prices. Pure; shared by the cart view and checkout.
func (s *service) CartTotals(c *models.Cart) float64 {
	if c == nil {
		return 0
	}
	return c.Subtotal()
}

// degradeCacheError swallows cache failures on cart mutations: the cache may
// silently forget, and a mutation against a degraded cache is a logged
// no-op, not a user-facing failure. Everything else propagates.
func (s *service) degradeCacheError(err error, op, ownerID string) error {
	if err == nil {
		return nil
	}
	var cacheErr *cart.CacheError
	if errors.As(err, &cacheErr) {
		s.logger.Warn("cart cache degraded",
			zap.String("op", op),
			zap.String("owner_id", ownerID),
			zap.Error(err))
		return nil
	}
	return err
}
