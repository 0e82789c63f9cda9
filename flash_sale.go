package market

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"goflare.io/market/models"
)

// CreateFlashSaleParams describes a batch discount over a product set for a
// time window. The percentage applies uniformly to every product's current
// price.
type CreateFlashSaleParams struct {
	Name        string    `validate:"required"`
	StartsAt    time.Time `validate:"required"`
	EndsAt      time.Time `validate:"required"`
	DiscountPct float64   `validate:"gt=0,lt=100"`
	ProductIDs  []string  `validate:"required,min=1,dive,required"`
}

// CreateFlashSale computes every product's discount price up front and
// writes the sale with fully-formed rows in one transaction. No reader ever
// sees a zero-discount placeholder.
func (s *service) CreateFlashSale(ctx context.Context, params CreateFlashSaleParams) (*models.FlashSale, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("invalid flash sale: %w", err)
	}
	if !params.EndsAt.After(params.StartsAt) {
		return nil, fmt.Errorf("invalid flash sale: window ends before it starts")
	}

	products, err := s.catalog.GetByIDs(ctx, params.ProductIDs)
	if err != nil {
		return nil, err
	}
	if len(products) != len(params.ProductIDs) {
		return nil, fmt.Errorf("flash sale products: %w", models.ErrNotFound)
	}

	sale := &models.FlashSale{
		Name:        params.Name,
		StartsAt:    params.StartsAt,
		EndsAt:      params.EndsAt,
		DiscountPct: params.DiscountPct,
		Active:      true,
		Products:    make([]models.FlashSaleProduct, 0, len(products)),
	}
	for _, p := range products {
		sale.Products = append(sale.Products, models.FlashSaleProduct{
			ProductID:     p.ID,
			DiscountPrice: models.FlashSalePrice(p.Price, params.DiscountPct),
		})
	}

	err = s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		_, err := s.flashSale.Create(ctx, tx, sale)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPersistenceFailure, err)
	}

	s.publishFlashSaleCreated(ctx, sale)

	return sale, nil
}

func (s *service) GetFlashSale(ctx context.Context, id uint64) (*models.FlashSale, error) {
	return s.flashSale.GetByID(ctx, id)
}

func (s *service) ActiveFlashSales(ctx context.Context) ([]*models.FlashSale, error) {
	return s.flashSale.ListActive(ctx, time.Now())
}

func (s *service) EndFlashSale(ctx context.Context, id uint64) error {
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return s.flashSale.Deactivate(ctx, tx, id)
	})
}
