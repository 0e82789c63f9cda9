package models

import (
	"math"
	"time"
)

// FlashSale is a time-boxed discount over a set of products. The per-product
// discount prices are computed when the sale is created and written fully
// formed; readers never observe placeholder rows.
type FlashSale struct {
	ID          uint64             `json:"id"`
	Name        string             `json:"name"`
	StartsAt    time.Time          `json:"starts_at"`
	EndsAt      time.Time          `json:"ends_at"`
	DiscountPct float64            `json:"discount_pct"`
	Active      bool               `json:"active"`
	Products    []FlashSaleProduct `json:"products"`
	CreatedAt   time.Time          `json:"created_at"`
}

type FlashSaleProduct struct {
	FlashSaleID   uint64  `json:"flash_sale_id"`
	ProductID     string  `json:"product_id"`
	DiscountPrice float64 `json:"discount_price"` // major units
}

// InWindow reports whether the sale window covers the given instant.
func (f *FlashSale) InWindow(now time.Time) bool {
	return !now.Before(f.StartsAt) && now.Before(f.EndsAt)
}

// FlashSalePrice applies a percentage discount to a major-unit price,
// rounded to the nearest whole unit. 200 at 25% yields 150.
func FlashSalePrice(price, discountPct float64) float64 {
	return math.Round(price * (1 - discountPct/100))
}
