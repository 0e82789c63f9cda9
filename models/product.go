package models

// Product is the read-only catalog view this core consumes. Prices are major
// currency units; stock and the order-quantity bounds are enforced by the
// ordering paths, not here.
type Product struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	DiscountPrice *float64 `json:"discount_price,omitempty"`
	Stock         uint64   `json:"stock"`
	MinOrderQty   *uint64  `json:"min_order_quantity,omitempty"`
	MaxOrderQty   *uint64  `json:"max_order_quantity,omitempty"`
	VendorID      string   `json:"vendor_id"`
	Images        []string `json:"images"`
}

// EffectivePrice returns the discount price when the product is on sale,
// else the regular price.
func (p *Product) EffectivePrice() float64 {
	if p.DiscountPrice != nil {
		return *p.DiscountPrice
	}
	return p.Price
}

// FirstImage returns the lead image reference, or "" when the product has
// none. Cart lines snapshot this single reference.
func (p *Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// CheckOrderQty validates a requested quantity against the product's
// min/max order bounds. A nil bound is unbounded on that side.
func (p *Product) CheckOrderQty(qty uint64) error {
	if p.MinOrderQty != nil && qty < *p.MinOrderQty {
		return &ValidationError{
			Field:  "quantity",
			Reason: "below the minimum order quantity",
			Min:    p.MinOrderQty,
			Max:    p.MaxOrderQty,
			Got:    qty,
		}
	}
	if p.MaxOrderQty != nil && qty > *p.MaxOrderQty {
		return &ValidationError{
			Field:  "quantity",
			Reason: "above the maximum order quantity",
			Min:    p.MinOrderQty,
			Max:    p.MaxOrderQty,
			Got:    qty,
		}
	}
	return nil
}

// SnapshotLine captures the product's current price, discount and lead image
// into a new cart line. The copy is deliberate: later catalog changes must
// not reach existing carts.
func (p *Product) SnapshotLine(qty uint64, size, color string) CartLine {
	line := CartLine{
		ProductID:   p.ID,
		Name:        p.Name,
		UnitPrice:   p.Price,
		Quantity:    qty,
		ImageString: p.FirstImage(),
		Size:        size,
		Color:       color,
	}
	if p.DiscountPrice != nil {
		dp := *p.DiscountPrice
		line.DiscountPrice = &dp
	}
	return line
}
