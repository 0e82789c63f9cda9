package models

// Cart is the cache-resident collection of pending purchase lines for one
// owner. It exists only while it has at least one line; an empty cart is
// removed from the store rather than written back.
type Cart struct {
	OwnerID string     `json:"ownerId"`
	Items   []CartLine `json:"items"`
}

// CartLine is one product (optionally a size/colour variant) with the price
// snapshot taken when it was added. Prices are major currency units and go
// stale until a quantity edit or checkout re-prices the line.
type CartLine struct {
	ProductID     string   `json:"id"`
	Name          string   `json:"name"`
	UnitPrice     float64  `json:"price"`
	DiscountPrice *float64 `json:"discountPrice,omitempty"`
	Quantity      uint64   `json:"quantity"`
	ImageString   string   `json:"imageString"`
	Size          string   `json:"size,omitempty"`
	Color         string   `json:"color,omitempty"`
}

func NewCart(ownerID string) *Cart {
	return &Cart{OwnerID: ownerID}
}

// EffectivePrice returns the discount price when one is set, else the
// regular unit price.
func (l *CartLine) EffectivePrice() float64 {
	if l.DiscountPrice != nil {
		return *l.DiscountPrice
	}
	return l.UnitPrice
}

// Subtotal sums quantity x effective price over all lines, in major units.
func (c *Cart) Subtotal() float64 {
	var total float64
	for i := range c.Items {
		l := &c.Items[i]
		total += float64(l.Quantity) * l.EffectivePrice()
	}
	return total
}

// FindLine returns the index of the line with the given product ID, or -1.
// Size and colour are ignored; this is the matching rule of the plain
// add-to-cart path.
func (c *Cart) FindLine(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// FindVariantLine matches on (productID, size, color), the rule used by the
// variant-aware add path. The two matching rules are kept separate on
// purpose; see DESIGN.md.
func (c *Cart) FindVariantLine(productID, size, color string) int {
	for i := range c.Items {
		l := &c.Items[i]
		if l.ProductID == productID && l.Size == size && l.Color == color {
			return i
		}
	}
	return -1
}

// RemoveLine filters out every line with the given product ID and reports
// whether anything was removed.
func (c *Cart) RemoveLine(productID string) bool {
	kept := c.Items[:0]
	removed := false
	for _, l := range c.Items {
		if l.ProductID == productID {
			removed = true
			continue
		}
		kept = append(kept, l)
	}
	c.Items = kept
	return removed
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ProductIDs returns the distinct product IDs across all lines, in first-seen
// order. Used to batch-resolve vendors at checkout.
func (c *Cart) ProductIDs() []string {
	seen := make(map[string]struct{}, len(c.Items))
	ids := make([]string, 0, len(c.Items))
	for i := range c.Items {
		id := c.Items[i].ProductID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
