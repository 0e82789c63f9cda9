package market

import (
	"context"
	"testing"
	"time"

	"goflare.io/market/models"
)

func saleWindow() (time.Time, time.Time) {
	start := time.Now().Add(-time.Hour)
	return start, start.Add(24 * time.Hour)
}

func TestCreateFlashSaleComputesDiscountPrices(t *testing.T) {
	env := newTestEnv(t, testProduct("p1", 200), testProduct("p2", 99))
	start, end := saleWindow()

	sale, err := env.svc.CreateFlashSale(context.Background(), CreateFlashSaleParams{
		Name:        "Spring Drop",
		StartsAt:    start,
		EndsAt:      end,
		DiscountPct: 25,
		ProductIDs:  []string{"p1", "p2"},
	})
	if err != nil {
		t.Fatalf("CreateFlashSale: %v", err)
	}

	if !sale.Active {
		t.Fatal("a new sale must be active")
	}
	if len(sale.Products) != 2 {
		t.Fatalf("expected two product rows, got %d", len(sale.Products))
	}
	if sale.Products[0].DiscountPrice != 150 {
		t.Fatalf("expected 200 at 25%% off to be 150, got %v", sale.Products[0].DiscountPrice)
	}
	// 99 * 0.75 = 74.25, rounded.
	if sale.Products[1].DiscountPrice != 74 {
		t.Fatalf("expected rounded discount 74, got %v", sale.Products[1].DiscountPrice)
	}

	// The repository saw fully-formed rows, not placeholders.
	stored := env.flash.created[0]
	for _, row := range stored.Products {
		if row.DiscountPrice == 0 {
			t.Fatalf("stored row with placeholder discount: %+v", row)
		}
		if row.FlashSaleID != stored.ID {
			t.Fatalf("row not linked to sale: %+v", row)
		}
	}
}

func TestCreateFlashSaleValidation(t *testing.T) {
	env := newTestEnv(t, testProduct("p1", 200))
	start, end := saleWindow()
	ctx := context.Background()

	cases := []struct {
		name   string
		params CreateFlashSaleParams
	}{
		{"no products", CreateFlashSaleParams{Name: "x", StartsAt: start, EndsAt: end, DiscountPct: 10}},
		{"zero discount", CreateFlashSaleParams{Name: "x", StartsAt: start, EndsAt: end, DiscountPct: 0, ProductIDs: []string{"p1"}}},
		{"full discount", CreateFlashSaleParams{Name: "x", StartsAt: start, EndsAt: end, DiscountPct: 100, ProductIDs: []string{"p1"}}},
		{"missing name", CreateFlashSaleParams{StartsAt: start, EndsAt: end, DiscountPct: 10, ProductIDs: []string{"p1"}}},
		{"inverted window", CreateFlashSaleParams{Name: "x", StartsAt: end, EndsAt: start, DiscountPct: 10, ProductIDs: []string{"p1"}}},
	}
	for _, tc := range cases {
		if _, err := env.svc.CreateFlashSale(ctx, tc.params); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
	if len(env.flash.created) != 0 {
		t.Fatalf("no sale may be written on validation failure, got %d", len(env.flash.created))
	}
}

func TestCreateFlashSaleUnknownProduct(t *testing.T) {
	env := newTestEnv(t, testProduct("p1", 200))
	start, end := saleWindow()

	_, err := env.svc.CreateFlashSale(context.Background(), CreateFlashSaleParams{
		Name:        "Spring Drop",
		StartsAt:    start,
		EndsAt:      end,
		DiscountPct: 25,
		ProductIDs:  []string{"p1", "ghost"},
	})
	if err == nil {
		t.Fatal("expected error for an unknown product")
	}
	if len(env.flash.created) != 0 {
		t.Fatal("no sale may be written when a product is missing")
	}
}

func TestActiveFlashSalesFiltersWindowAndFlag(t *testing.T) {
	env := newTestEnv(t, testProduct("p1", 200))
	ctx := context.Background()
	now := time.Now()

	live := &models.FlashSale{Name: "live", StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour), Active: true}
	expired := &models.FlashSale{Name: "expired", StartsAt: now.Add(-48 * time.Hour), EndsAt: now.Add(-time.Hour), Active: true}
	ended := &models.FlashSale{Name: "ended", StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour), Active: false}
	for _, sale := range []*models.FlashSale{live, expired, ended} {
		if _, err := env.flash.Create(ctx, nil, sale); err != nil {
			t.Fatalf("seed sale: %v", err)
		}
	}

	sales, err := env.svc.ActiveFlashSales(ctx)
	if err != nil {
		t.Fatalf("ActiveFlashSales: %v", err)
	}
	if len(sales) != 1 || sales[0].Name != "live" {
		t.Fatalf("expected only the live sale, got %+v", sales)
	}
}

func TestEndFlashSale(t *testing.T) {
	env := newTestEnv(t, testProduct("p1", 200))
	start, end := saleWindow()
	ctx := context.Background()

	sale, err := env.svc.CreateFlashSale(ctx, CreateFlashSaleParams{
		Name:        "Spring Drop",
		StartsAt:    start,
		EndsAt:      end,
		DiscountPct: 25,
		ProductIDs:  []string{"p1"},
	})
	if err != nil {
		t.Fatalf("CreateFlashSale: %v", err)
	}

	if err = env.svc.EndFlashSale(ctx, sale.ID); err != nil {
		t.Fatalf("EndFlashSale: %v", err)
	}
	got, err := env.svc.GetFlashSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("GetFlashSale: %v", err)
	}
	if got.Active {
		t.Fatal("ended sale must be inactive")
	}
}
