package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/domain"
	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/store"
)

func TestApproveVoidRestocksInventory(t *testing.T) {
	databaseURL := os.Getenv("POS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set POS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	product, err := s.CreateProduct(ctx, domain.Product{
		Name:              "Void IT Hammer",
		BasePrice:         decimal.RequireFromString("100"),
		MarkupPercentage:  decimal.RequireFromString("10"),
		StockQuantity:     10,
		LowStockThreshold: 2,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	var saleID string
	t.Cleanup(func() {
		if saleID != "" {
			_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID)
			_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
		}
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_movements WHERE product_id = $1`, product.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM product_pricing_history WHERE product_id = $1`, product.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, product.ID)
	})

	sale, err := s.CreateSale(ctx, store.SaleDraft{
		Lines:        []domain.CartLine{{ProductID: product.ID, Quantity: 2}},
		CashRendered: decimal.RequireFromString("300"),
		CashierID:    "it-cashier",
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	saleID = sale.ID

	if !sale.Total.Equal(decimal.RequireFromString("246.4")) {
		t.Fatalf("expected total 246.4, got %s", sale.Total)
	}

	if _, err := s.RequestVoid(ctx, sale.ID, "integration test void", "it-cashier", time.Now().UTC()); err != nil {
		t.Fatalf("request void: %v", err)
	}

	voided, err := s.ApproveVoid(ctx, sale.ID, "it-admin", time.Now().UTC())
	if err != nil {
		t.Fatalf("approve void: %v", err)
	}
	if !voided.IsVoid || voided.VoidRequestStatus != domain.VoidStatusApproved {
		t.Fatalf("expected approved void, got %+v", voided)
	}

	after, err := s.GetProductByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.StockQuantity != 10 {
		t.Fatalf("expected stock restored to 10 after void, got %d", after.StockQuantity)
	}

	movements, err := s.ListMovements(ctx, domain.MovementFilter{
		ProductID: product.ID,
		Type:      domain.MovementReturn,
	})
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected 1 return movement, got %d", len(movements))
	}
	if movements[0].Quantity != 2 {
		t.Fatalf("expected return quantity 2, got %d", movements[0].Quantity)
	}
}
