package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/domain"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrConflict            = errors.New("conflict")
	ErrUnauthorized        = errors.New("unauthorized")
)

// SaleDraft carries everything the repository needs to run the atomic sale
// pipeline: validate stock, price the cart, verify payment, decrement stock,
// append ledger entries, allocate a sale number and persist the sale.
type SaleDraft struct {
	Lines        []domain.CartLine
	CashRendered decimal.Decimal
	CashierID    string
	CustomerName string
	CreatedAt    time.Time
}

type Repository interface {
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListLowStockProducts(ctx context.Context) ([]domain.Product, error)
	UpdateProductPricing(ctx context.Context, productID string, basePrice, markup decimal.Decimal, changedBy string, at time.Time) (*domain.Product, error)
	ListPricingHistory(ctx context.Context, productID string, limit int) ([]domain.PricingRevision, error)

	CreateSale(ctx context.Context, draft SaleDraft) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	GetSaleByNumber(ctx context.Context, saleNumber string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)

	RequestVoid(ctx context.Context, saleID string, reason string, requestedBy string, at time.Time) (*domain.Sale, error)
	ApproveVoid(ctx context.Context, saleID string, approvedBy string, at time.Time) (*domain.Sale, error)
	RejectVoid(ctx context.Context, saleID string, rejectedBy string, reason string, at time.Time) (*domain.Sale, error)

	Restock(ctx context.Context, productID string, quantity int, referenceID string, remarks string, at time.Time) (*domain.StockMovement, error)
	RecordWastage(ctx context.Context, productID string, quantity int, remarks string, at time.Time) (*domain.StockMovement, error)
	AdjustStock(ctx context.Context, productID string, countedQty int, remarks string, at time.Time) (*domain.StockMovement, error)

	ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.StockMovement, error)
	MovementReport(ctx context.Context, from, to time.Time) (domain.InventoryMovementReport, error)
	SalesSummary(ctx context.Context, from, to time.Time) (domain.SalesSummary, error)

	GetSettings(ctx context.Context) (*domain.Settings, error)
	UpdateSuperAdminCode(ctx context.Context, hash string, at time.Time) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
