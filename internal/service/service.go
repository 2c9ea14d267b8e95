package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/cache"
	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/domain"
	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/refid"
	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/store"
)

const salesSummaryCacheTTL = 2 * time.Minute

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo    store.Repository
	reports cache.ReportCache
	logger  zerolog.Logger
}

func New(repo store.Repository, reports cache.ReportCache, logger zerolog.Logger) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}

	return &Service{
		repo:    repo,
		reports: reports,
		logger:  logger,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListLowStockProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, fmt.Errorf("%w: product id is required", store.ErrValidation)
	}
	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: product name is required", store.ErrValidation)
	}
	if req.InitialStock < 0 {
		return domain.Product{}, fmt.Errorf("%w: initial stock must not be negative", store.ErrValidation)
	}
	if req.LowStockThreshold < 0 {
		return domain.Product{}, fmt.Errorf("%w: low stock threshold must not be negative", store.ErrValidation)
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:              req.Name,
		BasePrice:         req.BasePrice,
		MarkupPercentage:  req.MarkupPercentage,
		StockQuantity:     req.InitialStock,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.Info().
		Str("product_id", created.ID).
		Str("name", created.Name).
		Int("initial_stock", created.StockQuantity).
		Str("actor", actor.Username).
		Msg("product created")

	return *created, nil
}

func (s *Service) UpdateProductPricing(ctx context.Context, productID string, req domain.ProductPricingUpdateRequest) (domain.Product, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}

	basePrice := existing.BasePrice
	markup := existing.MarkupPercentage
	if req.BasePrice != nil {
		basePrice = *req.BasePrice
	}
	if req.MarkupPercentage != nil {
		markup = *req.MarkupPercentage
	}

	updated, err := s.repo.UpdateProductPricing(ctx, productID, basePrice, markup, actor.Username, time.Now().UTC())
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.Info().
		Str("product_id", productID).
		Str("base_price", basePrice.String()).
		Str("markup", markup.String()).
		Str("actor", actor.Username).
		Msg("product pricing updated")

	return *updated, nil
}

func (s *Service) ListPricingHistory(ctx context.Context, productID string, limit int) ([]domain.PricingRevision, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fmt.Errorf("%w: product id is required", store.ErrValidation)
	}
	return s.repo.ListPricingHistory(ctx, productID, limit)
}

func (s *Service) CreateSale(ctx context.Context, req domain.CreateSaleRequest) (domain.Sale, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Sale{}, fmt.Errorf("%w: authentication required", store.ErrUnauthorized)
	}

	if req.PaymentMethod == "" {
		req.PaymentMethod = "cash"
	}
	if req.PaymentMethod != "cash" {
		return domain.Sale{}, fmt.Errorf("%w: only cash payment is supported", store.ErrValidation)
	}
	if len(req.Items) == 0 {
		return domain.Sale{}, fmt.Errorf("%w: sale requires at least one item", store.ErrValidation)
	}
	for _, line := range req.Items {
		if strings.TrimSpace(line.ProductID) == "" {
			return domain.Sale{}, fmt.Errorf("%w: product id is required on every line", store.ErrValidation)
		}
		if line.Quantity < 1 {
			return domain.Sale{}, fmt.Errorf("%w: quantity must be at least 1", store.ErrValidation)
		}
	}
	if !req.CashRendered.IsPositive() {
		return domain.Sale{}, fmt.Errorf("%w: cash rendered must be positive", store.ErrValidation)
	}

	sale, err := s.repo.CreateSale(ctx, store.SaleDraft{
		Lines:        req.Items,
		CashRendered: req.CashRendered,
		CashierID:    actor.Username,
		CustomerName: strings.TrimSpace(req.CustomerName),
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateSalesReports(ctx)
	s.logger.Info().
		Str("sale_id", sale.ID).
		Str("sale_number", sale.SaleNumber).
		Str("total", sale.Total.String()).
		Str("cashier", actor.Username).
		Msg("sale created")

	return *sale, nil
}

func (s *Service) GetSale(ctx context.Context, ref string) (domain.Sale, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Sale{}, fmt.Errorf("%w: sale id is required", store.ErrValidation)
	}

	var sale *domain.Sale
	var err error
	if strings.HasPrefix(ref, "SALE-") {
		sale, err = s.repo.GetSaleByNumber(ctx, ref)
	} else {
		sale, err = s.repo.GetSaleByID(ctx, ref)
	}
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, filter)
}

func (s *Service) RequestVoid(ctx context.Context, saleID string, req domain.VoidRequestRequest) (domain.Sale, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Sale{}, fmt.Errorf("%w: authentication required", store.ErrUnauthorized)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return domain.Sale{}, fmt.Errorf("%w: void reason is required", store.ErrValidation)
	}

	sale, err := s.repo.RequestVoid(ctx, saleID, strings.TrimSpace(req.Reason), actor.Username, time.Now().UTC())
	if err != nil {
		return domain.Sale{}, err
	}

	s.logger.Info().
		Str("sale_id", sale.ID).
		Str("sale_number", sale.SaleNumber).
		Str("requested_by", actor.Username).
		Msg("void requested")

	return *sale, nil
}

func (s *Service) ApproveVoid(ctx context.Context, saleID string, req domain.VoidApproveRequest) (domain.Sale, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.Sale{}, err
	}
	if err := s.verifySuperAdminCode(ctx, req.SuperAdminCode); err != nil {
		return domain.Sale{}, err
	}

	sale, err := s.repo.ApproveVoid(ctx, saleID, actor.Username, time.Now().UTC())
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateSalesReports(ctx)
	s.logger.Info().
		Str("sale_id", sale.ID).
		Str("sale_number", sale.SaleNumber).
		Str("approved_by", actor.Username).
		Msg("void approved, stock restored")

	return *sale, nil
}

func (s *Service) RejectVoid(ctx context.Context, saleID string, req domain.VoidRejectRequest) (domain.Sale, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.Sale{}, err
	}

	sale, err := s.repo.RejectVoid(ctx, saleID, actor.Username, strings.TrimSpace(req.Reason), time.Now().UTC())
	if err != nil {
		return domain.Sale{}, err
	}

	s.logger.Info().
		Str("sale_id", sale.ID).
		Str("sale_number", sale.SaleNumber).
		Str("rejected_by", actor.Username).
		Msg("void rejected")

	return *sale, nil
}

// ReturnAndReplace voids an original sale and rings up a replacement in one
// workflow. The replacement sale is created while the void is still pending:
// if it fails, the pending request is rejected so the original sale stays
// intact; if it succeeds, the void is approved and the original stock
// restored.
func (s *Service) ReturnAndReplace(ctx context.Context, req domain.ReturnReplaceRequest) (domain.ReturnReplaceResponse, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.ReturnReplaceResponse{}, err
	}
	if strings.TrimSpace(req.OriginalSaleID) == "" {
		return domain.ReturnReplaceResponse{}, fmt.Errorf("%w: original sale id is required", store.ErrValidation)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return domain.ReturnReplaceResponse{}, fmt.Errorf("%w: return reason is required", store.ErrValidation)
	}
	if len(req.ReplacementItems) == 0 {
		return domain.ReturnReplaceResponse{}, fmt.Errorf("%w: replacement items are required", store.ErrValidation)
	}
	if err := s.verifySuperAdminCode(ctx, req.SuperAdminCode); err != nil {
		return domain.ReturnReplaceResponse{}, err
	}

	now := time.Now().UTC()
	_, err = s.repo.RequestVoid(ctx, req.OriginalSaleID, "return and replace: "+strings.TrimSpace(req.Reason), actor.Username, now)
	if err != nil {
		return domain.ReturnReplaceResponse{}, err
	}

	replacement, err := s.CreateSale(ctx, domain.CreateSaleRequest{
		Items:         req.ReplacementItems,
		PaymentMethod: req.PaymentMethod,
		CashRendered:  req.CashRendered,
	})
	if err != nil {
		if _, rejectErr := s.repo.RejectVoid(ctx, req.OriginalSaleID, actor.Username, "replacement sale failed", time.Now().UTC()); rejectErr != nil {
			s.logger.Error().Err(rejectErr).
				Str("sale_id", req.OriginalSaleID).
				Msg("failed to roll back pending void after replacement failure")
		}
		return domain.ReturnReplaceResponse{}, err
	}

	original, err := s.repo.ApproveVoid(ctx, req.OriginalSaleID, actor.Username, time.Now().UTC())
	if err != nil {
		return domain.ReturnReplaceResponse{}, err
	}

	s.invalidateSalesReports(ctx)
	s.logger.Info().
		Str("original_sale", original.SaleNumber).
		Str("replacement_sale", replacement.SaleNumber).
		Str("actor", actor.Username).
		Msg("return and replace completed")

	return domain.ReturnReplaceResponse{
		OriginalSale:    *original,
		ReplacementSale: replacement,
	}, nil
}

func (s *Service) Restock(ctx context.Context, req domain.RestockRequest) (domain.StockMovement, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.StockMovement{}, err
	}
	if strings.TrimSpace(req.ProductID) == "" {
		return domain.StockMovement{}, fmt.Errorf("%w: product id is required", store.ErrValidation)
	}
	if req.Quantity < 1 {
		return domain.StockMovement{}, fmt.Errorf("%w: restock quantity must be at least 1", store.ErrValidation)
	}

	remarks := ""
	if strings.TrimSpace(req.DateDelivered) != "" {
		if _, err := time.Parse("2006-01-02", req.DateDelivered); err != nil {
			return domain.StockMovement{}, fmt.Errorf("%w: date_delivered must be YYYY-MM-DD", store.ErrValidation)
		}
		remarks = "Delivered " + req.DateDelivered
	}

	movement, err := s.repo.Restock(ctx, req.ProductID, req.Quantity, refid.Restock(), remarks, time.Now().UTC())
	if err != nil {
		return domain.StockMovement{}, err
	}

	s.logger.Info().
		Str("product_id", req.ProductID).
		Int("quantity", req.Quantity).
		Str("reference_id", movement.ReferenceID).
		Str("actor", actor.Username).
		Msg("stock received")

	return *movement, nil
}

func (s *Service) RecordWastage(ctx context.Context, req domain.WastageRequest) (domain.StockMovement, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.StockMovement{}, err
	}
	if strings.TrimSpace(req.ProductID) == "" {
		return domain.StockMovement{}, fmt.Errorf("%w: product id is required", store.ErrValidation)
	}
	if strings.TrimSpace(req.Remarks) == "" {
		return domain.StockMovement{}, fmt.Errorf("%w: wastage remarks are required", store.ErrValidation)
	}

	movement, err := s.repo.RecordWastage(ctx, req.ProductID, req.Quantity, strings.TrimSpace(req.Remarks), time.Now().UTC())
	if err != nil {
		return domain.StockMovement{}, err
	}

	s.logger.Info().
		Str("product_id", req.ProductID).
		Int("quantity", req.Quantity).
		Str("actor", actor.Username).
		Msg("wastage recorded")

	return *movement, nil
}

func (s *Service) AdjustStock(ctx context.Context, req domain.StockAdjustmentRequest) (domain.StockMovement, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.StockMovement{}, err
	}
	if strings.TrimSpace(req.ProductID) == "" {
		return domain.StockMovement{}, fmt.Errorf("%w: product id is required", store.ErrValidation)
	}

	movement, err := s.repo.AdjustStock(ctx, req.ProductID, req.CountedQty, strings.TrimSpace(req.Remarks), time.Now().UTC())
	if err != nil {
		return domain.StockMovement{}, err
	}

	s.logger.Info().
		Str("product_id", req.ProductID).
		Int("counted_qty", req.CountedQty).
		Int("delta", movement.Quantity).
		Str("actor", actor.Username).
		Msg("stock adjusted")

	return *movement, nil
}

func (s *Service) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.StockMovement, error) {
	return s.repo.ListMovements(ctx, filter)
}

func (s *Service) SalesSummary(ctx context.Context, from, to time.Time) (domain.SalesSummary, error) {
	if !to.After(from) {
		return domain.SalesSummary{}, fmt.Errorf("%w: report range must end after it starts", store.ErrValidation)
	}

	key := fmt.Sprintf("reports:sales:%d:%d", from.Unix(), to.Unix())
	cached, hit, err := s.reports.GetSalesSummary(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Msg("sales summary cache read failed")
	} else if hit {
		return *cached, nil
	}

	summary, err := s.repo.SalesSummary(ctx, from, to)
	if err != nil {
		return domain.SalesSummary{}, err
	}

	if err := s.reports.SetSalesSummary(ctx, key, &summary, salesSummaryCacheTTL); err != nil {
		s.logger.Warn().Err(err).Msg("sales summary cache write failed")
	}
	return summary, nil
}

func (s *Service) MovementReport(ctx context.Context, from, to time.Time) (domain.InventoryMovementReport, error) {
	if !to.After(from) {
		return domain.InventoryMovementReport{}, fmt.Errorf("%w: report range must end after it starts", store.ErrValidation)
	}
	return s.repo.MovementReport(ctx, from, to)
}

func (s *Service) GetSettings(ctx context.Context) (domain.Settings, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.Settings{}, err
	}
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	return *settings, nil
}

func (s *Service) SetSuperAdminCode(ctx context.Context, req domain.SuperAdminCodeUpdateRequest) error {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return err
	}
	code := strings.TrimSpace(req.Code)
	if len(code) < 6 {
		return fmt.Errorf("%w: super admin code must be at least 6 characters", store.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateSuperAdminCode(ctx, string(hash), time.Now().UTC()); err != nil {
		return err
	}

	s.logger.Info().Str("actor", actor.Username).Msg("super admin code updated")
	return nil
}

// verifySuperAdminCode checks the shared approval secret. An unset code and a
// wrong code return the same error so callers cannot probe whether the code
// has been configured.
func (s *Service) verifySuperAdminCode(ctx context.Context, code string) error {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return err
	}
	if settings.SuperAdminCodeHash == "" {
		return fmt.Errorf("%w: invalid super admin code", store.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(settings.SuperAdminCodeHash), []byte(code)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("%w: invalid super admin code", store.ErrUnauthorized)
		}
		return err
	}
	return nil
}

func (s *Service) invalidateSalesReports(ctx context.Context) {
	if err := s.reports.Invalidate(ctx, "reports:sales:*"); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate sales report cache")
	}
}

func requireRole(ctx context.Context, role string) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, fmt.Errorf("%w: authentication required", store.ErrUnauthorized)
	}
	if actor.Role != role {
		return domain.Actor{}, fmt.Errorf("%w: %s role required", store.ErrUnauthorized, role)
	}
	return actor, nil
}
