package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/domain"
	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/refid"
	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	pricingHistory  map[string][]domain.PricingRevision
	salesByID       map[string]*domain.Sale
	saleIDByNumber  map[string]string
	movements       []domain.StockMovement
	saleCounters    map[string]int
	settings        domain.Settings
	settingsInit    bool
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		pricingHistory:  make(map[string][]domain.PricingRevision),
		salesByID:       make(map[string]*domain.Sale),
		saleIDByNumber:  make(map[string]string),
		movements:       make([]domain.StockMovement, 0, 256),
		saleCounters:    make(map[string]int),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD
// environment variables; hardcoded dev defaults are used with a warning when
// unset. The backend uses PostgreSQL when DATABASE_URL is set.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Warn().Msg("memory store: using default dev credentials, set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal().Err(err).Str("username", u.username).Msg("memory store: failed to hash seed password")
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()

	seed := []struct {
		name      string
		basePrice string
		markup    string
		stock     int
		threshold int
	}{
		{"Claw Hammer 16oz", "185.00", "25", 40, 10},
		{"Common Nails 1kg", "78.50", "20", 120, 30},
		{"Marine Plywood 1/4", "420.00", "15", 60, 15},
		{"Portland Cement 40kg", "260.00", "10", 200, 50},
		{"PVC Pipe 1/2 x 3m", "95.00", "30", 80, 20},
		{"Latex Paint White 4L", "640.00", "18", 35, 8},
		{"Paint Roller 7in", "115.00", "35", 50, 12},
		{"Steel Tape Measure 5m", "145.00", "28", 45, 10},
	}

	now := time.Now().UTC()
	for _, row := range seed {
		base, _ := decimal.NewFromString(row.basePrice)
		markup, _ := decimal.NewFromString(row.markup)
		product := domain.Product{
			ID:                uuid.NewString(),
			Name:              row.name,
			BasePrice:         base,
			MarkupPercentage:  markup,
			StockQuantity:     row.stock,
			LowStockThreshold: row.threshold,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		s.products[product.ID] = product
		s.movements = append(s.movements, domain.StockMovement{
			ID:               uuid.NewString(),
			ProductID:        product.ID,
			Type:             domain.MovementAdjustment,
			Quantity:         row.stock,
			PreviousQuantity: 0,
			NewQuantity:      row.stock,
			ReferenceID:      refid.New("ADJ"),
			Remarks:          "Initial stock",
			CreatedAt:        now,
		})
	}

	return s
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(product.Name) == "" {
		return nil, fmt.Errorf("%w: product name is required", store.ErrValidation)
	}
	if product.BasePrice.IsNegative() {
		return nil, fmt.Errorf("%w: base price must not be negative", store.ErrValidation)
	}
	if product.MarkupPercentage.IsNegative() || product.MarkupPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%w: markup percentage must be between 0 and 100", store.ErrValidation)
	}
	if product.StockQuantity < 0 {
		return nil, fmt.Errorf("%w: stock quantity must not be negative", store.ErrValidation)
	}

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.UpdatedAt = product.CreatedAt

	s.products[product.ID] = product
	if product.StockQuantity > 0 {
		s.movements = append(s.movements, domain.StockMovement{
			ID:               uuid.NewString(),
			ProductID:        product.ID,
			Type:             domain.MovementAdjustment,
			Quantity:         product.StockQuantity,
			PreviousQuantity: 0,
			NewQuantity:      product.StockQuantity,
			ReferenceID:      refid.New("ADJ"),
			Remarks:          "Initial stock",
			CreatedAt:        product.CreatedAt,
		})
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, id)
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if product, exists := s.products[id]; exists {
			result[id] = product
		}
	}
	return result, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) ListLowStockProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, 16)
	for _, p := range s.products {
		if p.StockQuantity <= p.LowStockThreshold {
			products = append(products, p)
		}
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return a.StockQuantity - b.StockQuantity
	})
	return products, nil
}

func (s *Store) UpdateProductPricing(_ context.Context, productID string, basePrice, markup decimal.Decimal, changedBy string, at time.Time) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
	}
	if basePrice.IsNegative() {
		return nil, fmt.Errorf("%w: base price must not be negative", store.ErrValidation)
	}
	if markup.IsNegative() || markup.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%w: markup percentage must be between 0 and 100", store.ErrValidation)
	}

	if product.BasePrice.Equal(basePrice) && product.MarkupPercentage.Equal(markup) {
		updated := product
		return &updated, nil
	}

	product.BasePrice = basePrice
	product.MarkupPercentage = markup
	product.UpdatedAt = at
	s.products[productID] = product

	s.pricingHistory[productID] = append(s.pricingHistory[productID], domain.PricingRevision{
		ID:               uuid.NewString(),
		ProductID:        productID,
		BasePrice:        basePrice,
		MarkupPercentage: markup,
		ChangedBy:        changedBy,
		ChangedAt:        at,
	})

	updated := product
	return &updated, nil
}

func (s *Store) ListPricingHistory(_ context.Context, productID string, limit int) ([]domain.PricingRevision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 50
	}
	history := s.pricingHistory[productID]
	result := make([]domain.PricingRevision, 0, limit)
	for i := len(history) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, history[i])
	}
	return result, nil
}

// nextSaleNumber allocates the next per-day sequence under the lock already
// held by the caller.
func (s *Store) nextSaleNumber(at time.Time) string {
	day := at.Format("20060102")
	s.saleCounters[day]++
	return fmt.Sprintf("SALE-%s-%04d", day, s.saleCounters[day])
}

func (s *Store) CreateSale(_ context.Context, draft store.SaleDraft) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(draft.Lines) == 0 {
		return nil, fmt.Errorf("%w: sale requires at least one item", store.ErrValidation)
	}
	at := draft.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	// Resolve products and verify stock before touching anything.
	type pendingLine struct {
		product domain.Product
		qty     int
	}
	pending := make([]pendingLine, 0, len(draft.Lines))
	need := make(map[string]int, len(draft.Lines))
	for _, line := range draft.Lines {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1", store.ErrValidation)
		}
		product, exists := s.products[line.ProductID]
		if !exists {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, line.ProductID)
		}
		need[line.ProductID] += line.Quantity
		pending = append(pending, pendingLine{product: product, qty: line.Quantity})
	}
	for productID, qty := range need {
		product := s.products[productID]
		if product.StockQuantity < qty {
			return nil, fmt.Errorf("%w: product %s has %d available, %d requested",
				store.ErrInsufficientStock, product.Name, product.StockQuantity, qty)
		}
	}

	// Price the cart and verify payment before any stock mutation.
	items := make([]domain.SaleItem, 0, len(pending))
	subtotal := decimal.Zero
	for _, line := range pending {
		unitPrice := line.product.SellingPrice()
		lineSubtotal := unitPrice.Mul(decimal.NewFromInt(int64(line.qty)))
		items = append(items, domain.SaleItem{
			ProductID:   line.product.ID,
			ProductName: line.product.Name,
			Quantity:    line.qty,
			UnitPrice:   unitPrice,
			Subtotal:    lineSubtotal,
		})
		subtotal = subtotal.Add(lineSubtotal)
	}
	tax := subtotal.Mul(domain.TaxRate).Round(2)
	total := subtotal.Add(tax)
	if draft.CashRendered.LessThan(total) {
		return nil, fmt.Errorf("%w: short by %s", store.ErrInsufficientPayment, total.Sub(draft.CashRendered))
	}

	saleNumber := s.nextSaleNumber(at)
	saleID := uuid.NewString()

	for productID, qty := range need {
		product := s.products[productID]
		previous := product.StockQuantity
		product.StockQuantity = previous - qty
		product.UpdatedAt = at
		s.products[productID] = product
		s.movements = append(s.movements, domain.StockMovement{
			ID:               uuid.NewString(),
			ProductID:        productID,
			Type:             domain.MovementSale,
			Quantity:         -qty,
			PreviousQuantity: previous,
			NewQuantity:      product.StockQuantity,
			ReferenceID:      saleNumber,
			CreatedAt:        at,
		})
	}

	sale := &domain.Sale{
		ID:           saleID,
		SaleNumber:   saleNumber,
		Items:        items,
		Subtotal:     subtotal,
		Tax:          tax,
		Total:        total,
		CashRendered: draft.CashRendered,
		ChangeDue:    draft.CashRendered.Sub(total),
		CashierID:    draft.CashierID,
		CustomerName: draft.CustomerName,
		CreatedAt:    at,
	}
	s.salesByID[saleID] = sale
	s.saleIDByNumber[saleNumber] = saleID

	copySale := cloneSale(sale)
	return &copySale, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, id)
	}
	copySale := cloneSale(sale)
	return &copySale, nil
}

func (s *Store) GetSaleByNumber(_ context.Context, saleNumber string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.saleIDByNumber[saleNumber]
	if !exists {
		return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, saleNumber)
	}
	copySale := cloneSale(s.salesByID[id])
	return &copySale, nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit < 1 {
		limit = 200
	}

	sales := make([]domain.Sale, 0, limit)
	for _, sale := range s.salesByID {
		if filter.From != nil && sale.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !sale.CreatedAt.Before(*filter.To) {
			continue
		}
		if filter.CashierID != "" && sale.CashierID != filter.CashierID {
			continue
		}
		if filter.VoidOnly && !sale.IsVoid {
			continue
		}
		if filter.ActiveOnly && sale.IsVoid {
			continue
		}
		if filter.VoidRequestStatus != "" && sale.VoidRequestStatus != filter.VoidRequestStatus {
			continue
		}
		sales = append(sales, cloneSale(sale))
	}

	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

func (s *Store) RequestVoid(_ context.Context, saleID string, reason string, requestedBy string, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: void reason is required", store.ErrValidation)
	}
	sale, exists := s.salesByID[saleID]
	if !exists {
		return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
	}
	if sale.IsVoid {
		return nil, fmt.Errorf("%w: sale %s is already void", store.ErrConflict, sale.SaleNumber)
	}
	if sale.VoidRequestStatus == domain.VoidStatusPending {
		return nil, fmt.Errorf("%w: sale %s already has a pending void request", store.ErrConflict, sale.SaleNumber)
	}

	sale.VoidRequestStatus = domain.VoidStatusPending
	sale.VoidRequestReason = reason
	sale.VoidRequestedBy = requestedBy
	sale.VoidRequestedAt = &at

	copySale := cloneSale(sale)
	return &copySale, nil
}

func (s *Store) ApproveVoid(_ context.Context, saleID string, approvedBy string, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[saleID]
	if !exists {
		return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
	}
	if sale.IsVoid {
		return nil, fmt.Errorf("%w: sale %s is already void", store.ErrConflict, sale.SaleNumber)
	}
	if sale.VoidRequestStatus != domain.VoidStatusPending {
		return nil, fmt.Errorf("%w: sale %s has no pending void request", store.ErrConflict, sale.SaleNumber)
	}

	for _, item := range sale.Items {
		product, exists := s.products[item.ProductID]
		if !exists {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, item.ProductID)
		}
		previous := product.StockQuantity
		product.StockQuantity = previous + item.Quantity
		product.UpdatedAt = at
		s.products[item.ProductID] = product
		s.movements = append(s.movements, domain.StockMovement{
			ID:               uuid.NewString(),
			ProductID:        item.ProductID,
			Type:             domain.MovementReturn,
			Quantity:         item.Quantity,
			PreviousQuantity: previous,
			NewQuantity:      product.StockQuantity,
			ReferenceID:      sale.ID,
			Remarks:          "Sale voided",
			CreatedAt:        at,
		})
	}

	sale.IsVoid = true
	sale.VoidedAt = &at
	sale.VoidedBy = approvedBy
	sale.VoidRequestStatus = domain.VoidStatusApproved

	copySale := cloneSale(sale)
	return &copySale, nil
}

func (s *Store) RejectVoid(_ context.Context, saleID string, rejectedBy string, reason string, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[saleID]
	if !exists {
		return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
	}
	if sale.VoidRequestStatus != domain.VoidStatusPending {
		return nil, fmt.Errorf("%w: sale %s has no pending void request", store.ErrConflict, sale.SaleNumber)
	}

	sale.VoidRequestStatus = domain.VoidStatusRejected
	if strings.TrimSpace(reason) != "" {
		sale.VoidRequestReason = sale.VoidRequestReason + " (rejected: " + reason + ")"
	}
	_ = rejectedBy

	copySale := cloneSale(sale)
	return &copySale, nil
}

func (s *Store) Restock(_ context.Context, productID string, quantity int, referenceID string, remarks string, at time.Time) (*domain.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity < 1 {
		return nil, fmt.Errorf("%w: restock quantity must be at least 1", store.ErrValidation)
	}
	product, exists := s.products[productID]
	if !exists {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
	}

	previous := product.StockQuantity
	product.StockQuantity = previous + quantity
	product.UpdatedAt = at
	s.products[productID] = product

	movement := domain.StockMovement{
		ID:               uuid.NewString(),
		ProductID:        productID,
		Type:             domain.MovementRestock,
		Quantity:         quantity,
		PreviousQuantity: previous,
		NewQuantity:      product.StockQuantity,
		ReferenceID:      referenceID,
		Remarks:          remarks,
		CreatedAt:        at,
	}
	s.movements = append(s.movements, movement)

	// COGS accumulates base price at restock time, not a historical cost.
	s.ensureSettings()
	cost := product.BasePrice.Mul(decimal.NewFromInt(int64(quantity)))
	s.settings.TotalCostOfGoods = s.settings.TotalCostOfGoods.Add(cost)
	s.settings.UpdatedAt = at

	return &movement, nil
}

func (s *Store) RecordWastage(_ context.Context, productID string, quantity int, remarks string, at time.Time) (*domain.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity < 1 {
		return nil, fmt.Errorf("%w: wastage quantity must be at least 1", store.ErrValidation)
	}
	product, exists := s.products[productID]
	if !exists {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
	}
	if product.StockQuantity < quantity {
		return nil, fmt.Errorf("%w: product %s has %d available, %d requested",
			store.ErrInsufficientStock, product.Name, product.StockQuantity, quantity)
	}

	previous := product.StockQuantity
	product.StockQuantity = previous - quantity
	product.UpdatedAt = at
	s.products[productID] = product

	movement := domain.StockMovement{
		ID:               uuid.NewString(),
		ProductID:        productID,
		Type:             domain.MovementWastage,
		Quantity:         -quantity,
		PreviousQuantity: previous,
		NewQuantity:      product.StockQuantity,
		ReferenceID:      refid.New("WST"),
		Remarks:          remarks,
		CreatedAt:        at,
	}
	s.movements = append(s.movements, movement)
	return &movement, nil
}

func (s *Store) AdjustStock(_ context.Context, productID string, countedQty int, remarks string, at time.Time) (*domain.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if countedQty < 0 {
		return nil, fmt.Errorf("%w: counted quantity must not be negative", store.ErrValidation)
	}
	product, exists := s.products[productID]
	if !exists {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
	}
	if product.StockQuantity == countedQty {
		return nil, fmt.Errorf("%w: counted quantity matches current stock", store.ErrValidation)
	}

	previous := product.StockQuantity
	product.StockQuantity = countedQty
	product.UpdatedAt = at
	s.products[productID] = product

	movement := domain.StockMovement{
		ID:               uuid.NewString(),
		ProductID:        productID,
		Type:             domain.MovementAdjustment,
		Quantity:         countedQty - previous,
		PreviousQuantity: previous,
		NewQuantity:      countedQty,
		ReferenceID:      refid.New("ADJ"),
		Remarks:          remarks,
		CreatedAt:        at,
	}
	s.movements = append(s.movements, movement)
	return &movement, nil
}

func (s *Store) ListMovements(_ context.Context, filter domain.MovementFilter) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit < 1 {
		limit = 200
	}

	result := make([]domain.StockMovement, 0, limit)
	for i := len(s.movements) - 1; i >= 0 && len(result) < limit; i-- {
		m := s.movements[i]
		if filter.ProductID != "" && m.ProductID != filter.ProductID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		if filter.From != nil && m.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !m.CreatedAt.Before(*filter.To) {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

func (s *Store) MovementReport(_ context.Context, from, to time.Time) (domain.InventoryMovementReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.InventoryMovementReport{
		From:     from,
		To:       to,
		Products: make([]domain.ProductMovementSummary, 0, len(s.products)),
	}

	summaries := make(map[string]*domain.ProductMovementSummary, len(s.products))
	for id, p := range s.products {
		summaries[id] = &domain.ProductMovementSummary{ProductID: id, ProductName: p.Name}
	}
	for _, m := range s.movements {
		summary, exists := summaries[m.ProductID]
		if !exists {
			continue
		}
		if m.CreatedAt.Before(from) {
			summary.BeginningQuantity += m.Quantity
			continue
		}
		if !m.CreatedAt.Before(to) {
			continue
		}
		if m.Quantity > 0 {
			summary.StockIn += m.Quantity
		} else {
			summary.StockOut += -m.Quantity
		}
	}
	for _, summary := range summaries {
		summary.EndingQuantity = summary.BeginningQuantity + summary.StockIn - summary.StockOut
		report.Products = append(report.Products, *summary)
	}
	slices.SortFunc(report.Products, func(a, b domain.ProductMovementSummary) int {
		return strings.Compare(a.ProductName, b.ProductName)
	})
	return report, nil
}

func (s *Store) SalesSummary(_ context.Context, from, to time.Time) (domain.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.SalesSummary{
		From:         from,
		To:           to,
		GrossSales:   decimal.Zero,
		TaxCollected: decimal.Zero,
		NetSales:     decimal.Zero,
	}
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		if sale.IsVoid {
			summary.VoidedCount++
			continue
		}
		summary.SaleCount++
		summary.GrossSales = summary.GrossSales.Add(sale.Total)
		summary.TaxCollected = summary.TaxCollected.Add(sale.Tax)
		for _, item := range sale.Items {
			summary.ItemsSold += int64(item.Quantity)
		}
	}
	summary.NetSales = summary.GrossSales.Sub(summary.TaxCollected)
	return summary, nil
}

// ensureSettings lazily creates the singleton under the caller's lock.
func (s *Store) ensureSettings() {
	if s.settingsInit {
		return
	}
	s.settings = domain.Settings{
		TotalCostOfGoods:      decimal.Zero,
		DefaultPasswordFormat: "lastname+MMDDYYYY",
		UpdatedAt:             time.Now().UTC(),
	}
	s.settingsInit = true
}

func (s *Store) GetSettings(_ context.Context) (*domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureSettings()
	copySettings := s.settings
	return &copySettings, nil
}

func (s *Store) UpdateSuperAdminCode(_ context.Context, hash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureSettings()
	s.settings.SuperAdminCodeHash = hash
	s.settings.UpdatedAt = at
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" {
		return fmt.Errorf("%w: username is required", store.ErrValidation)
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return fmt.Errorf("%w: username %s already exists", store.ErrConflict, user.Username)
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cloneSale(sale *domain.Sale) domain.Sale {
	copySale := *sale
	copySale.Items = slices.Clone(sale.Items)
	return copySale
}
