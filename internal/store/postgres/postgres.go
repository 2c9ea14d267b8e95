package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/domain"
	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/refid"
	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
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

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO products (id, name, base_price, markup_percentage, stock_quantity, low_stock_threshold, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
	`, product.ID, product.Name, product.BasePrice, product.MarkupPercentage, product.StockQuantity, product.LowStockThreshold, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: product %s already exists", store.ErrConflict, product.Name)
		}
		return nil, err
	}

	if product.StockQuantity > 0 {
		err = insertMovement(ctx, pgTx, domain.StockMovement{
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
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, base_price, markup_percentage, stock_quantity, low_stock_threshold, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&product.ID, &product.Name, &product.BasePrice, &product.MarkupPercentage,
		&product.StockQuantity, &product.LowStockThreshold, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, id)
		}
		return nil, err
	}
	product.CreatedAt = product.CreatedAt.UTC()
	product.UpdatedAt = product.UpdatedAt.UTC()
	return &product, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, base_price, markup_percentage, stock_quantity, low_stock_threshold, created_at, updated_at
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.BasePrice, &p.MarkupPercentage,
			&p.StockQuantity, &p.LowStockThreshold, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.listProducts(ctx, ``)
}

func (s *Store) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	return s.listProducts(ctx, `WHERE stock_quantity <= low_stock_threshold`)
}

func (s *Store) listProducts(ctx context.Context, where string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, base_price, markup_percentage, stock_quantity, low_stock_threshold, created_at, updated_at
		FROM products
	`+where+`
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.BasePrice, &p.MarkupPercentage,
			&p.StockQuantity, &p.LowStockThreshold, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) UpdateProductPricing(ctx context.Context, productID string, basePrice, markup decimal.Decimal, changedBy string, at time.Time) (*domain.Product, error) {
	if basePrice.IsNegative() {
		return nil, fmt.Errorf("%w: base price must not be negative", store.ErrValidation)
	}
	if markup.IsNegative() || markup.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%w: markup percentage must be between 0 and 100", store.ErrValidation)
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var product domain.Product
	err = pgTx.QueryRowContext(ctx, `
		SELECT id, name, base_price, markup_percentage, stock_quantity, low_stock_threshold, created_at, updated_at
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, productID).Scan(&product.ID, &product.Name, &product.BasePrice, &product.MarkupPercentage,
		&product.StockQuantity, &product.LowStockThreshold, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
		}
		return nil, err
	}

	if product.BasePrice.Equal(basePrice) && product.MarkupPercentage.Equal(markup) {
		return &product, nil
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE products
		SET base_price = $2, markup_percentage = $3, updated_at = $4
		WHERE id = $1
	`, productID, basePrice, markup, at)
	if err != nil {
		return nil, err
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO product_pricing_history (id, product_id, base_price, markup_percentage, changed_by, changed_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, uuid.NewString(), productID, basePrice, markup, changedBy, at)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	product.BasePrice = basePrice
	product.MarkupPercentage = markup
	product.UpdatedAt = at
	return &product, nil
}

func (s *Store) ListPricingHistory(ctx context.Context, productID string, limit int) ([]domain.PricingRevision, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, base_price, markup_percentage, changed_by, changed_at
		FROM product_pricing_history
		WHERE product_id = $1
		ORDER BY changed_at DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]domain.PricingRevision, 0, limit)
	for rows.Next() {
		var entry domain.PricingRevision
		if err := rows.Scan(&entry.ID, &entry.ProductID, &entry.BasePrice, &entry.MarkupPercentage, &entry.ChangedBy, &entry.ChangedAt); err != nil {
			return nil, err
		}
		entry.ChangedAt = entry.ChangedAt.UTC()
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}

// nextSaleNumber allocates the next per-day sequence inside the caller's
// transaction. The upsert keeps the counter atomic under concurrent sales.
func nextSaleNumber(ctx context.Context, pgTx *sql.Tx, at time.Time) (string, error) {
	day := at.Format("20060102")
	var seq int
	err := pgTx.QueryRowContext(ctx, `
		INSERT INTO sale_counters (day, seq)
		VALUES ($1, 1)
		ON CONFLICT (day)
		DO UPDATE SET seq = sale_counters.seq + 1
		RETURNING seq
	`, day).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SALE-%s-%04d", day, seq), nil
}

func insertMovement(ctx context.Context, pgTx *sql.Tx, m domain.StockMovement) error {
	_, err := pgTx.ExecContext(ctx, `
		INSERT INTO stock_movements (id, product_id, movement_type, quantity, previous_quantity, new_quantity, reference_id, remarks, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, m.ID, m.ProductID, m.Type, m.Quantity, m.PreviousQuantity, m.NewQuantity, m.ReferenceID, nullIfEmpty(m.Remarks), m.CreatedAt)
	return err
}

func (s *Store) CreateSale(ctx context.Context, draft store.SaleDraft) (*domain.Sale, error) {
	if len(draft.Lines) == 0 {
		return nil, fmt.Errorf("%w: sale requires at least one item", store.ErrValidation)
	}
	at := draft.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	need := make(map[string]int, len(draft.Lines))
	order := make([]string, 0, len(draft.Lines))
	for _, line := range draft.Lines {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1", store.ErrValidation)
		}
		if _, seen := need[line.ProductID]; !seen {
			order = append(order, line.ProductID)
		}
		need[line.ProductID] += line.Quantity
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	productRows, err := pgTx.QueryContext(ctx, `
		SELECT id, name, base_price, markup_percentage, stock_quantity
		FROM products
		WHERE id = ANY($1)
		FOR UPDATE
	`, order)
	if err != nil {
		return nil, err
	}
	productMap := make(map[string]domain.Product, len(order))
	for productRows.Next() {
		var p domain.Product
		if err := productRows.Scan(&p.ID, &p.Name, &p.BasePrice, &p.MarkupPercentage, &p.StockQuantity); err != nil {
			_ = productRows.Close()
			return nil, err
		}
		productMap[p.ID] = p
	}
	if err := productRows.Err(); err != nil {
		_ = productRows.Close()
		return nil, err
	}
	_ = productRows.Close()

	// Verify stock and price the cart before mutating anything. Payment
	// sufficiency is checked before the first decrement so a short payment
	// never touches inventory.
	items := make([]domain.SaleItem, 0, len(order))
	subtotal := decimal.Zero
	for _, productID := range order {
		product, exists := productMap[productID]
		if !exists {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
		}
		qty := need[productID]
		if product.StockQuantity < qty {
			return nil, fmt.Errorf("%w: product %s has %d available, %d requested",
				store.ErrInsufficientStock, product.Name, product.StockQuantity, qty)
		}
		unitPrice := product.SellingPrice()
		lineSubtotal := unitPrice.Mul(decimal.NewFromInt(int64(qty)))
		items = append(items, domain.SaleItem{
			ProductID:   productID,
			ProductName: product.Name,
			Quantity:    qty,
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

	saleNumber, err := nextSaleNumber(ctx, pgTx, at)
	if err != nil {
		return nil, err
	}
	saleID := uuid.NewString()

	for _, productID := range order {
		qty := need[productID]
		product := productMap[productID]
		res, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock_quantity = stock_quantity - $1, updated_at = $2
			WHERE id = $3 AND stock_quantity >= $1
		`, qty, at, productID)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, fmt.Errorf("%w: product %s", store.ErrInsufficientStock, product.Name)
		}

		err = insertMovement(ctx, pgTx, domain.StockMovement{
			ID:               uuid.NewString(),
			ProductID:        productID,
			Type:             domain.MovementSale,
			Quantity:         -qty,
			PreviousQuantity: product.StockQuantity,
			NewQuantity:      product.StockQuantity - qty,
			ReferenceID:      saleNumber,
			CreatedAt:        at,
		})
		if err != nil {
			return nil, err
		}
	}

	changeDue := draft.CashRendered.Sub(total)
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (
			id, sale_number, subtotal, tax, total, cash_rendered, change_due,
			cashier_id, customer_name, is_void, void_request_status, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,false,'',$10)
	`, saleID, saleNumber, subtotal, tax, total, draft.CashRendered, changeDue,
		draft.CashierID, nullIfEmpty(draft.CustomerName), at)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, product_name, quantity, unit_price, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, saleID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.Subtotal)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return &domain.Sale{
		ID:           saleID,
		SaleNumber:   saleNumber,
		Items:        items,
		Subtotal:     subtotal,
		Tax:          tax,
		Total:        total,
		CashRendered: draft.CashRendered,
		ChangeDue:    changeDue,
		CashierID:    draft.CashierID,
		CustomerName: draft.CustomerName,
		CreatedAt:    at,
	}, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	return s.findSale(ctx, "id", id)
}

func (s *Store) GetSaleByNumber(ctx context.Context, saleNumber string) (*domain.Sale, error) {
	return s.findSale(ctx, "sale_number", saleNumber)
}

func (s *Store) findSale(ctx context.Context, column string, value string) (*domain.Sale, error) {
	if column != "id" && column != "sale_number" {
		return nil, fmt.Errorf("unsupported lookup column")
	}

	var sale domain.Sale
	var customerName sql.NullString
	var voidedAt, voidRequestedAt sql.NullTime
	var voidedBy, voidRequestReason, voidRequestedBy sql.NullString

	query := fmt.Sprintf(`
		SELECT id, sale_number, subtotal, tax, total, cash_rendered, change_due,
			cashier_id, customer_name, is_void, voided_at, voided_by,
			void_request_status, void_request_reason, void_requested_by, void_requested_at,
			created_at
		FROM sales
		WHERE %s = $1
	`, column)

	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&sale.ID,
		&sale.SaleNumber,
		&sale.Subtotal,
		&sale.Tax,
		&sale.Total,
		&sale.CashRendered,
		&sale.ChangeDue,
		&sale.CashierID,
		&customerName,
		&sale.IsVoid,
		&voidedAt,
		&voidedBy,
		&sale.VoidRequestStatus,
		&voidRequestReason,
		&voidRequestedBy,
		&voidRequestedAt,
		&sale.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, value)
		}
		return nil, err
	}
	if customerName.Valid {
		sale.CustomerName = customerName.String
	}
	if voidedAt.Valid {
		at := voidedAt.Time.UTC()
		sale.VoidedAt = &at
	}
	if voidedBy.Valid {
		sale.VoidedBy = voidedBy.String
	}
	if voidRequestReason.Valid {
		sale.VoidRequestReason = voidRequestReason.String
	}
	if voidRequestedBy.Valid {
		sale.VoidRequestedBy = voidRequestedBy.String
	}
	if voidRequestedAt.Valid {
		at := voidRequestedAt.Time.UTC()
		sale.VoidRequestedAt = &at
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	items, err := s.listSaleItems(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	sale.Items = items
	return &sale, nil
}

func (s *Store) listSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, product_name, quantity, unit_price, subtotal
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id ASC
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice, &item.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 200
	}

	query := `
		SELECT id, sale_number, subtotal, tax, total, cash_rendered, change_due,
			cashier_id, customer_name, is_void, voided_at, voided_by,
			void_request_status, void_request_reason, void_requested_by, void_requested_at,
			created_at
		FROM sales
		WHERE 1=1
	`
	args := make([]any, 0, 6)
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	if filter.CashierID != "" {
		args = append(args, filter.CashierID)
		query += fmt.Sprintf(" AND cashier_id = $%d", len(args))
	}
	if filter.VoidOnly {
		query += " AND is_void = true"
	}
	if filter.ActiveOnly {
		query += " AND is_void = false"
	}
	if filter.VoidRequestStatus != "" {
		args = append(args, filter.VoidRequestStatus)
		query += fmt.Sprintf(" AND void_request_status = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	for rows.Next() {
		var sale domain.Sale
		var customerName sql.NullString
		var voidedAt, voidRequestedAt sql.NullTime
		var voidedBy, voidRequestReason, voidRequestedBy sql.NullString
		if err := rows.Scan(
			&sale.ID, &sale.SaleNumber, &sale.Subtotal, &sale.Tax, &sale.Total,
			&sale.CashRendered, &sale.ChangeDue, &sale.CashierID, &customerName,
			&sale.IsVoid, &voidedAt, &voidedBy, &sale.VoidRequestStatus,
			&voidRequestReason, &voidRequestedBy, &voidRequestedAt, &sale.CreatedAt,
		); err != nil {
			return nil, err
		}
		if customerName.Valid {
			sale.CustomerName = customerName.String
		}
		if voidedAt.Valid {
			at := voidedAt.Time.UTC()
			sale.VoidedAt = &at
		}
		if voidedBy.Valid {
			sale.VoidedBy = voidedBy.String
		}
		if voidRequestReason.Valid {
			sale.VoidRequestReason = voidRequestReason.String
		}
		if voidRequestedBy.Valid {
			sale.VoidRequestedBy = voidRequestedBy.String
		}
		if voidRequestedAt.Valid {
			at := voidRequestedAt.Time.UTC()
			sale.VoidRequestedAt = &at
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) RequestVoid(ctx context.Context, saleID string, reason string, requestedBy string, at time.Time) (*domain.Sale, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: void reason is required", store.ErrValidation)
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var saleNumber, status string
	var isVoid bool
	err = pgTx.QueryRowContext(ctx, `
		SELECT sale_number, is_void, void_request_status
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, saleID).Scan(&saleNumber, &isVoid, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
		}
		return nil, err
	}
	if isVoid {
		return nil, fmt.Errorf("%w: sale %s is already void", store.ErrConflict, saleNumber)
	}
	if status == domain.VoidStatusPending {
		return nil, fmt.Errorf("%w: sale %s already has a pending void request", store.ErrConflict, saleNumber)
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE sales
		SET void_request_status = $2, void_request_reason = $3, void_requested_by = $4, void_requested_at = $5
		WHERE id = $1
	`, saleID, domain.VoidStatusPending, reason, requestedBy, at)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return s.GetSaleByID(ctx, saleID)
}

func (s *Store) ApproveVoid(ctx context.Context, saleID string, approvedBy string, at time.Time) (*domain.Sale, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var saleNumber string
	var isVoid bool
	var requestStatus sql.NullString
	err = pgTx.QueryRowContext(ctx, `
		SELECT sale_number, is_void, void_request_status
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, saleID).Scan(&saleNumber, &isVoid, &requestStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
		}
		return nil, err
	}
	if isVoid {
		return nil, fmt.Errorf("%w: sale %s is already void", store.ErrConflict, saleNumber)
	}
	if requestStatus.String != domain.VoidStatusPending {
		return nil, fmt.Errorf("%w: sale %s has no pending void request", store.ErrConflict, saleNumber)
	}

	itemRows, err := pgTx.QueryContext(ctx, `
		SELECT product_id, quantity
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id ASC
	`, saleID)
	if err != nil {
		return nil, err
	}
	type returnLine struct {
		productID string
		qty       int
	}
	lines := make([]returnLine, 0, 8)
	for itemRows.Next() {
		var line returnLine
		if err := itemRows.Scan(&line.productID, &line.qty); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, err
	}
	_ = itemRows.Close()

	for _, line := range lines {
		var previous int
		err := pgTx.QueryRowContext(ctx, `
			UPDATE products
			SET stock_quantity = stock_quantity + $1, updated_at = $2
			WHERE id = $3
			RETURNING stock_quantity - $1
		`, line.qty, at, line.productID).Scan(&previous)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, line.productID)
			}
			return nil, err
		}
		err = insertMovement(ctx, pgTx, domain.StockMovement{
			ID:               uuid.NewString(),
			ProductID:        line.productID,
			Type:             domain.MovementReturn,
			Quantity:         line.qty,
			PreviousQuantity: previous,
			NewQuantity:      previous + line.qty,
			ReferenceID:      saleID,
			Remarks:          "Sale voided",
			CreatedAt:        at,
		})
		if err != nil {
			return nil, err
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE sales
		SET is_void = true, voided_at = $2, voided_by = $3, void_request_status = $4
		WHERE id = $1
	`, saleID, at, approvedBy, domain.VoidStatusApproved)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return s.GetSaleByID(ctx, saleID)
}

func (s *Store) RejectVoid(ctx context.Context, saleID string, rejectedBy string, reason string, at time.Time) (*domain.Sale, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sales
		SET void_request_status = $2,
			void_request_reason = CASE WHEN $3 <> ''
				THEN void_request_reason || ' (rejected: ' || $3 || ')'
				ELSE void_request_reason END
		WHERE id = $1 AND void_request_status = $4
	`, saleID, domain.VoidStatusRejected, strings.TrimSpace(reason), domain.VoidStatusPending)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		sale, lookupErr := s.GetSaleByID(ctx, saleID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		return nil, fmt.Errorf("%w: sale %s has no pending void request", store.ErrConflict, sale.SaleNumber)
	}
	_ = rejectedBy
	return s.GetSaleByID(ctx, saleID)
}

func (s *Store) Restock(ctx context.Context, productID string, quantity int, referenceID string, remarks string, at time.Time) (*domain.StockMovement, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: restock quantity must be at least 1", store.ErrValidation)
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var name string
	var basePrice decimal.Decimal
	var previous int
	err = pgTx.QueryRowContext(ctx, `
		SELECT name, base_price, stock_quantity
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, productID).Scan(&name, &basePrice, &previous)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
		}
		return nil, err
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $1, updated_at = $2
		WHERE id = $3
	`, quantity, at, productID)
	if err != nil {
		return nil, err
	}

	movement := domain.StockMovement{
		ID:               uuid.NewString(),
		ProductID:        productID,
		Type:             domain.MovementRestock,
		Quantity:         quantity,
		PreviousQuantity: previous,
		NewQuantity:      previous + quantity,
		ReferenceID:      referenceID,
		Remarks:          remarks,
		CreatedAt:        at,
	}
	if err := insertMovement(ctx, pgTx, movement); err != nil {
		return nil, err
	}

	// COGS accumulates base price at restock time.
	cost := basePrice.Mul(decimal.NewFromInt(int64(quantity)))
	if err := ensureSettingsRow(ctx, pgTx); err != nil {
		return nil, err
	}
	_, err = pgTx.ExecContext(ctx, `
		UPDATE settings
		SET total_cost_of_goods = total_cost_of_goods + $1, updated_at = $2
		WHERE id = 1
	`, cost, at)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &movement, nil
}

func (s *Store) RecordWastage(ctx context.Context, productID string, quantity int, remarks string, at time.Time) (*domain.StockMovement, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: wastage quantity must be at least 1", store.ErrValidation)
	}
	return s.decrementStock(ctx, productID, quantity, domain.MovementWastage, refid.New("WST"), remarks, at)
}

func (s *Store) decrementStock(ctx context.Context, productID string, quantity int, movementType string, referenceID string, remarks string, at time.Time) (*domain.StockMovement, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var name string
	var previous int
	err = pgTx.QueryRowContext(ctx, `
		SELECT name, stock_quantity
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, productID).Scan(&name, &previous)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
		}
		return nil, err
	}
	if previous < quantity {
		return nil, fmt.Errorf("%w: product %s has %d available, %d requested",
			store.ErrInsufficientStock, name, previous, quantity)
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $1, updated_at = $2
		WHERE id = $3
	`, quantity, at, productID)
	if err != nil {
		return nil, err
	}

	movement := domain.StockMovement{
		ID:               uuid.NewString(),
		ProductID:        productID,
		Type:             movementType,
		Quantity:         -quantity,
		PreviousQuantity: previous,
		NewQuantity:      previous - quantity,
		ReferenceID:      referenceID,
		Remarks:          remarks,
		CreatedAt:        at,
	}
	if err := insertMovement(ctx, pgTx, movement); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &movement, nil
}

func (s *Store) AdjustStock(ctx context.Context, productID string, countedQty int, remarks string, at time.Time) (*domain.StockMovement, error) {
	if countedQty < 0 {
		return nil, fmt.Errorf("%w: counted quantity must not be negative", store.ErrValidation)
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var previous int
	err = pgTx.QueryRowContext(ctx, `
		SELECT stock_quantity
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, productID).Scan(&previous)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
		}
		return nil, err
	}
	if previous == countedQty {
		return nil, fmt.Errorf("%w: counted quantity matches current stock", store.ErrValidation)
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = $1, updated_at = $2
		WHERE id = $3
	`, countedQty, at, productID)
	if err != nil {
		return nil, err
	}

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
	if err := insertMovement(ctx, pgTx, movement); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &movement, nil
}

func (s *Store) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.StockMovement, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 200
	}

	query := `
		SELECT id, product_id, movement_type, quantity, previous_quantity, new_quantity,
			reference_id, COALESCE(remarks,''), created_at
		FROM stock_movements
		WHERE 1=1
	`
	args := make([]any, 0, 5)
	if filter.ProductID != "" {
		args = append(args, filter.ProductID)
		query += fmt.Sprintf(" AND product_id = $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND movement_type = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.StockMovement, 0, limit)
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.Quantity, &m.PreviousQuantity,
			&m.NewQuantity, &m.ReferenceID, &m.Remarks, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = m.CreatedAt.UTC()
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

func (s *Store) MovementReport(ctx context.Context, from, to time.Time) (domain.InventoryMovementReport, error) {
	report := domain.InventoryMovementReport{
		From:     from,
		To:       to,
		Products: make([]domain.ProductMovementSummary, 0, 64),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name,
			COALESCE(SUM(m.quantity) FILTER (WHERE m.created_at < $1), 0)::int,
			COALESCE(SUM(m.quantity) FILTER (WHERE m.created_at >= $1 AND m.created_at < $2 AND m.quantity > 0), 0)::int,
			COALESCE(-SUM(m.quantity) FILTER (WHERE m.created_at >= $1 AND m.created_at < $2 AND m.quantity < 0), 0)::int
		FROM products p
		LEFT JOIN stock_movements m ON m.product_id = p.id
		GROUP BY p.id, p.name
		ORDER BY p.name
	`, from, to)
	if err != nil {
		return report, err
	}
	defer rows.Close()

	for rows.Next() {
		var row domain.ProductMovementSummary
		if err := rows.Scan(&row.ProductID, &row.ProductName, &row.BeginningQuantity, &row.StockIn, &row.StockOut); err != nil {
			return report, err
		}
		row.EndingQuantity = row.BeginningQuantity + row.StockIn - row.StockOut
		report.Products = append(report.Products, row)
	}
	if err := rows.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Store) SalesSummary(ctx context.Context, from, to time.Time) (domain.SalesSummary, error) {
	summary := domain.SalesSummary{From: from, To: to}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE NOT is_void)::bigint,
			COUNT(*) FILTER (WHERE is_void)::bigint,
			COALESCE(SUM(total) FILTER (WHERE NOT is_void), 0),
			COALESCE(SUM(tax) FILTER (WHERE NOT is_void), 0)
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&summary.SaleCount, &summary.VoidedCount, &summary.GrossSales, &summary.TaxCollected)
	if err != nil {
		return summary, err
	}
	summary.NetSales = summary.GrossSales.Sub(summary.TaxCollected)

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(si.quantity), 0)::bigint
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE s.created_at >= $1 AND s.created_at < $2 AND NOT s.is_void
	`, from, to).Scan(&summary.ItemsSold)
	if err != nil {
		return summary, err
	}
	return summary, nil
}

func ensureSettingsRow(ctx context.Context, pgTx *sql.Tx) error {
	_, err := pgTx.ExecContext(ctx, `
		INSERT INTO settings (id, super_admin_code_hash, total_cost_of_goods, default_password_format, updated_at)
		VALUES (1, '', 0, 'lastname+MMDDYYYY', now())
		ON CONFLICT (id) DO NOTHING
	`)
	return err
}

func (s *Store) GetSettings(ctx context.Context) (*domain.Settings, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if err := ensureSettingsRow(ctx, pgTx); err != nil {
		return nil, err
	}

	var settings domain.Settings
	err = pgTx.QueryRowContext(ctx, `
		SELECT super_admin_code_hash, total_cost_of_goods, default_password_format, updated_at
		FROM settings
		WHERE id = 1
	`).Scan(&settings.SuperAdminCodeHash, &settings.TotalCostOfGoods, &settings.DefaultPasswordFormat, &settings.UpdatedAt)
	if err != nil {
		return nil, err
	}
	settings.UpdatedAt = settings.UpdatedAt.UTC()

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *Store) UpdateSuperAdminCode(ctx context.Context, hash string, at time.Time) error {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	if err := ensureSettingsRow(ctx, pgTx); err != nil {
		return err
	}
	_, err = pgTx.ExecContext(ctx, `
		UPDATE settings
		SET super_admin_code_hash = $1, updated_at = $2
		WHERE id = 1
	`, hash, at)
	if err != nil {
		return err
	}
	return pgTx.Commit()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return fmt.Errorf("%w: username and password are required", store.ErrValidation)
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username %s already exists", store.ErrConflict, user.Username)
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: username and password are required", store.ErrValidation)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
