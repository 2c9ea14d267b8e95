package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxRate is the VAT rate applied to every sale (12%).
var TaxRate = decimal.NewFromFloat(0.12)

type Product struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	BasePrice         decimal.Decimal `json:"base_price"`
	MarkupPercentage  decimal.Decimal `json:"markup_percentage"`
	StockQuantity     int             `json:"stock_quantity"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// SellingPrice is the unit price frozen into a sale item:
// basePrice + basePrice * markup/100, rounded to cents.
func (p Product) SellingPrice() decimal.Decimal {
	markup := p.BasePrice.Mul(p.MarkupPercentage).Div(decimal.NewFromInt(100))
	return p.BasePrice.Add(markup).Round(2)
}

type ProductCreateRequest struct {
	Name              string          `json:"name"`
	BasePrice         decimal.Decimal `json:"base_price"`
	MarkupPercentage  decimal.Decimal `json:"markup_percentage"`
	InitialStock      int             `json:"initial_stock"`
	LowStockThreshold int             `json:"low_stock_threshold"`
}

type ProductPricingUpdateRequest struct {
	BasePrice        *decimal.Decimal `json:"base_price,omitempty"`
	MarkupPercentage *decimal.Decimal `json:"markup_percentage,omitempty"`
}

// PricingRevision is one append-only entry of a product's pricing history,
// written whenever base price or markup changes.
type PricingRevision struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"product_id"`
	BasePrice        decimal.Decimal `json:"base_price"`
	MarkupPercentage decimal.Decimal `json:"markup_percentage"`
	ChangedBy        string          `json:"changed_by"`
	ChangedAt        time.Time       `json:"changed_at"`
}

type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type SaleItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

const (
	VoidStatusNone     = ""
	VoidStatusPending  = "pending"
	VoidStatusApproved = "approved"
	VoidStatusRejected = "rejected"
)

type Sale struct {
	ID           string          `json:"id"`
	SaleNumber   string          `json:"sale_number"`
	Items        []SaleItem      `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Tax          decimal.Decimal `json:"tax"`
	Total        decimal.Decimal `json:"total"`
	CashRendered decimal.Decimal `json:"cash_rendered"`
	ChangeDue    decimal.Decimal `json:"change_due"`
	CashierID    string          `json:"cashier_id"`
	CustomerName string          `json:"customer_name,omitempty"`

	IsVoid            bool       `json:"is_void"`
	VoidedAt          *time.Time `json:"voided_at,omitempty"`
	VoidedBy          string     `json:"voided_by,omitempty"`
	VoidRequestStatus string     `json:"void_request_status,omitempty"`
	VoidRequestReason string     `json:"void_request_reason,omitempty"`
	VoidRequestedBy   string     `json:"void_requested_by,omitempty"`
	VoidRequestedAt   *time.Time `json:"void_requested_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type CreateSaleRequest struct {
	Items         []CartLine      `json:"items"`
	PaymentMethod string          `json:"payment_method"`
	CashRendered  decimal.Decimal `json:"cash_rendered"`
	CustomerName  string          `json:"customer_name,omitempty"`
}

type VoidRequestRequest struct {
	Reason string `json:"reason"`
}

type VoidApproveRequest struct {
	SuperAdminCode string `json:"super_admin_code"`
}

type VoidRejectRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ReturnReplaceRequest drives the two-step return-and-replace saga: a void
// request on the original sale followed by a fresh replacement sale.
type ReturnReplaceRequest struct {
	OriginalSaleID   string          `json:"original_sale_id"`
	Reason           string          `json:"reason"`
	SuperAdminCode   string          `json:"super_admin_code"`
	ReplacementItems []CartLine      `json:"replacement_items"`
	PaymentMethod    string          `json:"payment_method"`
	CashRendered     decimal.Decimal `json:"cash_rendered"`
}

type ReturnReplaceResponse struct {
	OriginalSale    Sale `json:"original_sale"`
	ReplacementSale Sale `json:"replacement_sale"`
}

// Stock movement types recorded in the ledger.
const (
	MovementSale       = "SALE"
	MovementRestock    = "RESTOCK"
	MovementReturn     = "RETURN"
	MovementWastage    = "WASTAGE"
	MovementAdjustment = "ADJUSTMENT"
)

// StockMovement is one immutable ledger entry: a single signed stock change
// for one product. Invariant: NewQuantity == PreviousQuantity + Quantity.
type StockMovement struct {
	ID               string    `json:"id"`
	ProductID        string    `json:"product_id"`
	Type             string    `json:"type"`
	Quantity         int       `json:"quantity"`
	PreviousQuantity int       `json:"previous_quantity"`
	NewQuantity      int       `json:"new_quantity"`
	ReferenceID      string    `json:"reference_id"`
	Remarks          string    `json:"remarks,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type RestockRequest struct {
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	DateDelivered string `json:"date_delivered,omitempty"`
}

type WastageRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Remarks   string `json:"remarks"`
}

type StockAdjustmentRequest struct {
	ProductID  string `json:"product_id"`
	CountedQty int    `json:"counted_qty"`
	Remarks    string `json:"remarks,omitempty"`
}

// Settings is the singleton configuration record. SuperAdminCodeHash is the
// bcrypt hash of the shared void-approval secret; empty means unset.
type Settings struct {
	SuperAdminCodeHash    string          `json:"-"`
	TotalCostOfGoods      decimal.Decimal `json:"total_cost_of_goods"`
	DefaultPasswordFormat string          `json:"default_password_format"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

type SuperAdminCodeUpdateRequest struct {
	Code string `json:"code"`
}

type SaleFilter struct {
	From              *time.Time
	To                *time.Time
	CashierID         string
	VoidOnly          bool
	ActiveOnly        bool
	VoidRequestStatus string
	Limit             int
}

type MovementFilter struct {
	ProductID string
	Type      string
	From      *time.Time
	To        *time.Time
	Limit     int
}

type SalesSummary struct {
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	SaleCount    int64           `json:"sale_count"`
	VoidedCount  int64           `json:"voided_count"`
	GrossSales   decimal.Decimal `json:"gross_sales"`
	TaxCollected decimal.Decimal `json:"tax_collected"`
	NetSales     decimal.Decimal `json:"net_sales"`
	ItemsSold    int64           `json:"items_sold"`
}

// ProductMovementSummary is one row of the inventory-movement report.
type ProductMovementSummary struct {
	ProductID         string `json:"product_id"`
	ProductName       string `json:"product_name"`
	BeginningQuantity int    `json:"beginning_quantity"`
	StockIn           int    `json:"stock_in"`
	StockOut          int    `json:"stock_out"`
	EndingQuantity    int    `json:"ending_quantity"`
}

type InventoryMovementReport struct {
	From     time.Time                `json:"from"`
	To       time.Time                `json:"to"`
	Products []ProductMovementSummary `json:"products"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
