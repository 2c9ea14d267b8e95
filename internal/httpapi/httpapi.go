package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/domain"
	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/service"
	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	codeLimiter   *attemptLimiter
	csrfSecret    []byte
	logger        zerolog.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, logger zerolog.Logger) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// Fall back to a deterministic secret if crypto/rand fails (should not happen in practice).
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		codeLimiter:   newAttemptLimiter(8, time.Minute),
		csrfSecret:    csrfSecret,
		logger:        logger,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

// generateCSRFToken returns a token valid for the current hour bucket.
func (a *API) generateCSRFToken() string {
	now := time.Now().UTC()
	bucket := now.Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken checks whether the provided token matches the current or
// previous hour bucket, giving a 2-hour validity window.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	now := time.Now().UTC()
	currentBucket := now.Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(prevBucket)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)

	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/products/", a.requireAuth(a.handleProductActions, domain.RoleStaff, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/sales", a.requireAuth(a.handleSales, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/sales/", a.requireAuth(a.handleSaleActions, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/sales/return-replace", a.requireAuth(a.handleReturnReplace, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/restocks", a.requireAuth(a.handleRestocks, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/wastage", a.requireAuth(a.handleWastage, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/stock-adjustments", a.requireAuth(a.handleStockAdjustments, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/ledger", a.requireAuth(a.handleLedger, domain.RoleStaff, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/reports/sales-summary", a.requireAuth(a.handleSalesSummary, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/reports/inventory-movement", a.requireAuth(a.handleMovementReport, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/settings", a.requireAuth(a.handleSettings, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/settings/super-admin-code", a.requireAuth(a.handleSuperAdminCode, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/users/staff", a.requireAuth(a.handleStaff, domain.RoleAdmin))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// writeServiceError maps domain sentinel errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, store.ErrInsufficientStock):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, store.ErrInsufficientPayment):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, store.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour bucket.
// Clients must include this token in the X-CSRF-Token header for all mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// csrfExemptPaths lists paths that are exempt from CSRF validation.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces CSRF token validation for state-changing methods (POST/PUT/PATCH).
// Returns false and writes an error response if validation fails.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.service.ListProducts(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		product, err := a.service.CreateProduct(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/products/"
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}

	if tail == "low-stock" {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		products, err := a.service.ListLowStockProducts(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
		return
	}

	if strings.HasSuffix(tail, "/pricing-history") {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		productID := strings.Trim(strings.TrimSuffix(tail, "/pricing-history"), "/")
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 200)

		history, err := a.service.ListPricingHistory(r.Context(), productID, limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": history})
		return
	}

	if strings.HasSuffix(tail, "/pricing") {
		if r.Method != http.MethodPatch {
			writeMethodNotAllowed(w)
			return
		}
		productID := strings.Trim(strings.TrimSuffix(tail, "/pricing"), "/")

		var req domain.ProductPricingUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		updated, err := a.service.UpdateProductPricing(r.Context(), productID, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": updated})
		return
	}

	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	product, err := a.service.GetProduct(r.Context(), tail)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter, err := parseSaleFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sales, err := a.service.ListSales(r.Context(), filter)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
	case http.MethodPost:
		var req domain.CreateSaleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		sale, err := a.service.CreateSale(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/sales/"
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("sale id required"))
		return
	}

	switch {
	case strings.HasSuffix(tail, "/void-request"):
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		saleID := strings.Trim(strings.TrimSuffix(tail, "/void-request"), "/")

		var req domain.VoidRequestRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sale, err := a.service.RequestVoid(r.Context(), saleID, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sale": sale})

	case strings.HasSuffix(tail, "/void-approve"):
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		saleID := strings.Trim(strings.TrimSuffix(tail, "/void-approve"), "/")

		var req domain.VoidApproveRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if !a.codeLimiter.Allow("code:void:" + clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, errors.New("too many super admin code attempts"))
			return
		}
		sale, err := a.service.ApproveVoid(r.Context(), saleID, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sale": sale})

	case strings.HasSuffix(tail, "/void-reject"):
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		saleID := strings.Trim(strings.TrimSuffix(tail, "/void-reject"), "/")

		var req domain.VoidRejectRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sale, err := a.service.RejectVoid(r.Context(), saleID, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sale": sale})

	default:
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		sale, err := a.service.GetSale(r.Context(), tail)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
	}
}

func (a *API) handleReturnReplace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ReturnReplaceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !a.codeLimiter.Allow("code:return:" + clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many super admin code attempts"))
		return
	}

	resp, err := a.service.ReturnAndReplace(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRestocks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.RestockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	movement, err := a.service.Restock(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"movement": movement})
}

func (a *API) handleWastage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.WastageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	movement, err := a.service.RecordWastage(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"movement": movement})
}

func (a *API) handleStockAdjustments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.StockAdjustmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	movement, err := a.service.AdjustStock(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"movement": movement})
}

func (a *API) handleLedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	filter := domain.MovementFilter{
		ProductID: strings.TrimSpace(r.URL.Query().Get("product_id")),
		Type:      strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("type"))),
		Limit:     parsePositiveLimit(r.URL.Query().Get("limit"), 200, 500),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("from must be YYYY-MM-DD"))
			return
		}
		from := parsed.UTC()
		filter.From = &from
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("to must be YYYY-MM-DD"))
			return
		}
		to := parsed.UTC().Add(24 * time.Hour)
		filter.To = &to
	}

	movements, err := a.service.ListMovements(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (a *API) handleSalesSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	from, to, err := parseReportRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	summary, err := a.service.SalesSummary(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleMovementReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	from, to, err := parseReportRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	report, err := a.service.MovementReport(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	settings, err := a.service.GetSettings(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

func (a *API) handleSuperAdminCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.SuperAdminCodeUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := a.service.SetSuperAdminCode(r.Context(), req); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleStaff(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		staff := a.auth.ListStaff()
		writeJSON(w, http.StatusOK, map[string]any{"staff": staff})
	case http.MethodPost:
		var req domain.StaffCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		user, err := a.auth.CreateStaff(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"staff": user})
	default:
		writeMethodNotAllowed(w)
	}
}

// parseSaleFilter reads list query params. Dates are whole days in UTC.
func parseSaleFilter(r *http.Request) (domain.SaleFilter, error) {
	filter := domain.SaleFilter{
		CashierID:         strings.TrimSpace(r.URL.Query().Get("cashier_id")),
		VoidRequestStatus: strings.TrimSpace(r.URL.Query().Get("void_request_status")),
		Limit:             parsePositiveLimit(r.URL.Query().Get("limit"), 200, 500),
	}
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))) {
	case "void":
		filter.VoidOnly = true
	case "active":
		filter.ActiveOnly = true
	case "":
	default:
		return filter, errors.New("status must be active or void")
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, errors.New("from must be YYYY-MM-DD")
		}
		from := parsed.UTC()
		filter.From = &from
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, errors.New("to must be YYYY-MM-DD")
		}
		to := parsed.UTC().Add(24 * time.Hour)
		filter.To = &to
	}
	return filter, nil
}

// parseReportRange reads from/to dates, defaulting to the current UTC day.
func parseReportRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return from, to, errors.New("from must be YYYY-MM-DD")
		}
		from = parsed.UTC()
		to = from.Add(24 * time.Hour)
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return from, to, errors.New("to must be YYYY-MM-DD")
		}
		to = parsed.UTC().Add(24 * time.Hour)
	}
	return from, to, nil
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Enforce CSRF protection for all state-changing requests.
		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		a.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(startedAt)).
			Msg("request handled")
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// For 5xx responses, return a generic message to avoid leaking internal
	// implementation details (stack traces, SQL errors, file paths, etc.).
	// 4xx responses are user-facing so we return the original error message.
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
