package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ecoshop/ecoshop-go/internal/db"
	"github.com/ecoshop/ecoshop-go/internal/metrics"
	"github.com/ecoshop/ecoshop-go/internal/middleware"
	"github.com/ecoshop/ecoshop-go/internal/models"
	"github.com/ecoshop/ecoshop-go/internal/services"
	"github.com/ecoshop/ecoshop-go/internal/session"
	"github.com/ecoshop/ecoshop-go/pkg/config"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// App holds application dependencies
type App struct {
	config   *config.Config
	db       *db.DB
	metrics  *metrics.AppMetrics
	sessions *session.Manager
	catalog  *services.CatalogService
	checkout *services.CheckoutService
	orders   *services.OrderService
	users    *services.UserService
	profiles *services.ProfileService
}

// NewApp creates a new application instance
func NewApp(
	cfg *config.Config,
	database *db.DB,
	m *metrics.AppMetrics,
	sessions *session.Manager,
	catalog *services.CatalogService,
	checkout *services.CheckoutService,
	orders *services.OrderService,
	users *services.UserService,
	profiles *services.ProfileService,
) *App {
	return &App{
		config:   cfg,
		db:       database,
		metrics:  m,
		sessions: sessions,
		catalog:  catalog,
		checkout: checkout,
		orders:   orders,
		users:    users,
		profiles: profiles,
	}
}

// SetupRoutes configures the HTTP routes
func (a *App) SetupRoutes(r *mux.Router) {
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.CORSMiddleware)
	r.Use(middleware.RecoverMiddleware)
	r.Use(middleware.AuthMiddleware)
	r.Use(middleware.MetricsMiddleware(a.metrics))

	api := r.PathPrefix("/api/v1").Subrouter()

	// Catalog
	api.HandleFunc("/products", a.ListProductsHandler).Methods("GET")
	api.HandleFunc("/products", a.CreateProductHandler).Methods("POST")
	api.HandleFunc("/products/{slug}", a.GetProductHandler).Methods("GET")
	api.HandleFunc("/categories", a.ListCategoriesHandler).Methods("GET")
	api.HandleFunc("/categories", a.CreateCategoryHandler).Methods("POST")
	api.HandleFunc("/suppliers", a.ListSuppliersHandler).Methods("GET")

	// Cart
	api.HandleFunc("/cart", a.GetCartHandler).Methods("GET")
	api.HandleFunc("/cart/summary", a.CartSummaryHandler).Methods("GET")
	api.HandleFunc("/cart/add/{id}", a.AddToCartHandler).Methods("POST")
	api.HandleFunc("/cart/remove/{id}", a.RemoveFromCartHandler).Methods("POST")

	// Checkout
	api.HandleFunc("/checkout", a.CheckoutFormHandler).Methods("GET")
	api.HandleFunc("/checkout", a.CheckoutHandler).Methods("POST")

	// Orders
	api.HandleFunc("/orders", a.ListOrdersHandler).Methods("GET")
	api.HandleFunc("/orders/{id}", a.GetOrderHandler).Methods("GET")
	api.HandleFunc("/orders/{id}/status", a.UpdateOrderStatusHandler).Methods("PUT")

	// Accounts
	api.HandleFunc("/users", a.CreateUserHandler).Methods("POST")
	api.HandleFunc("/profile", a.GetProfileHandler).Methods("GET")
	api.HandleFunc("/profile", a.UpdateProfileHandler).Methods("PUT")

	// Health
	r.HandleFunc("/health", a.HealthHandler).Methods("GET")
}

// orderResponse carries an order with its derived total.
type orderResponse struct {
	models.Order
	TotalPrice decimal.Decimal `json:"total_price"`
}

func newOrderResponse(order *models.Order) orderResponse {
	return orderResponse{Order: *order, TotalPrice: order.TotalPrice()}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondError maps domain errors onto the HTTP surface. Validation
// errors keep enough state for the caller to re-render the form.
func (a *App) respondError(w http.ResponseWriter, err error) {
	var contactErr *models.MissingContactInfoError
	switch {
	case errors.Is(err, models.ErrNotFound):
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, models.ErrEmptyCart):
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error":    "cart is empty",
			"redirect": "/api/v1/products",
		})
	case errors.As(err, &contactErr):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":           contactErr.Error(),
			"missing_phone":   contactErr.PhoneMissing(),
			"missing_address": contactErr.AddressMissing(),
			"phone":           contactErr.Phone,
			"address":         contactErr.Address,
		})
	case errors.Is(err, services.ErrUserExists):
		respondJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// requireUser resolves the authenticated user or answers 401 with a
// login URL preserving the originally requested path.
func (a *App) requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{
			"error":     "authentication required",
			"login_url": middleware.LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI()),
		})
		return 0, false
	}
	return userID, true
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[name], 10, 64)
}

// HealthHandler handles health check requests
func (a *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ListProductsHandler handles GET /api/v1/products
func (a *App) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 20
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil {
			offset = parsed
		}
	}

	var supplierID int64
	if s := r.URL.Query().Get("supplier"); s != "" {
		supplierID, _ = strconv.ParseInt(s, 10, 64)
	}

	products, err := a.catalog.ListProducts(r.Context(), r.URL.Query().Get("category"), supplierID, limit, offset)
	if err != nil {
		a.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// GetProductHandler handles GET /api/v1/products/{slug}
func (a *App) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	product, err := a.catalog.ProductBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		a.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// CreateProductHandler handles POST /api/v1/products
func (a *App) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" || req.CategoryID == 0 {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "name and category_id are required"})
		return
	}

	product, err := a.catalog.CreateProduct(r.Context(), &req)
	if err != nil {
		a.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

// ListCategoriesHandler handles GET /api/v1/categories
func (a *App) ListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	categories, err := a.catalog.ListCategories(r.Context())
	if err != nil {
		a.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

// CreateCategoryHandler handles POST /api/v1/categories
func (a *App) CreateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	category, err := a.catalog.CreateCategory(r.Context(), &req)
	if err != nil {
		a.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, category)
}

// ListSuppliersHandler handles GET /api/v1/suppliers
func (a *App) ListSuppliersHandler(w http.ResponseWriter, r *http.Request) {
	suppliers, err := a.catalog.ListSuppliers(r.Context())
	if err != nil {
		a.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, suppliers)
}

// AddToCartHandler handles POST /api/v1/cart/add/{id}
func (a *App) AddToCartHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "id")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	c, sid, err := a.sessions.Cart(w, r)
	if err != nil {
		a.respondError(w, err)
		return
	}

	if err := c.Add(r.Context(), a.catalog, productID); err != nil {
		a.respondError(w, err)
		return
	}

	a.recordCartSize(r, sid, c.Count())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "added",
		"summary": c.Summary(),
	})
}

// RemoveFromCartHandler handles POST /api/v1/cart/remove/{id}
func (a *App) RemoveFromCartHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "id")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	c, sid, err := a.sessions.Cart(w, r)
	if err != nil {
		a.respondError(w, err)
		return
	}

	c.Remove(productID)

	a.recordCartSize(r, sid, c.Count())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "removed",
		"summary": c.Summary(),
	})
}

// GetCartHandler handles GET /api/v1/cart
func (a *App) GetCartHandler(w http.ResponseWriter, r *http.Request) {
	c, _, err := a.sessions.Cart(w, r)
	if err != nil {
		a.respondError(w, err)
		return
	}

	lines, err := c.Items(r.Context(), a.catalog)
	if err != nil {
		// A deleted product fails the whole listing rather than being
		// silently dropped.
		a.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": lines,
		"total": c.Total(),
	})
}

// CartSummaryHandler handles GET /api/v1/cart/summary
func (a *App) CartSummaryHandler(w http.ResponseWriter, r *http.Request) {
	c, _, err := a.sessions.Cart(w, r)
	if err != nil {
		a.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c.Summary())
}

// CheckoutFormHandler handles GET /api/v1/checkout
func (a *App) CheckoutFormHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}

	c, _, err := a.sessions.Cart(w, r)
	if err != nil {
		a.respondError(w, err)
		return
	}
	if c.IsEmpty() {
		a.respondError(w, models.ErrEmptyCart)
		return
	}

	form, err := a.checkout.FormDefaults(r.Context(), c, userID)
	if err != nil {
		a.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, form)
}

// CheckoutHandler handles POST /api/v1/checkout
func (a *App) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}

	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	c, sid, err := a.sessions.Cart(w, r)
	if err != nil {
		a.respondError(w, err)
		return
	}

	order, err := a.checkout.Execute(r.Context(), c, req.Phone, req.Address, userID)
	if err != nil {
		a.respondError(w, err)
		return
	}

	a.recordCartSize(r, sid, c.Count())
	respondJSON(w, http.StatusCreated, newOrderResponse(order))
}

// ListOrdersHandler handles GET /api/v1/orders
func (a *App) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}

	orders, err := a.orders.ListOrders(r.Context(), userID)
	if err != nil {
		a.respondError(w, err)
		return
	}

	responses := make([]orderResponse, len(orders))
	for i := range orders {
		responses[i] = newOrderResponse(&orders[i])
	}
	respondJSON(w, http.StatusOK, responses)
}

// GetOrderHandler handles GET /api/v1/orders/{id}
func (a *App) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}

	orderID, err := pathID(r, "id")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := a.orders.OrderByID(r.Context(), orderID, userID)
	if err != nil {
		a.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newOrderResponse(order))
}

// UpdateOrderStatusHandler handles PUT /api/v1/orders/{id}/status.
// Administrative: this is the only way an order's status advances.
func (a *App) UpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := a.orders.UpdateStatus(r.Context(), orderID, req.Status); err != nil {
		a.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// CreateUserHandler handles POST /api/v1/users
func (a *App) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	user, err := a.users.CreateUser(r.Context(), req.Email, req.Name)
	if err != nil {
		if errors.Is(err, services.ErrUserExists) {
			if existing, lookupErr := a.users.GetUserByEmail(r.Context(), req.Email); lookupErr == nil {
				respondJSON(w, http.StatusConflict, existing)
				return
			}
		}
		a.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// GetProfileHandler handles GET /api/v1/profile
func (a *App) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}

	profile, err := a.profiles.EnsureProfile(r.Context(), userID)
	if err != nil {
		a.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// UpdateProfileHandler handles PUT /api/v1/profile
func (a *App) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}

	var req models.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	profile, err := a.profiles.UpdateProfile(r.Context(), userID, &req)
	if err != nil {
		a.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// recordCartSize updates the cart items gauge for the session.
func (a *App) recordCartSize(r *http.Request, sid string, count int) {
	a.metrics.CartItemsCount.Record(r.Context(), int64(count),
		metric.WithAttributes(a.metrics.WithServiceName([]attribute.KeyValue{
			attribute.String("session_id", sid),
		})...))
}
