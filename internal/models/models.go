package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses. A status only advances through administrative action,
// never from cart or checkout code.
const (
	OrderStatusNew       = "new"
	OrderStatusConfirmed = "confirmed"
	OrderStatusCompleted = "completed"
)

// Category groups products and is addressed by a unique slug.
type Category struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

// Supplier describes a product supplier with contact and geolocation data.
type Supplier struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Address     string          `json:"address" db:"address"`
	Latitude    decimal.Decimal `json:"latitude" db:"latitude"`
	Longitude   decimal.Decimal `json:"longitude" db:"longitude"`
	Phone       string          `json:"phone" db:"phone"`
	Email       string          `json:"email" db:"email"`
	Website     string          `json:"website" db:"website"`
	IsActive    bool            `json:"is_active" db:"is_active"`
}

// Product represents a product in the catalog.
type Product struct {
	ID          int64           `json:"id" db:"id"`
	CategoryID  int64           `json:"category_id" db:"category_id"`
	SupplierID  *int64          `json:"supplier_id,omitempty" db:"supplier_id"`
	Name        string          `json:"name" db:"name"`
	Slug        string          `json:"slug" db:"slug"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Weight      string          `json:"weight" db:"weight"`
	Calories    string          `json:"calories" db:"calories"`
	Protein     string          `json:"protein" db:"protein"`
	Fat         string          `json:"fat" db:"fat"`
	Carbs       string          `json:"carbs" db:"carbs"`
	InStock     bool            `json:"in_stock" db:"in_stock"`
}

// User represents a user account. Credentials live in the identity
// provider; only the reference is stored here.
type User struct {
	ID        int64     `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Profile holds a user's saved checkout defaults.
type Profile struct {
	UserID         int64  `json:"user_id" db:"user_id"`
	Phone          string `json:"phone" db:"phone"`
	DefaultAddress string `json:"default_address" db:"default_address"`
}

// Order is the durable result of a checkout: a header plus immutable
// line items, each carrying the price at the moment the order was placed.
type Order struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Phone     string    `json:"phone" db:"phone"`
	Address   string    `json:"address" db:"address"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Items []OrderItem `json:"items" db:"-"`
}

// TotalPrice sums quantity * priceAtOrder over the order's items. It is
// always derived from the stored items, never cached on the header.
func (o *Order) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.TotalPrice())
	}
	return total
}

// OrderItem is a single line of an order. PriceAtOrder is the snapshot
// taken from the cart entry at checkout time and never changes afterwards.
type OrderItem struct {
	ID           int64           `json:"id" db:"id"`
	OrderID      int64           `json:"order_id" db:"order_id"`
	ProductID    int64           `json:"product_id" db:"product_id"`
	Quantity     int             `json:"quantity" db:"quantity"`
	PriceAtOrder decimal.Decimal `json:"price_at_order" db:"price_at_order"`
}

// TotalPrice returns quantity * priceAtOrder for this line.
func (i *OrderItem) TotalPrice() decimal.Decimal {
	return i.PriceAtOrder.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CheckoutRequest represents a submitted checkout form.
type CheckoutRequest struct {
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// CheckoutForm is the pre-filled state of the checkout form.
type CheckoutForm struct {
	Phone      string          `json:"phone"`
	Address    string          `json:"address"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// CreateProductRequest represents a request to create a product.
type CreateProductRequest struct {
	CategoryID  int64           `json:"category_id"`
	SupplierID  *int64          `json:"supplier_id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Weight      string          `json:"weight"`
	Calories    string          `json:"calories"`
	Protein     string          `json:"protein"`
	Fat         string          `json:"fat"`
	Carbs       string          `json:"carbs"`
	InStock     bool            `json:"in_stock"`
}

// CreateCategoryRequest represents a request to create a category.
type CreateCategoryRequest struct {
	Name string `json:"name"`
}

// CreateUserRequest represents a request to create a user.
type CreateUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// UpdateProfileRequest represents a request to update profile defaults.
type UpdateProfileRequest struct {
	Phone          string `json:"phone"`
	DefaultAddress string `json:"default_address"`
}
