package services

import (
	"context"
	"sort"
	"time"

	"github.com/ecoshop/ecoshop-go/internal/cart"
	"github.com/ecoshop/ecoshop-go/internal/metrics"
	"github.com/ecoshop/ecoshop-go/internal/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OrderCreator persists an order header plus its items atomically.
type OrderCreator interface {
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) (*models.Order, error)
}

// ProfileReader supplies a user's saved checkout defaults.
type ProfileReader interface {
	EnsureProfile(ctx context.Context, userID int64) (*models.Profile, error)
}

// CheckoutService converts a session cart into a durable order.
type CheckoutService struct {
	orders   OrderCreator
	profiles ProfileReader
	metrics  *metrics.AppMetrics
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(orders OrderCreator, profiles ProfileReader, metrics *metrics.AppMetrics) *CheckoutService {
	return &CheckoutService{
		orders:   orders,
		profiles: profiles,
		metrics:  metrics,
	}
}

// Execute validates the cart and contact fields, materializes the order
// with price snapshots from the cart entries, and clears the cart.
//
// Precondition order matters: an empty cart wins over missing contact
// info. The cart is cleared only after the order transaction commits;
// on any failure it is left intact so the user can retry.
func (s *CheckoutService) Execute(ctx context.Context, c *cart.Cart, phone, address string, userID int64) (*models.Order, error) {
	if c.IsEmpty() {
		return nil, models.ErrEmptyCart
	}
	if phone == "" || address == "" {
		return nil, &models.MissingContactInfoError{Phone: phone, Address: address}
	}

	entries := c.Entries()

	productIDs := make([]int64, 0, len(entries))
	for productID := range entries {
		productIDs = append(productIDs, productID)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	items := make([]models.OrderItem, 0, len(entries))
	for _, productID := range productIDs {
		entry := entries[productID]
		items = append(items, models.OrderItem{
			ProductID:    productID,
			Quantity:     entry.Quantity,
			PriceAtOrder: entry.UnitPrice,
		})
	}

	order := &models.Order{
		UserID:    userID,
		Phone:     phone,
		Address:   address,
		Status:    models.OrderStatusNew,
		CreatedAt: time.Now(),
	}

	created, err := s.orders.CreateOrder(ctx, order, items)
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	c.Clear()

	total := created.TotalPrice()
	if s.metrics != nil {
		attrs := s.metrics.WithServiceName([]attribute.KeyValue{
			attribute.String("order_status", created.Status),
		})
		s.metrics.OrdersCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
		s.metrics.RevenueTotal.Add(ctx, total.InexactFloat64(), metric.WithAttributes(attrs...))
	}

	logrus.WithFields(logrus.Fields{
		"order_id": created.ID,
		"user_id":  userID,
		"items":    len(created.Items),
		"total":    total.StringFixed(2),
	}).Info("order created")

	return created, nil
}

// FormDefaults returns the checkout form's pre-fill state: phone and
// address from the user's profile defaults (empty when unset) plus the
// current cart total. Read path only; nothing is mutated except the
// profile upsert's default construction.
func (s *CheckoutService) FormDefaults(ctx context.Context, c *cart.Cart, userID int64) (*models.CheckoutForm, error) {
	profile, err := s.profiles.EnsureProfile(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load profile defaults")
	}

	return &models.CheckoutForm{
		Phone:      profile.Phone,
		Address:    profile.DefaultAddress,
		TotalPrice: c.Total(),
	}, nil
}
