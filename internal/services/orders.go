package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/ecoshop/ecoshop-go/internal/db"
	"github.com/ecoshop/ecoshop-go/internal/metrics"
	"github.com/ecoshop/ecoshop-go/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// validStatuses are the administrative order states. Transitions happen
// only through UpdateStatus, never from cart or checkout code.
var validStatuses = map[string]bool{
	models.OrderStatusNew:       true,
	models.OrderStatusConfirmed: true,
	models.OrderStatusCompleted: true,
}

// OrderService persists and queries order aggregates.
type OrderService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
}

// NewOrderService creates a new order service
func NewOrderService(db *db.DB, metrics *metrics.AppMetrics) *OrderService {
	return &OrderService{
		db:      db,
		metrics: metrics,
	}
}

// CreateOrder writes the order header and all its items in one
// transaction. Nothing of the order is observable unless the commit
// succeeds.
func (s *OrderService) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	start := time.Now()
	orderQuery := "INSERT INTO orders (user_id, phone, address, status) VALUES (?, ?, ?, ?)"
	result, err := tx.ExecContext(ctx, orderQuery, order.UserID, order.Phone, order.Address, models.OrderStatusNew)
	s.metrics.RecordDBQuery(ctx, "INSERT", "orders", orderQuery, start, err == nil)
	if err != nil {
		return nil, errors.Wrap(err, "insert order")
	}

	orderID, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "get order ID")
	}

	itemQuery := "INSERT INTO order_items (order_id, product_id, quantity, price_at_order) VALUES (?, ?, ?, ?)"
	for _, item := range items {
		start = time.Now()
		_, err = tx.ExecContext(ctx, itemQuery, orderID, item.ProductID, item.Quantity, item.PriceAtOrder)
		s.metrics.RecordDBQuery(ctx, "INSERT", "order_items", itemQuery, start, err == nil)
		if err != nil {
			return nil, errors.Wrapf(err, "insert order item for product %d", item.ProductID)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit order transaction")
	}

	return s.OrderByID(ctx, orderID, order.UserID)
}

// OrderByID returns the order with its items. The owner filter is part
// of the query itself; an order belonging to another user reads as not
// found.
func (s *OrderService) OrderByID(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	start := time.Now()
	query := "SELECT id, user_id, phone, address, status, created_at FROM orders WHERE id = ? AND user_id = ?"
	var order models.Order
	err := s.db.GetContext(ctx, &order, query, orderID, userID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}

	items, err := s.itemsForOrders(ctx, []int64{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	if order.Items == nil {
		order.Items = []models.OrderItem{}
	}
	return &order, nil
}

// ListOrders returns all of a user's orders, newest first, with items.
func (s *OrderService) ListOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	start := time.Now()
	query := "SELECT id, user_id, phone, address, status, created_at FROM orders WHERE user_id = ? ORDER BY created_at DESC"
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, query, userID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	if len(orders) == 0 {
		return orders, nil
	}

	orderIDs := make([]int64, len(orders))
	for i, order := range orders {
		orderIDs[i] = order.ID
	}

	itemsByOrder, err := s.itemsForOrders(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = itemsByOrder[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []models.OrderItem{}
		}
	}
	return orders, nil
}

// UpdateStatus advances an order's status. Administrative operation.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, status string) error {
	if !validStatuses[status] {
		return errors.Errorf("invalid status: %s", status)
	}

	start := time.Now()
	query := "UPDATE orders SET status = ? WHERE id = ?"
	result, err := s.db.ExecContext(ctx, query, status, orderID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "orders", query, start, err == nil)
	if err != nil {
		return errors.Wrap(err, "update order status")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "get rows affected")
	}
	if rowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// itemsForOrders loads the items of the given orders in one query.
func (s *OrderService) itemsForOrders(ctx context.Context, orderIDs []int64) (map[int64][]models.OrderItem, error) {
	query, args, err := sqlx.In("SELECT id, order_id, product_id, quantity, price_at_order FROM order_items WHERE order_id IN (?) ORDER BY id", orderIDs)
	if err != nil {
		return nil, errors.Wrap(err, "build order items query")
	}
	query = s.db.Rebind(query)

	start := time.Now()
	var items []models.OrderItem
	err = s.db.SelectContext(ctx, &items, query, args...)
	s.metrics.RecordDBQuery(ctx, "SELECT", "order_items", query, start, err == nil)
	if err != nil {
		return nil, errors.Wrap(err, "list order items")
	}

	byOrder := make(map[int64][]models.OrderItem, len(orderIDs))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	return byOrder, nil
}
