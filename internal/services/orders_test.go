package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoshop/ecoshop-go/internal/db"
	"github.com/ecoshop/ecoshop-go/internal/metrics"
	"github.com/ecoshop/ecoshop-go/internal/models"
)

func newMockOrderService(t *testing.T) (*OrderService, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	wrapped := &db.DB{DB: sqlx.NewDb(mockDB, "mysql")}
	return NewOrderService(wrapped, metrics.NewNoop()), mock
}

func orderRows(orderID, userID int64, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "phone", "address", "status", "created_at"}).
		AddRow(orderID, userID, "+71234567890", "Lenina 1", status, time.Now())
}

func TestCreateOrderCommitsHeaderAndItems(t *testing.T) {
	svc, mock := newMockOrderService(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders (user_id, phone, address, status) VALUES (?, ?, ?, ?)")).
		WithArgs(int64(7), "+71234567890", "Lenina 1", models.OrderStatusNew).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items (order_id, product_id, quantity, price_at_order) VALUES (?, ?, ?, ?)")).
		WithArgs(int64(42), int64(1), 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items")).
		WithArgs(int64(42), int64(2), 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, phone, address, status, created_at FROM orders WHERE id = ? AND user_id = ?")).
		WithArgs(int64(42), int64(7)).
		WillReturnRows(orderRows(42, 7, models.OrderStatusNew))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, order_id, product_id, quantity, price_at_order FROM order_items WHERE order_id IN (?)")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "quantity", "price_at_order"}).
			AddRow(1, 42, 1, 2, "100.00").
			AddRow(2, 42, 2, 1, "50.00"))

	order, err := svc.CreateOrder(context.Background(),
		&models.Order{UserID: 7, Phone: "+71234567890", Address: "Lenina 1"},
		[]models.OrderItem{
			{ProductID: 1, Quantity: 2, PriceAtOrder: decimal.RequireFromString("100.00")},
			{ProductID: 2, Quantity: 1, PriceAtOrder: decimal.RequireFromString("50.00")},
		})
	require.NoError(t, err)

	assert.Equal(t, int64(42), order.ID)
	assert.Equal(t, models.OrderStatusNew, order.Status)
	require.Len(t, order.Items, 2)
	assert.True(t, order.TotalPrice().Equal(decimal.RequireFromString("250.00")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderRollsBackOnItemFailure(t *testing.T) {
	svc, mock := newMockOrderService(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WithArgs(int64(7), "+71234567890", "Lenina 1", models.OrderStatusNew).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items")).
		WithArgs(int64(42), int64(1), 2, sqlmock.AnyArg()).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := svc.CreateOrder(context.Background(),
		&models.Order{UserID: 7, Phone: "+71234567890", Address: "Lenina 1"},
		[]models.OrderItem{{ProductID: 1, Quantity: 2, PriceAtOrder: decimal.RequireFromString("100.00")}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "the transaction must be rolled back, never committed")
}

func TestOrderByIDScopedToOwner(t *testing.T) {
	svc, mock := newMockOrderService(t)

	// The owner filter lives in the query: another user's ID yields no
	// rows, reported as not found.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, phone, address, status, created_at FROM orders WHERE id = ? AND user_id = ?")).
		WithArgs(int64(42), int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "phone", "address", "status", "created_at"}))

	_, err := svc.OrderByID(context.Background(), 42, 99)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderByIDLoadsItems(t *testing.T) {
	svc, mock := newMockOrderService(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = ? AND user_id = ?")).
		WithArgs(int64(42), int64(7)).
		WillReturnRows(orderRows(42, 7, models.OrderStatusConfirmed))
	mock.ExpectQuery(regexp.QuoteMeta("FROM order_items WHERE order_id IN (?)")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "quantity", "price_at_order"}).
			AddRow(1, 42, 5, 3, "33.50"))

	order, err := svc.OrderByID(context.Background(), 42, 7)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(5), order.Items[0].ProductID)
	assert.True(t, order.TotalPrice().Equal(decimal.RequireFromString("100.50")))
}

func TestListOrdersNewestFirstWithItems(t *testing.T) {
	svc, mock := newMockOrderService(t)

	rows := sqlmock.NewRows([]string{"id", "user_id", "phone", "address", "status", "created_at"}).
		AddRow(2, 7, "+71234567890", "Lenina 1", models.OrderStatusNew, time.Now()).
		AddRow(1, 7, "+71234567890", "Lenina 1", models.OrderStatusCompleted, time.Now().Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE user_id = ? ORDER BY created_at DESC")).
		WithArgs(int64(7)).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM order_items WHERE order_id IN (?, ?)")).
		WithArgs(int64(2), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "quantity", "price_at_order"}).
			AddRow(10, 1, 3, 1, "75.00").
			AddRow(11, 2, 4, 2, "20.00"))

	orders, err := svc.ListOrders(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, int64(2), orders[0].ID, "newest order first")
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, int64(4), orders[0].Items[0].ProductID)
	require.Len(t, orders[1].Items, 1)
	assert.Equal(t, int64(3), orders[1].Items[0].ProductID)
}

func TestListOrdersEmpty(t *testing.T) {
	svc, mock := newMockOrderService(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE user_id = ?")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "phone", "address", "status", "created_at"}))

	orders, err := svc.ListOrders(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.NoError(t, mock.ExpectationsWereMet(), "no item query for an empty order list")
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc, mock := newMockOrderService(t)

	err := svc.UpdateStatus(context.Background(), 42, "shipped")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
	assert.NoError(t, mock.ExpectationsWereMet(), "invalid statuses never reach the database")
}

func TestUpdateStatusNotFound(t *testing.T) {
	svc, mock := newMockOrderService(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = ? WHERE id = ?")).
		WithArgs(models.OrderStatusConfirmed, int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.UpdateStatus(context.Background(), 404, models.OrderStatusConfirmed)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	svc, mock := newMockOrderService(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = ? WHERE id = ?")).
		WithArgs(models.OrderStatusCompleted, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.UpdateStatus(context.Background(), 42, models.OrderStatusCompleted))
	assert.NoError(t, mock.ExpectationsWereMet())
}
