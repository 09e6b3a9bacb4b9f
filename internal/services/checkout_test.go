package services

import (
	"context"
	"testing"

	"github.com/ecoshop/ecoshop-go/internal/cart"
	"github.com/ecoshop/ecoshop-go/internal/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	products map[int64]models.Product
}

func (c *stubCatalog) ProductByID(_ context.Context, id int64) (*models.Product, error) {
	p, ok := c.products[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

type mockOrderCreator struct {
	createdOrder *models.Order
	createdItems []models.OrderItem
	failWith     error
	calls        int
}

func (m *mockOrderCreator) CreateOrder(_ context.Context, order *models.Order, items []models.OrderItem) (*models.Order, error) {
	m.calls++
	if m.failWith != nil {
		return nil, m.failWith
	}

	created := *order
	created.ID = 1
	created.Items = make([]models.OrderItem, len(items))
	for i, item := range items {
		item.ID = int64(i + 1)
		item.OrderID = created.ID
		created.Items[i] = item
	}

	m.createdOrder = &created
	m.createdItems = created.Items
	return &created, nil
}

type mockProfileReader struct {
	profile *models.Profile
	err     error
}

func (m *mockProfileReader) EnsureProfile(_ context.Context, userID int64) (*models.Profile, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.profile != nil {
		return m.profile, nil
	}
	return &models.Profile{UserID: userID}, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func cartWith(t *testing.T, catalog *stubCatalog, adds map[int64]int) *cart.Cart {
	t.Helper()
	ctx := context.Background()
	c := cart.New()
	for productID, quantity := range adds {
		for i := 0; i < quantity; i++ {
			require.NoError(t, c.Add(ctx, catalog, productID))
		}
	}
	return c
}

func TestExecuteEmptyCart(t *testing.T) {
	repo := &mockOrderCreator{}
	checkout := NewCheckoutService(repo, &mockProfileReader{}, nil)

	_, err := checkout.Execute(context.Background(), cart.New(), "+71234567890", "Test street 1", 7)

	require.ErrorIs(t, err, models.ErrEmptyCart)
	assert.Zero(t, repo.calls, "no order must be created for an empty cart")
}

func TestExecuteMissingAddressEchoesForm(t *testing.T) {
	catalog := &stubCatalog{products: map[int64]models.Product{
		1: {ID: 1, Price: dec("150.00")},
	}}
	c := cartWith(t, catalog, map[int64]int{1: 1})

	repo := &mockOrderCreator{}
	checkout := NewCheckoutService(repo, &mockProfileReader{}, nil)

	_, err := checkout.Execute(context.Background(), c, "+71234567890", "", 7)

	var contactErr *models.MissingContactInfoError
	require.ErrorAs(t, err, &contactErr)
	assert.Equal(t, "+71234567890", contactErr.Phone)
	assert.Equal(t, "", contactErr.Address)
	assert.False(t, contactErr.PhoneMissing())
	assert.True(t, contactErr.AddressMissing())

	assert.Zero(t, repo.calls, "no order must be created without contact info")
	assert.False(t, c.IsEmpty(), "cart must survive a validation failure")
}

func TestExecuteMissingPhoneEchoesForm(t *testing.T) {
	catalog := &stubCatalog{products: map[int64]models.Product{
		1: {ID: 1, Price: dec("150.00")},
	}}
	c := cartWith(t, catalog, map[int64]int{1: 1})

	checkout := NewCheckoutService(&mockOrderCreator{}, &mockProfileReader{}, nil)

	_, err := checkout.Execute(context.Background(), c, "", "Test street 1", 7)

	var contactErr *models.MissingContactInfoError
	require.ErrorAs(t, err, &contactErr)
	assert.True(t, contactErr.PhoneMissing())
	assert.Equal(t, "Test street 1", contactErr.Address)
}

func TestExecuteEmptyCartWinsOverMissingContactInfo(t *testing.T) {
	checkout := NewCheckoutService(&mockOrderCreator{}, &mockProfileReader{}, nil)

	_, err := checkout.Execute(context.Background(), cart.New(), "", "", 7)

	require.ErrorIs(t, err, models.ErrEmptyCart)
}

func TestExecuteCreatesOrderFromSnapshots(t *testing.T) {
	ctx := context.Background()
	catalog := &stubCatalog{products: map[int64]models.Product{
		1: {ID: 1, Name: "A", Price: dec("100.00")},
		2: {ID: 2, Name: "B", Price: dec("50.00")},
	}}
	c := cartWith(t, catalog, map[int64]int{1: 2, 2: 1})

	// The live catalog price changes after the cart snapshot was taken.
	catalog.products[1] = models.Product{ID: 1, Name: "A", Price: dec("999.00")}

	repo := &mockOrderCreator{}
	checkout := NewCheckoutService(repo, &mockProfileReader{}, nil)

	order, err := checkout.Execute(ctx, c, "+71234567890", "Test street 1", 7)
	require.NoError(t, err)

	require.Len(t, order.Items, 2)
	assert.Equal(t, models.OrderStatusNew, order.Status)
	assert.Equal(t, int64(7), order.UserID)
	assert.Equal(t, "+71234567890", order.Phone)
	assert.Equal(t, "Test street 1", order.Address)

	assert.Equal(t, int64(1), order.Items[0].ProductID)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.True(t, order.Items[0].PriceAtOrder.Equal(dec("100.00")), "snapshot price, not live price")
	assert.Equal(t, int64(2), order.Items[1].ProductID)
	assert.Equal(t, 1, order.Items[1].Quantity)
	assert.True(t, order.Items[1].PriceAtOrder.Equal(dec("50.00")))

	assert.True(t, order.TotalPrice().Equal(dec("250.00")))
	assert.True(t, c.IsEmpty(), "cart must be cleared after a successful checkout")
}

func TestExecuteKeepsCartOnTransactionFailure(t *testing.T) {
	catalog := &stubCatalog{products: map[int64]models.Product{
		1: {ID: 1, Price: dec("100.00")},
	}}
	c := cartWith(t, catalog, map[int64]int{1: 2})

	repo := &mockOrderCreator{failWith: errors.New("commit failed")}
	checkout := NewCheckoutService(repo, &mockProfileReader{}, nil)

	_, err := checkout.Execute(context.Background(), c, "+71234567890", "Test street 1", 7)

	require.Error(t, err)
	assert.False(t, c.IsEmpty(), "cart must remain intact when the transaction fails")
	assert.Equal(t, 2, c.Count())
}

func TestFormDefaultsFromProfile(t *testing.T) {
	catalog := &stubCatalog{products: map[int64]models.Product{
		1: {ID: 1, Price: dec("150.00")},
	}}
	c := cartWith(t, catalog, map[int64]int{1: 2})

	profiles := &mockProfileReader{profile: &models.Profile{
		UserID:         7,
		Phone:          "+79990001122",
		DefaultAddress: "Saved address 5",
	}}
	checkout := NewCheckoutService(&mockOrderCreator{}, profiles, nil)

	form, err := checkout.FormDefaults(context.Background(), c, 7)
	require.NoError(t, err)
	assert.Equal(t, "+79990001122", form.Phone)
	assert.Equal(t, "Saved address 5", form.Address)
	assert.True(t, form.TotalPrice.Equal(dec("300.00")))
}

func TestFormDefaultsEmptyProfile(t *testing.T) {
	checkout := NewCheckoutService(&mockOrderCreator{}, &mockProfileReader{}, nil)

	form, err := checkout.FormDefaults(context.Background(), cart.New(), 7)
	require.NoError(t, err)
	assert.Empty(t, form.Phone)
	assert.Empty(t, form.Address)
	assert.True(t, form.TotalPrice.IsZero())
}
