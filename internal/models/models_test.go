package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderItemTotalPrice(t *testing.T) {
	item := OrderItem{Quantity: 2, PriceAtOrder: decimal.RequireFromString("150.00")}
	assert.True(t, item.TotalPrice().Equal(decimal.RequireFromString("300.00")))
}

func TestOrderTotalPriceSumsItems(t *testing.T) {
	order := Order{Items: []OrderItem{
		{Quantity: 2, PriceAtOrder: decimal.RequireFromString("100.00")},
		{Quantity: 1, PriceAtOrder: decimal.RequireFromString("50.00")},
	}}
	assert.True(t, order.TotalPrice().Equal(decimal.RequireFromString("250.00")))
}

func TestOrderTotalPriceEmpty(t *testing.T) {
	var order Order
	assert.True(t, order.TotalPrice().IsZero())
}

func TestMissingContactInfoError(t *testing.T) {
	err := &MissingContactInfoError{Phone: "+71234567890"}
	assert.False(t, err.PhoneMissing())
	assert.True(t, err.AddressMissing())
	assert.Equal(t, "missing contact info: address", err.Error())

	both := &MissingContactInfoError{}
	assert.Equal(t, "missing contact info: phone, address", both.Error())
}
