// Package cart implements the session-scoped shopping cart: a mutable
// mapping of product ID to quantity plus a unit-price snapshot taken
// when the product is first added.
package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/ecoshop/ecoshop-go/internal/models"
	"github.com/shopspring/decimal"
)

// Catalog resolves product identifiers to priced catalog entities.
type Catalog interface {
	ProductByID(ctx context.Context, id int64) (*models.Product, error)
}

// Entry is one cart line as stored: how many units and the unit price
// captured at the time of the first add. The snapshot is deliberately
// not refreshed on later adds even if the catalog price changes.
type Entry struct {
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Line is a cart entry resolved against the catalog for display.
type Line struct {
	Product   models.Product  `json:"product"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Summary is the lightweight cart state shown on every page.
type Summary struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// Cart holds the entries of a single session. All mutations take the
// cart's own lock, so concurrent requests within one session cannot
// lose increments.
type Cart struct {
	mu      sync.Mutex
	entries map[int64]Entry
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{entries: make(map[int64]Entry)}
}

// Add puts one unit of the product into the cart. An existing entry is
// incremented; a new entry snapshots the product's current price.
func (c *Cart) Add(ctx context.Context, catalog Catalog, productID int64) error {
	product, err := catalog.ProductByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("resolve product %d: %w", productID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[productID]
	if ok {
		entry.Quantity++
	} else {
		entry = Entry{Quantity: 1, UnitPrice: product.Price}
	}
	c.entries[productID] = entry
	return nil
}

// Remove takes one unit of the product out of the cart. The entry is
// deleted when its quantity reaches zero. Removing an absent product is
// a no-op.
func (c *Cart) Remove(productID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[productID]
	if !ok {
		return
	}
	if entry.Quantity > 1 {
		entry.Quantity--
		c.entries[productID] = entry
		return
	}
	delete(c.entries, productID)
}

// Items resolves every entry through the catalog and returns display
// lines. A product that has since disappeared from the catalog fails
// the whole listing; a stale cart surfaces rather than being silently
// trimmed.
func (c *Cart) Items(ctx context.Context, catalog Catalog) ([]Line, error) {
	entries := c.Entries()

	lines := make([]Line, 0, len(entries))
	for productID, entry := range entries {
		product, err := catalog.ProductByID(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("resolve product %d: %w", productID, err)
		}
		lines = append(lines, Line{
			Product:   *product,
			Quantity:  entry.Quantity,
			UnitPrice: entry.UnitPrice,
			LineTotal: entry.UnitPrice.Mul(decimal.NewFromInt(int64(entry.Quantity))),
		})
	}
	return lines, nil
}

// Entries returns a copy of the cart's raw entries.
func (c *Cart) Entries() map[int64]Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make(map[int64]Entry, len(c.entries))
	for id, entry := range c.entries {
		entries[id] = entry
	}
	return entries
}

// Clear empties the cart. Idempotent.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int64]Entry)
}

// IsEmpty reports whether the cart has no entries.
func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries) == 0
}

// Count returns the total number of units across all entries.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, entry := range c.entries {
		count += entry.Quantity
	}
	return count
}

// Total sums unit-price snapshot times quantity across all entries. The
// catalog's current prices play no part here.
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := decimal.Zero
	for _, entry := range c.entries {
		total = total.Add(entry.UnitPrice.Mul(decimal.NewFromInt(int64(entry.Quantity))))
	}
	return total
}

// Summary returns the {count, total} pair for global display.
func (c *Cart) Summary() Summary {
	return Summary{Count: c.Count(), Total: c.Total()}
}
