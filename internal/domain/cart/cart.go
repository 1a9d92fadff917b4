// Package cart implements the session shopping cart.
//
// A Cart is an immutable value: every operation returns a new Cart and leaves
// the receiver untouched, so a snapshot handed to a renderer can never change
// underneath it. Visitor mistakes (unknown ids, quantities below one) are
// no-ops rather than errors.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// MaxQuantity is the largest quantity a single item can reach.
const MaxQuantity = 999

// Item is a product snapshot plus the chosen quantity. Quantity is always at
// least one.
type Item struct {
	product.Product
	Quantity int
}

// LineTotal returns price * quantity for the item.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is an insertion-ordered collection of items with at most one item per
// product id. The zero value is an empty cart.
type Cart struct {
	items []Item
}

// Items returns a copy of the cart contents in insertion order.
func (c Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of distinct products in the cart.
func (c Cart) Len() int {
	return len(c.items)
}

// IsEmpty reports whether the cart holds no items.
func (c Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// Item returns the item for the given product id.
func (c Cart) Item(id int64) (Item, bool) {
	if i := c.index(id); i >= 0 {
		return c.items[i], true
	}
	return Item{}, false
}

// Add increments the quantity of p when it is already in the cart, keeping
// the stored product fields. Otherwise p is appended with quantity 1. An item
// already at MaxQuantity is left unchanged.
func (c Cart) Add(p product.Product) Cart {
	if i := c.index(p.ID); i >= 0 {
		if c.items[i].Quantity >= MaxQuantity {
			return c
		}
		items := c.Items()
		items[i].Quantity++
		return Cart{items: items}
	}
	return Cart{items: append(c.Items(), Item{Product: p, Quantity: 1})}
}

// Remove drops the item with the given product id. Unknown ids are ignored.
func (c Cart) Remove(id int64) Cart {
	i := c.index(id)
	if i < 0 {
		return c
	}
	items := make([]Item, 0, len(c.items)-1)
	items = append(items, c.items[:i]...)
	items = append(items, c.items[i+1:]...)
	return Cart{items: items}
}

// UpdateQuantity sets the quantity of the item with the given product id.
// Quantities outside 1..MaxQuantity and unknown ids leave the cart unchanged;
// the item is never removed here.
func (c Cart) UpdateQuantity(id int64, quantity int) Cart {
	if quantity < 1 || quantity > MaxQuantity {
		return c
	}
	i := c.index(id)
	if i < 0 {
		return c
	}
	items := c.Items()
	items[i].Quantity = quantity
	return Cart{items: items}
}

// TotalItems returns the sum of quantities across all items.
func (c Cart) TotalItems() int {
	total := 0
	for _, item := range c.items {
		total += item.Quantity
	}
	return total
}

// TotalPrice returns the sum of price * quantity across all items. The value
// is not rounded; use FormatPrice for display.
func (c Cart) TotalPrice() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// FormatPrice renders an amount with exactly two decimal places.
func FormatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func (c Cart) index(id int64) int {
	for i, item := range c.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
