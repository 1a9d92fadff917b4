package cart

import "github.com/xenking/storefront/internal/domain/product"

// Action is a cart mutation requested by the visitor.
type Action interface {
	Apply(c Cart) Cart
}

// AddItem adds one unit of Product.
type AddItem struct {
	Product product.Product
}

func (a AddItem) Apply(c Cart) Cart { return c.Add(a.Product) }

// RemoveItem removes the item for ProductID.
type RemoveItem struct {
	ProductID int64
}

func (a RemoveItem) Apply(c Cart) Cart { return c.Remove(a.ProductID) }

// SetQuantity replaces the quantity for ProductID.
type SetQuantity struct {
	ProductID int64
	Quantity  int
}

func (a SetQuantity) Apply(c Cart) Cart { return c.UpdateQuantity(a.ProductID, a.Quantity) }

// Reduce applies actions to c in order and returns the resulting cart.
func Reduce(c Cart, actions ...Action) Cart {
	for _, a := range actions {
		c = a.Apply(c)
	}
	return c
}
