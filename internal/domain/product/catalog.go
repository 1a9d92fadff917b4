package product

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var _ Repository = (*StaticRepository)(nil)

// StaticRepository serves a fixed, ordered catalog held in memory.
type StaticRepository struct {
	products []Product
	byID     map[int64]int
}

// NewStaticRepository returns a repository over a copy of products. Later
// duplicates of an id are ignored.
func NewStaticRepository(products []Product) *StaticRepository {
	r := &StaticRepository{
		products: make([]Product, 0, len(products)),
		byID:     make(map[int64]int, len(products)),
	}
	for _, p := range products {
		if _, ok := r.byID[p.ID]; ok {
			continue
		}
		r.byID[p.ID] = len(r.products)
		r.products = append(r.products, p)
	}
	return r
}

// List returns the catalog in load order.
func (r *StaticRepository) List(_ context.Context) ([]Product, error) {
	out := make([]Product, len(r.products))
	copy(out, r.products)
	return out, nil
}

// GetByID returns the product with the given id or ErrNotFound.
func (r *StaticRepository) GetByID(_ context.Context, id int64) (*Product, error) {
	i, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	p := r.products[i]
	return &p, nil
}

// DefaultCatalog returns the built-in storefront catalog.
func DefaultCatalog() []Product {
	return []Product{
		{
			ID:          1,
			Name:        "Classic White Sneakers",
			Price:       decimal.RequireFromString("79.99"),
			Image:       "https://images.unsplash.com/photo-1600185365483-26d7a4cc7519",
			Description: "Comfortable and stylish sneakers for everyday wear",
		},
		{
			ID:          2,
			Name:        "Leather Backpack",
			Price:       decimal.RequireFromString("129.99"),
			Image:       "https://images.unsplash.com/photo-1553062407-98eeb64c6a62",
			Description: "Durable leather backpack perfect for daily use",
		},
		{
			ID:          3,
			Name:        "Wireless Headphones",
			Price:       decimal.RequireFromString("199.99"),
			Image:       "https://images.unsplash.com/photo-1505740420928-5e560c06d30e",
			Description: "Premium sound quality with noise cancellation",
		},
	}
}

// FileProduct is the JSON shape of a catalog file entry.
type FileProduct struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Description string          `json:"description"`
}

// LoadFile reads a JSON array of products from path.
func LoadFile(path string) ([]Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read catalog file")
	}

	var entries []FileProduct
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(err, "parse catalog JSON")
	}

	products := make([]Product, len(entries))
	for i, e := range entries {
		if e.Price.IsNegative() {
			return nil, errors.Errorf("product %d: negative price %s", e.ID, e.Price)
		}
		products[i] = Product(e)
	}
	return products, nil
}

// Filter returns the products whose name or description contains query,
// ignoring case. An empty query returns products unchanged.
func Filter(products []Product, query string) []Product {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return products
	}

	var out []Product
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Description), q) {
			out = append(out, p)
		}
	}
	return out
}
