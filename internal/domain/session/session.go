// Package session holds the per-visitor view state: the cart, the selected
// view mode, the search query and the footer state.
package session

import (
	"context"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/footer"
)

// Mode selects what the main area of the page shows.
type Mode string

const (
	ModeCatalog Mode = "catalog"
	ModeCart    Mode = "cart"
)

// State is the view state of a single visitor session.
type State struct {
	Cart        cart.Cart
	ShowCart    bool
	SearchQuery string
	Footer      footer.Toggle

	// Notice is shown once on the next render and then cleared.
	Notice string
}

// Mode returns the view mode selected by the show-cart flag.
func (s *State) Mode() Mode {
	if s.ShowCart {
		return ModeCart
	}
	return ModeCatalog
}

// ToggleCart switches between the catalog and cart views.
func (s *State) ToggleCart() {
	s.ShowCart = !s.ShowCart
}

// SetSearchQuery records the latest search input.
func (s *State) SetSearchQuery(q string) {
	s.SearchQuery = q
}

// Dispatch applies a cart action to the session cart.
func (s *State) Dispatch(a cart.Action) {
	s.Cart = a.Apply(s.Cart)
}

// ToggleFooter flips the additional footer content.
func (s *State) ToggleFooter() {
	s.Footer = s.Footer.Flip()
}

// Confirm records a subscription confirmation for the next render. The
// subscription field itself is never stored, so it renders empty.
func (s *State) Confirm(c footer.Confirmation) {
	s.Notice = c.Message
}

// TakeNotice returns the pending notice and clears it.
func (s *State) TakeNotice() string {
	n := s.Notice
	s.Notice = ""
	return n
}

// Store keeps session state by id.
type Store interface {
	// Load returns a snapshot of the state for id. Unknown ids yield a fresh
	// state.
	Load(ctx context.Context, id string) (State, error)
	// Update runs fn against the state for id and stores the result. Calls
	// for the same store are serialized.
	Update(ctx context.Context, id string, fn func(*State)) (State, error)
}
