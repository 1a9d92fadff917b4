package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/footer"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/session"
)

type productView struct {
	ID          int64
	Name        string
	Description string
	Image       string
	Price       string
}

type itemView struct {
	ID       int64
	Name     string
	Image    string
	Price    string
	Quantity int
	Dec      int
	Inc      int
}

type footerView struct {
	ShowYear      bool
	Year          int
	ShowToggle    bool
	ToggleLabel   string
	Display       string
	ShowSubscribe bool
}

type pageData struct {
	ShopName  string
	Query     string
	ShowCart  bool
	CartCount int
	Products  []productView
	Items     []itemView
	Total     string
	Notice    string
	Footer    footerView
}

// Index renders the catalog grid or the cart, depending on the session's
// view mode. Rendering never creates a session.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	st, err := h.load(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var notice string
	if st.Notice != "" {
		if st, err = h.update(w, r, func(s *session.State) { notice = s.TakeNotice() }); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	data := pageData{
		ShopName:  h.shopName,
		Query:     st.SearchQuery,
		ShowCart:  st.Mode() == session.ModeCart,
		CartCount: st.Cart.TotalItems(),
		Notice:    notice,
		Footer:    h.footerView(st),
	}

	if data.ShowCart {
		for _, item := range st.Cart.Items() {
			data.Items = append(data.Items, itemView{
				ID:       item.ID,
				Name:     item.Name,
				Image:    h.imageURL(item.Image),
				Price:    cart.FormatPrice(item.Price),
				Quantity: item.Quantity,
				Dec:      item.Quantity - 1,
				Inc:      min(item.Quantity+1, cart.MaxQuantity),
			})
		}
		data.Total = cart.FormatPrice(st.Cart.TotalPrice())
	} else {
		products, err := h.products.List(r.Context())
		if err != nil {
			h.fail(w, r, errors.Wrap(err, "list products"))
			return
		}
		for _, p := range product.Filter(products, st.SearchQuery) {
			data.Products = append(data.Products, h.productView(p))
		}
	}

	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, "page.html", data); err != nil {
		h.fail(w, r, errors.Wrap(err, "render page"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (h *Handler) footerView(st session.State) footerView {
	return footerView{
		ShowYear:      h.anchors.Year,
		Year:          footer.Year(h.now()),
		ShowToggle:    h.anchors.Toggle,
		ToggleLabel:   st.Footer.Label(),
		Display:       st.Footer.Display(),
		ShowSubscribe: h.anchors.Subscribe,
	}
}

func (h *Handler) productView(p product.Product) productView {
	return productView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Image:       h.imageURL(p.Image),
		Price:       cart.FormatPrice(p.Price),
	}
}

// Search records the search field value.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "search")
	q := r.PostFormValue("q")
	h.mutate(w, r, func(s *session.State) { s.SetSearchQuery(q) })
}

// ToggleCart switches between the catalog and the cart view.
func (h *Handler) ToggleCart(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "toggle_cart")
	h.mutate(w, r, (*session.State).ToggleCart)
}

// AddItem adds one unit of the posted product_id. Unknown or malformed ids
// leave the cart unchanged.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "add")
	id, err := strconv.ParseInt(r.PostFormValue("product_id"), 10, 64)
	if err != nil {
		h.redirect(w, r)
		return
	}

	p, err := h.products.GetByID(r.Context(), id)
	switch {
	case errors.Is(err, product.ErrNotFound):
		h.redirect(w, r)
		return
	case err != nil:
		h.fail(w, r, errors.Wrap(err, "get product"))
		return
	}

	h.mutate(w, r, func(s *session.State) { s.Dispatch(cart.AddItem{Product: *p}) })
}

// UpdateQuantity sets the posted quantity for the item in the path.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "update_quantity")
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.redirect(w, r)
		return
	}
	qty, err := strconv.Atoi(r.PostFormValue("quantity"))
	if err != nil {
		h.redirect(w, r)
		return
	}
	h.mutate(w, r, func(s *session.State) {
		s.Dispatch(cart.SetQuantity{ProductID: id, Quantity: qty})
	})
}

// RemoveItem drops the item in the path from the cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "remove")
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.redirect(w, r)
		return
	}
	h.mutate(w, r, func(s *session.State) { s.Dispatch(cart.RemoveItem{ProductID: id}) })
}

// ToggleFooter flips the additional footer content.
func (h *Handler) ToggleFooter(w http.ResponseWriter, r *http.Request) {
	if !h.anchors.Toggle {
		h.redirect(w, r)
		return
	}
	h.observe(r, "toggle_footer")
	h.mutate(w, r, (*session.State).ToggleFooter)
}

// Subscribe intercepts the newsletter form: the address goes to the
// subscriber, the confirmation is shown on the next render and the field is
// cleared.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if !h.anchors.Subscribe {
		h.redirect(w, r)
		return
	}
	h.observe(r, "subscribe")
	email := r.PostFormValue("email")
	conf := h.footer.Submit(r.Context(), email)
	h.mutate(w, r, func(s *session.State) { s.Confirm(conf) })
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn func(*session.State)) {
	if _, err := h.update(w, r, fn); err != nil {
		h.fail(w, r, err)
		return
	}
	h.redirect(w, r)
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
