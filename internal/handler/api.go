package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/session"
)

const maxBodySize = 1 << 16

// APIListProducts returns the catalog, filtered by the optional q parameter.
func (h *Handler) APIListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.apiFail(w, r, errors.Wrap(err, "list products"))
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("products", func(e *jx.Encoder) {
			e.ArrStart()
			for _, p := range product.Filter(products, r.URL.Query().Get("q")) {
				h.encodeProduct(e, p)
			}
			e.ArrEnd()
		})
	})
	writeJSON(w, http.StatusOK, &e)
}

// APIGetCart returns the visitor's cart with its totals.
func (h *Handler) APIGetCart(w http.ResponseWriter, r *http.Request) {
	st, err := h.load(r)
	if err != nil {
		h.apiFail(w, r, err)
		return
	}

	var e jx.Encoder
	h.encodeCart(&e, st)
	writeJSON(w, http.StatusOK, &e)
}

// APIAddItem adds one unit of {"productId": N}.
func (h *Handler) APIAddItem(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "add")

	var (
		id   int64
		seen bool
	)
	if err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "productId" {
			return d.Skip()
		}
		v, err := d.Int64()
		if err != nil {
			return err
		}
		id, seen = v, true
		return nil
	}); err != nil || !seen {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}

	p, err := h.products.GetByID(r.Context(), id)
	switch {
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "product "+strconv.FormatInt(id, 10)+" not found")
		return
	case err != nil:
		h.apiFail(w, r, errors.Wrap(err, "get product"))
		return
	}

	h.apiMutate(w, r, func(s *session.State) { s.Dispatch(cart.AddItem{Product: *p}) })
}

// APIUpdateItem applies {"quantity": N} to the item in the path. Quantities
// outside 1..cart.MaxQuantity and unknown ids leave the cart unchanged.
func (h *Handler) APIUpdateItem(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "update_quantity")

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var (
		qty  int
		seen bool
	)
	if err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		v, err := d.Int()
		if err != nil {
			return err
		}
		qty, seen = v, true
		return nil
	}); err != nil || !seen {
		writeError(w, http.StatusBadRequest, "quantity is required")
		return
	}

	h.apiMutate(w, r, func(s *session.State) {
		s.Dispatch(cart.SetQuantity{ProductID: id, Quantity: qty})
	})
}

// APIRemoveItem removes the item in the path.
func (h *Handler) APIRemoveItem(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "remove")

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	h.apiMutate(w, r, func(s *session.State) { s.Dispatch(cart.RemoveItem{ProductID: id}) })
}

func (h *Handler) apiMutate(w http.ResponseWriter, r *http.Request, fn func(*session.State)) {
	st, err := h.update(w, r, fn)
	if err != nil {
		h.apiFail(w, r, err)
		return
	}

	var e jx.Encoder
	h.encodeCart(&e, st)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { e.Str(cart.FormatPrice(p.Price)) })
		e.Field("image", func(e *jx.Encoder) { e.Str(h.imageURL(p.Image)) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
	})
}

func (h *Handler) encodeCart(e *jx.Encoder, st session.State) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.ArrStart()
			for _, item := range st.Cart.Items() {
				e.Obj(func(e *jx.Encoder) {
					e.Field("productId", func(e *jx.Encoder) { e.Int64(item.ID) })
					e.Field("name", func(e *jx.Encoder) { e.Str(item.Name) })
					e.Field("price", func(e *jx.Encoder) { e.Str(cart.FormatPrice(item.Price)) })
					e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
					e.Field("lineTotal", func(e *jx.Encoder) { e.Str(cart.FormatPrice(item.LineTotal())) })
				})
			}
			e.ArrEnd()
		})
		e.Field("totalItems", func(e *jx.Encoder) { e.Int(st.Cart.TotalItems()) })
		e.Field("totalPrice", func(e *jx.Encoder) { e.Str(cart.FormatPrice(st.Cart.TotalPrice())) })
		e.Field("showCart", func(e *jx.Encoder) { e.Bool(st.ShowCart) })
	})
}

func decodeBody(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	return jx.DecodeBytes(body).Obj(fn)
}

func (h *Handler) apiFail(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("API request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, code int, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(code) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeJSON(w, code, &e)
}

func writeJSON(w http.ResponseWriter, code int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
