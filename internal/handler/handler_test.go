package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/footer"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/session"
)

// --- Mock implementations ---

type mockSubscriber struct {
	emails []string
	err    error
}

func (m *mockSubscriber) Subscribe(_ context.Context, email string) error {
	m.emails = append(m.emails, email)
	return m.err
}

type failingRepo struct{}

func (failingRepo) List(context.Context) ([]product.Product, error) {
	return nil, errors.New("db down")
}

func (failingRepo) GetByID(context.Context, int64) (*product.Product, error) {
	return nil, errors.New("db down")
}

// --- Helpers ---

type browser struct {
	t      *testing.T
	srv    *httptest.Server
	client *http.Client
}

func newHandler(t *testing.T, repo product.Repository, anchors footer.Anchors, sub footer.Subscriber) *Handler {
	t.Helper()
	h, err := NewHandler(
		HandlerConfig{ShopName: "TestShop", Anchors: anchors},
		repo,
		session.NewMemoryStore(time.Hour),
		NewCookieStore([]byte("0123456789abcdef0123456789abcdef"), false),
		footer.NewService(sub, zap.NewNop()),
		noop.NewMeterProvider(),
	)
	require.NoError(t, err)
	h.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

func newBrowser(t *testing.T, h *Handler) *browser {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, srv: srv, client: &http.Client{Jar: jar}}
}

func allAnchors() footer.Anchors {
	return footer.Anchors{Year: true, Toggle: true, Subscribe: true}
}

func (b *browser) do(req *http.Request) (int, string) {
	b.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return resp.StatusCode, string(body)
}

func (b *browser) get(path string) string {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.srv.URL+path, nil)
	require.NoError(b.t, err)
	code, body := b.do(req)
	require.Equal(b.t, http.StatusOK, code)
	return body
}

// post submits a form and returns the page rendered after the redirect.
func (b *browser) post(path string, form url.Values) string {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	code, body := b.do(req)
	require.Equal(b.t, http.StatusOK, code)
	return body
}

func (b *browser) api(method, path, body string) (int, string) {
	b.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, b.srv.URL+path, r)
	require.NoError(b.t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return b.do(req)
}

func addForm(id string) url.Values {
	return url.Values{"product_id": {id}}
}

type cartResponse struct {
	Items []struct {
		ProductID int64  `json:"productId"`
		Name      string `json:"name"`
		Price     string `json:"price"`
		Quantity  int    `json:"quantity"`
		LineTotal string `json:"lineTotal"`
	} `json:"items"`
	TotalItems int    `json:"totalItems"`
	TotalPrice string `json:"totalPrice"`
	ShowCart   bool   `json:"showCart"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func decode[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

// --- Page tests ---

func TestIndex_Catalog(t *testing.T) {
	b := newBrowser(t, newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), allAnchors(), &mockSubscriber{}))

	page := b.get("/")
	assert.Contains(t, page, `id="catalog-view"`)
	assert.NotContains(t, page, `id="cart-view"`)
	assert.Contains(t, page, "Cart (0)")
	assert.Contains(t, page, "Classic White Sneakers")
	assert.Contains(t, page, "$79.99")
	assert.Contains(t, page, "Leather Backpack")
	assert.Contains(t, page, "$129.99")
	assert.Contains(t, page, "Wireless Headphones")
	assert.Contains(t, page, "$199.99")
	assert.Contains(t, page, `<span id="current-year">2026</span>`)
	assert.Contains(t, page, "Show More")
	assert.Contains(t, page, "display: none")
}

func TestIndex_UnknownPath(t *testing.T) {
	b := newBrowser(t, newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), allAnchors(), &mockSubscriber{}))

	req, err := http.NewRequest(http.MethodGet, b.srv.URL+"/missing", nil)
	require.NoError(t, err)
	code, _ := b.do(req)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestIndex_RepositoryError(t *testing.T) {
	b := newBrowser(t, newHandler(t, failingRepo{}, allAnchors(), &mockSubscriber{}))

	req, err := http.NewRequest(http.MethodGet, b.srv.URL+"/", nil)
	require.NoError(t, err)
	code, _ := b.do(req)
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestAddItem(t *testing.T) {
	b := newBrowser(t, newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), allAnchors(), &mockSubscriber{}))

	page := b.post("/cart/items", addForm("1"))
	assert.Contains(t, page, "Cart (1)")
	assert.Contains(t, page, `id="catalog-view"`, "adding does not switch views")

	page = b.post("/cart/items", addForm("1"))
	assert.Contains(t, page, "Cart (2)")

	page = b.post("/cart/toggle", nil)
	assert.Contains(t, page, `id="cart-view"`)
	assert.Contains(t, page, `<span class="quantity">2</span>`)
	assert.Contains(t, page, "Total: $159.98")
}

func TestAddItem_UnknownOrMalformed(t *testing.T) {
	b := newBrowser(t, newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), allAnchors(), &mockSubscriber{}))

	for _, id := range []string{"99", "abc", ""} {
		page := b.post("/cart/items", addForm(id))
		assert.Contains(t, page, "Cart (0)", "id %q", id)
	}
}

func TestToggleCart_Empty(t *testing.T) {
	b := newBrowser(t, newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), allAnchors(), &mockSubscriber{}))

	page := b.post("/cart/toggle", nil)
	assert.Contains(t, page, `id="cart-view"`)
	assert.Contains(t, page, "Your cart is empty")
	assert.NotContains(t, page, "Classic White Sneakers")

	page = b.post("/cart/toggle", nil)
	assert.Contains(t, page, `id="catalog-view"`)
}

func TestUpdateQuantity(t *testing.T) {
	b := newBrowser(t, newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), allAnchors(), &mockSubscriber{}))

	b.post("/cart/items", addForm("2"))
	b.post("/cart/toggle", nil)

	page := b.post("/cart/items/2/quantity", url.Values{"quantity": {"3"}})
	assert.Contains(t, page, `<span class="quantity">3</span>`)
	assert.Contains(t, page, "Total: $389.97")
	assert.Contains(t, page, "Cart (3)")

	page = b.post("/cart/items/2/quantity", url.Values{"quantity": {"0"}})
	assert.Contains(t, page, `<span class="quantity">3</span>`, "quantities below one are ignored")

	page = b.post("/cart/items/2/quantity", url.Values{"quantity": {"x"}})
	assert.Contains(t, page, `<span class="quantity">3</span>`)
}

func TestDecrementAtOne(t *testing.T) {
	b := newBrowser(t, newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), allAnchors(), &mockSubscriber{}))

	b.post("/cart/items", addForm("1"))
	page := b.post("/cart/toggle", nil)
	assert.Contains(t, page, `name="quantity" value="0"`)

	page = b.post("/cart/items/1/quantity", url.Values{"quantity": {"0"}})
	assert.Contains(t, page, `<span class="quantity">1</span>`)
	assert.Contains(t, page, "Total: $79.99")
}

func TestRemoveItem(t *testing.T) {
	b := newBrowser(t, newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), allAnchors(), &mockSubscriber{}))

	b.post("/cart/items", addForm("1"))
	b.post("/cart/items", addForm("3"))
	b.post("/cart/toggle", nil)

	page := b.post("/cart/items/1/remove", nil)
	assert.NotContains(t, page, "Classic White Sneakers")
	assert.Contains(t, page, "Wireless Headphones")
	assert.Contains(t, page, "Total: $199.99")

	page = b.post("/cart/items/3/remove", nil)
	assert.Contains(t, page, "Your cart is empty")
	assert.Contains(t, page, "Cart (0)")
}

func TestSearch(t *testing.T) {
	b := newBrowser(t, newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), allAnchors(), &mockSubscriber{}))

	page := b.post("/search", url.Values{"q": {"backpack"}})
	assert.Contains(t, page, "Leather Backpack")
	assert.NotContains(t, page, "Classic White Sneakers")
	assert.Contains(t, page, `value="backpack"`)

	page = b.post("/search", url.Values{"q": {""}})
	assert.Contains(t, page, "Classic White Sneakers")
	assert.Contains(t, page, "Leather Backpack")
}

func TestSessionsAreIsolated(t *testing.T) {
	h := newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), allAnchors(), &mockSubscriber{})
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	jarA, err := cookiejar.New(nil)
	require.NoError(t, err)
	jarB, err := cookiejar.New(nil)
	require.NoError(t, err)
	a := &browser{t: t, srv: srv, client: &http.Client{Jar: jarA}}
	bb := &browser{t: t, srv: srv, client: &http.Client{Jar: jarB}}

	a.post("/cart/items", addForm("1"))
	assert.Contains(t, a.get("/"), "Cart (1)")
	assert.Contains(t, bb.get("/"), "Cart (0)")
}

// --- Footer tests ---

func TestToggleFooter(t *testing.T) {
	b := newBrowser(t, newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), allAnchors(), &mockSubscriber{}))

	page := b.post("/footer/toggle", nil)
	assert.Contains(t, page, "Show Less")
	assert.Contains(t, page, "display: block")

	page = b.post("/footer/toggle", nil)
	assert.Contains(t, page, "Show More")
	assert.Contains(t, page, "display: none")
}

func TestSubscribe(t *testing.T) {
	sub := &mockSubscriber{}
	b := newBrowser(t, newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), allAnchors(), sub))

	page := b.post("/subscribe", url.Values{"email": {"a@b.c"}})
	assert.Contains(t, page, "Thank you for subscribing with email: a@b.c")
	assert.Contains(t, page, `id="email" placeholder="Your email" value=""`)
	assert.Equal(t, []string{"a@b.c"}, sub.emails)

	page = b.get("/")
	assert.NotContains(t, page, "Thank you for subscribing", "the notice is shown once")
}

func TestSubscribe_DeliveryFailureIsHidden(t *testing.T) {
	sub := &mockSubscriber{err: errors.New("smtp down")}
	b := newBrowser(t, newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), allAnchors(), sub))

	page := b.post("/subscribe", url.Values{"email": {"x@y.z"}})
	assert.Contains(t, page, "Thank you for subscribing with email: x@y.z")
}

func TestAnchorsDisabled(t *testing.T) {
	sub := &mockSubscriber{}
	b := newBrowser(t, newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), footer.Anchors{}, sub))

	page := b.get("/")
	assert.NotContains(t, page, `id="current-year"`)
	assert.NotContains(t, page, `id="toggle-footer"`)
	assert.NotContains(t, page, `id="subscribe-form"`)

	page = b.post("/subscribe", url.Values{"email": {"a@b.c"}})
	assert.NotContains(t, page, "Thank you for subscribing")
	assert.Empty(t, sub.emails)

	page = b.post("/footer/toggle", nil)
	assert.NotContains(t, page, "Show Less")
}

func TestAnchorsPartial(t *testing.T) {
	b := newBrowser(t, newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), footer.Anchors{Toggle: true}, &mockSubscriber{}))

	page := b.get("/")
	assert.Contains(t, page, `id="toggle-footer"`)
	assert.NotContains(t, page, `id="subscribe-form"`)
	assert.NotContains(t, page, `id="current-year"`)

	page = b.post("/footer/toggle", nil)
	assert.Contains(t, page, "Show Less")
}

// --- API tests ---

func TestAPIListProducts(t *testing.T) {
	b := newBrowser(t, newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), allAnchors(), &mockSubscriber{}))

	code, body := b.api(http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, code)

	resp := decode[struct {
		Products []struct {
			ID    int64  `json:"id"`
			Name  string `json:"name"`
			Price string `json:"price"`
		} `json:"products"`
	}](t, body)
	require.Len(t, resp.Products, 3)
	assert.Equal(t, int64(1), resp.Products[0].ID)
	assert.Equal(t, "79.99", resp.Products[0].Price)

	code, body = b.api(http.MethodGet, "/api/products?q=HEADPHONES", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Wireless Headphones")
	assert.NotContains(t, body, "Leather Backpack")
}

func TestAPIListProducts_Error(t *testing.T) {
	b := newBrowser(t, newHandler(t, failingRepo{}, allAnchors(), &mockSubscriber{}))

	code, body := b.api(http.MethodGet, "/api/products", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, http.StatusInternalServerError, decode[errorResponse](t, body).Code)
}

func TestAPICart(t *testing.T) {
	b := newBrowser(t, newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), allAnchors(), &mockSubscriber{}))

	code, body := b.api(http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, code)
	c := decode[cartResponse](t, body)
	assert.Empty(t, c.Items)
	assert.Equal(t, "0.00", c.TotalPrice)

	for range 2 {
		code, _ = b.api(http.MethodPost, "/api/cart/items", `{"productId":1}`)
		require.Equal(t, http.StatusOK, code)
	}
	code, body = b.api(http.MethodPost, "/api/cart/items", `{"productId":2}`)
	require.Equal(t, http.StatusOK, code)
	c = decode[cartResponse](t, body)
	require.Len(t, c.Items, 2)
	assert.Equal(t, int64(1), c.Items[0].ProductID)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, "159.98", c.Items[0].LineTotal)
	assert.Equal(t, 3, c.TotalItems)
	assert.Equal(t, "289.97", c.TotalPrice)

	code, body = b.api(http.MethodPut, "/api/cart/items/2", `{"quantity":4}`)
	require.Equal(t, http.StatusOK, code)
	c = decode[cartResponse](t, body)
	assert.Equal(t, 4, c.Items[1].Quantity)
	assert.Equal(t, 6, c.TotalItems)

	code, body = b.api(http.MethodPut, "/api/cart/items/2", `{"quantity":0}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 4, decode[cartResponse](t, body).Items[1].Quantity)

	code, body = b.api(http.MethodDelete, "/api/cart/items/1", "")
	require.Equal(t, http.StatusOK, code)
	c = decode[cartResponse](t, body)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "519.96", c.TotalPrice)

	// The page and the API share one session.
	assert.Contains(t, b.get("/"), "Cart (4)")
}

func TestAPIAddItem_Errors(t *testing.T) {
	b := newBrowser(t, newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), allAnchors(), &mockSubscriber{}))

	tests := []struct {
		name string
		body string
		code int
	}{
		{name: "unknown product", body: `{"productId":42}`, code: http.StatusNotFound},
		{name: "missing id", body: `{}`, code: http.StatusBadRequest},
		{name: "wrong type", body: `{"productId":"1"}`, code: http.StatusBadRequest},
		{name: "not json", body: `product=1`, code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := b.api(http.MethodPost, "/api/cart/items", tt.body)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.code, decode[errorResponse](t, body).Code)
		})
	}
}

func TestAPIUpdateItem_Errors(t *testing.T) {
	b := newBrowser(t, newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), allAnchors(), &mockSubscriber{}))

	code, _ := b.api(http.MethodPut, "/api/cart/items/abc", `{"quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = b.api(http.MethodPut, "/api/cart/items/1", `{"qty":1}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = b.api(http.MethodDelete, "/api/cart/items/abc", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestImageURL(t *testing.T) {
	h := newHandler(t, product.NewStaticRepository(nil), allAnchors(), &mockSubscriber{})
	h.imageBaseURL = "https://cdn.example.com"

	assert.Equal(t, "https://cdn.example.com/img/a.jpg", h.imageURL("/img/a.jpg"))
	assert.Equal(t, "https://images.unsplash.com/x", h.imageURL("https://images.unsplash.com/x"))
	assert.Equal(t, "", h.imageURL(""))
}

func TestQuantityCap(t *testing.T) {
	b := newBrowser(t, newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), allAnchors(), &mockSubscriber{}))

	code, _ := b.api(http.MethodPost, "/api/cart/items", `{"productId":1}`)
	require.Equal(t, http.StatusOK, code)

	code, body := b.api(http.MethodPut, "/api/cart/items/1", `{"quantity":9223372036854775807}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, decode[cartResponse](t, body).Items[0].Quantity)

	page := b.post("/cart/items/1/quantity", url.Values{"quantity": {"9223372036854775807"}})
	assert.Contains(t, page, "Cart (1)")

	code, _ = b.api(http.MethodPut, "/api/cart/items/1", `{"quantity":999}`)
	require.Equal(t, http.StatusOK, code)

	code, body = b.api(http.MethodPost, "/api/cart/items", `{"productId":1}`)
	require.Equal(t, http.StatusOK, code)
	c := decode[cartResponse](t, body)
	assert.Equal(t, 999, c.Items[0].Quantity)
	assert.Equal(t, 999, c.TotalItems)
	assert.Equal(t, "79910.01", c.TotalPrice)

	page = b.post("/cart/toggle", nil)
	assert.Contains(t, page, `<span class="quantity">999</span>`)
	assert.NotContains(t, page, `value="1000"`)
}

func TestReadsDoNotCreateSessions(t *testing.T) {
	h := newHandler(t, product.NewStaticRepository(product.DefaultCatalog()), allAnchors(), &mockSubscriber{})
	store, ok := h.sessions.(*session.MemoryStore)
	require.True(t, ok)
	b := newBrowser(t, h)

	for _, path := range []string{"/", "/", "/api/cart"} {
		resp, err := http.Get(b.srv.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Cookies(), path)
	}
	assert.Equal(t, 0, store.Len())

	b.post("/cart/items", addForm("1"))
	assert.Equal(t, 1, store.Len())
	assert.Contains(t, b.get("/"), "Cart (1)")
	assert.Equal(t, 1, store.Len())
}
