// Package handler serves the storefront page and its JSON API.
package handler

import (
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/sessions"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/footer"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/session"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

//go:embed templates/*.html
var templateFS embed.FS

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ShopName is shown in the page header.
	ShopName string
	// ImageBaseURL is prepended to relative product image paths. Absolute
	// URLs are left alone.
	ImageBaseURL string
	// Anchors enables individual footer behaviors.
	Anchors footer.Anchors
}

// Handler serves the storefront. All visitor state lives in the session
// store; the handler itself is stateless apart from its dependencies.
type Handler struct {
	products product.Repository
	sessions session.Store
	cookies  sessions.Store
	footer   *footer.Service

	shopName     string
	imageBaseURL string
	anchors      footer.Anchors
	tmpl         *template.Template
	now          func() time.Time
	actions      metric.Int64Counter
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(
	cfg HandlerConfig,
	products product.Repository,
	store session.Store,
	cookies sessions.Store,
	footerSvc *footer.Service,
	mp metric.MeterProvider,
) (*Handler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}

	actions, err := mp.Meter("storefront").Int64Counter("storefront.actions",
		metric.WithDescription("Visitor actions handled, by kind"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create actions counter")
	}

	shopName := cfg.ShopName
	if shopName == "" {
		shopName = "ShopName"
	}

	return &Handler{
		products:     products,
		sessions:     store,
		cookies:      cookies,
		footer:       footerSvc,
		shopName:     shopName,
		imageBaseURL: strings.TrimSuffix(cfg.ImageBaseURL, "/"),
		anchors:      cfg.Anchors,
		tmpl:         tmpl,
		now:          time.Now,
		actions:      actions,
	}, nil
}

// Register adds the page, form and API routes to mux. subscribe wraps the
// subscription route only.
func (h *Handler) Register(mux *http.ServeMux, subscribe ...httpmiddleware.Middleware) {
	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("POST /search", h.Search)
	mux.HandleFunc("POST /cart/toggle", h.ToggleCart)
	mux.HandleFunc("POST /cart/items", h.AddItem)
	mux.HandleFunc("POST /cart/items/{id}/quantity", h.UpdateQuantity)
	mux.HandleFunc("POST /cart/items/{id}/remove", h.RemoveItem)
	mux.HandleFunc("POST /footer/toggle", h.ToggleFooter)
	mux.Handle("POST /subscribe", httpmiddleware.Wrap(http.HandlerFunc(h.Subscribe), subscribe...))

	mux.HandleFunc("GET /api/products", h.APIListProducts)
	mux.HandleFunc("GET /api/cart", h.APIGetCart)
	mux.HandleFunc("POST /api/cart/items", h.APIAddItem)
	mux.HandleFunc("PUT /api/cart/items/{id}", h.APIUpdateItem)
	mux.HandleFunc("DELETE /api/cart/items/{id}", h.APIRemoveItem)
}

// observe names the request span after the matched route and counts the
// action.
func (h *Handler) observe(r *http.Request, action string) {
	span := trace.SpanFromContext(r.Context())
	if r.Pattern != "" {
		span.SetName(r.Pattern)
	}
	span.SetAttributes(attribute.String("storefront.action", action))
	h.actions.Add(r.Context(), 1, metric.WithAttributes(attribute.String("action", action)))
}

func (h *Handler) imageURL(path string) string {
	if h.imageBaseURL == "" || path == "" || strings.Contains(path, "://") {
		return path
	}
	return h.imageBaseURL + "/" + strings.TrimPrefix(path, "/")
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
