// Package handler exposes the storefront over HTTP/JSON. Handlers decode and
// validate requests, call into the domain services, and translate domain
// errors into uniform {success:false, error} responses without leaking
// internal detail.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mk-uidev/flavorforge/internal/domain/auth"
	"github.com/mk-uidev/flavorforge/internal/domain/checkout"
	"github.com/mk-uidev/flavorforge/internal/domain/customer"
	"github.com/mk-uidev/flavorforge/internal/domain/order"
	"github.com/mk-uidev/flavorforge/internal/domain/product"
	"github.com/mk-uidev/flavorforge/internal/domain/store"
)

// Handler carries the domain services behind the HTTP surface.
type Handler struct {
	checkout   *checkout.Service
	orders     *order.Service
	orderReads order.Repository
	products   product.Repository
	categories product.CategoryRepository
	customers  *customer.Service
	config     *store.ConfigCache
	verifier   *auth.APIKeyVerifier
	tokens     *auth.TokenIssuer
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	checkoutSvc *checkout.Service,
	orderSvc *order.Service,
	orderReads order.Repository,
	products product.Repository,
	categories product.CategoryRepository,
	customers *customer.Service,
	config *store.ConfigCache,
	verifier *auth.APIKeyVerifier,
	tokens *auth.TokenIssuer,
) *Handler {
	return &Handler{
		checkout:   checkoutSvc,
		orders:     orderSvc,
		orderReads: orderReads,
		products:   products,
		categories: categories,
		customers:  customers,
		config:     config,
		verifier:   verifier,
		tokens:     tokens,
	}
}

// Router builds the API route table. Authentication runs before every /api
// route; authorization is checked per handler against the resolved principal.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.principalMiddleware)

	api.HandleFunc("/checkout", h.Checkout).Methods(http.MethodPost)

	api.HandleFunc("/customers/login", h.Login).Methods(http.MethodPost)
	api.HandleFunc("/customers/register", h.Register).Methods(http.MethodPost)

	api.HandleFunc("/orders", h.GetOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders", h.UpdateOrderStatus).Methods(http.MethodPatch)
	api.HandleFunc("/orders/cancel", h.CancelOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/cancel", h.CancelEligibility).Methods(http.MethodGet)
	api.HandleFunc("/orders/customer", h.CustomerOrders).Methods(http.MethodGet)

	api.HandleFunc("/store-config", h.GetStoreConfig).Methods(http.MethodGet)
	api.HandleFunc("/store-config", h.RefreshStoreConfig).Methods(http.MethodPost)

	api.HandleFunc("/products", h.ListProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", h.GetProduct).Methods(http.MethodGet)
	api.HandleFunc("/categories", h.ListCategories).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Success: false, Error: msg})
}

// respondError maps a domain error onto an HTTP status and a safe message.
// Unknown errors are logged and collapse to a generic 500 so datastore
// messages never reach the client.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *checkout.ValidationError
		itemErr       *checkout.ItemError
		schedErr      *checkout.SchedulingError
		customerErr   *checkout.CustomerError
		stateErr      *order.InvalidStateError
	)

	switch {
	case errors.As(err, &validationErr),
		errors.As(err, &itemErr),
		errors.As(err, &schedErr),
		errors.As(err, &stateErr),
		errors.Is(err, customer.ErrPasswordTooShort):
		writeError(w, http.StatusBadRequest, err.Error())

	case errors.As(err, &customerErr):
		if errors.Is(err, customer.ErrEmailTaken) {
			writeError(w, http.StatusConflict, customer.ErrEmailTaken.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "could not save customer details")

	case errors.Is(err, customer.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())

	case errors.Is(err, customer.ErrInvalidCredentials),
		errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())

	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, customer.ErrNotFound),
		errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, store.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())

	default:
		zctx.From(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
