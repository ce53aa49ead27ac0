package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mk-uidev/flavorforge/internal/domain/checkout"
	"github.com/mk-uidev/flavorforge/internal/domain/customer"
	"github.com/mk-uidev/flavorforge/internal/domain/order"
	"github.com/mk-uidev/flavorforge/internal/domain/store"
)

type checkoutItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type checkoutCustomerInfo struct {
	Email     string `json:"email"`
	Password  string `json:"password,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

type checkoutRequest struct {
	Items           []checkoutItem       `json:"items"`
	CustomerInfo    checkoutCustomerInfo `json:"customerInfo"`
	DeliveryAddress *customer.Address    `json:"deliveryAddress,omitempty"`
	ServiceType     string               `json:"serviceType"`
	BookingDate     time.Time            `json:"bookingDate"`
	CustomerNotes   string               `json:"customerNotes,omitempty"`

	// TotalAmount is whatever the client displayed. It is accepted for
	// wire compatibility and ignored; every line is repriced server-side.
	TotalAmount float64 `json:"totalAmount,omitempty"`
}

type orderItemDTO struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Subtotal  float64 `json:"subtotal"`
}

type orderSummary struct {
	ID          string            `json:"id"`
	OrderNumber string            `json:"orderNumber"`
	TotalAmount float64           `json:"totalAmount"`
	Status      string            `json:"status"`
	ServiceType string            `json:"serviceType"`
	BookingDate time.Time         `json:"bookingDate"`
	Items       []orderItemDTO    `json:"items"`
	Address     *customer.Address `json:"deliveryAddress,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

type customerSummary struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	IsNewCustomer bool   `json:"isNewCustomer"`
}

type pricingSummary struct {
	Currency    string  `json:"currency"`
	Subtotal    float64 `json:"subtotal"`
	DeliveryFee float64 `json:"deliveryFee"`
	Tax         float64 `json:"tax"`
	Total       float64 `json:"total"`
}

type checkoutResponse struct {
	Success   bool            `json:"success"`
	Order     orderSummary    `json:"order"`
	Customer  customerSummary `json:"customer"`
	Pricing   *pricingSummary `json:"pricing,omitempty"`
	AuthToken string          `json:"authToken,omitempty"`
}

// Checkout places an order. Anonymous callers are welcome; a session token
// for the resolved customer rides along in the response when issuance
// succeeds.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]checkout.CartItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = checkout.CartItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	res, err := h.checkout.Checkout(r.Context(), checkout.Request{
		Items: items,
		Customer: checkout.CustomerInfo{
			Email:     req.CustomerInfo.Email,
			Password:  req.CustomerInfo.Password,
			FirstName: req.CustomerInfo.FirstName,
			LastName:  req.CustomerInfo.LastName,
			Phone:     req.CustomerInfo.Phone,
		},
		ServiceType:     order.ServiceType(req.ServiceType),
		DeliveryAddress: req.DeliveryAddress,
		BookingAt:       req.BookingDate,
		CustomerNotes:   req.CustomerNotes,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := checkoutResponse{
		Success: true,
		Order:   summarizeOrder(res.Order),
		Customer: customerSummary{
			ID:            res.Customer.ID,
			Email:         res.Customer.Email,
			FirstName:     res.Customer.FirstName,
			LastName:      res.Customer.LastName,
			IsNewCustomer: res.IsNewCustomer,
		},
		Pricing:   h.pricingFor(r, res.Order),
		AuthToken: res.AuthToken,
	}
	respondJSON(w, http.StatusCreated, resp)
}

func summarizeOrder(o *order.Order) orderSummary {
	items := make([]orderItemDTO, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemDTO{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.InexactFloat64(),
			Subtotal:  it.Subtotal.InexactFloat64(),
		}
	}
	return orderSummary{
		ID:          o.ID,
		OrderNumber: o.Number,
		TotalAmount: o.Total.InexactFloat64(),
		Status:      string(o.Status),
		ServiceType: string(o.ServiceType),
		BookingDate: o.BookingAt,
		Items:       items,
		Address:     o.DeliveryAddress,
		CreatedAt:   o.CreatedAt,
	}
}

// pricingFor decorates an order with the display-time fee and tax breakdown.
// The breakdown is omitted when the store config cannot be loaded; the order
// itself is already committed at this point.
func (h *Handler) pricingFor(r *http.Request, o *order.Order) *pricingSummary {
	cfg, err := h.config.Get(r.Context())
	if err != nil {
		return nil
	}
	fee := store.DeliveryFee(o.Total, o.ServiceType, cfg)
	tax := store.Tax(o.Total, cfg)
	return &pricingSummary{
		Currency:    cfg.Currency,
		Subtotal:    o.Total.InexactFloat64(),
		DeliveryFee: fee.InexactFloat64(),
		Tax:         tax.InexactFloat64(),
		Total:       o.Total.Add(fee).Add(tax).InexactFloat64(),
	}
}
