package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/mk-uidev/flavorforge/internal/domain/order"
)

type historyEntryDTO struct {
	Status    string `json:"status"`
	ChangedBy string `json:"changedBy,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"createdAt"`
}

type singleOrderResponse struct {
	Success bool              `json:"success"`
	Order   orderSummary      `json:"order"`
	History []historyEntryDTO `json:"history"`
}

type orderListResponse struct {
	Success bool           `json:"success"`
	Orders  []orderSummary `json:"orders"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
}

// GetOrders serves both single-order lookup (?orderNumber=) and the filtered,
// paginated listing (?customerId=&status=&page=&limit=). Customers only see
// their own orders; admins see everything.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	if number := r.URL.Query().Get("orderNumber"); number != "" {
		h.getOrderByNumber(w, r, number)
		return
	}
	h.listOrders(w, r)
}

func (h *Handler) getOrderByNumber(w http.ResponseWriter, r *http.Request, number string) {
	p := principalFrom(r.Context())

	o, err := h.orderReads.ByNumber(r.Context(), number)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	// A miss and a foreign order look identical to the caller.
	if !p.CanManageOrders() && !p.CanActFor(o.CustomerID) {
		writeError(w, http.StatusNotFound, order.ErrNotFound.Error())
		return
	}

	history, err := h.orderReads.HistoryFor(r.Context(), o.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, singleOrderResponse{
		Success: true,
		Order:   summarizeOrder(o),
		History: toHistoryDTOs(history),
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	q := r.URL.Query()

	f := order.ListFilter{
		CustomerID: q.Get("customerId"),
		Status:     order.Status(q.Get("status")),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))

	if !p.CanManageOrders() {
		if f.CustomerID == "" || !p.CanActFor(f.CustomerID) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
	}
	if f.Status != "" && !f.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status filter")
		return
	}

	h.respondOrderList(w, r, f)
}

// CustomerOrders returns the order history for one customer.
func (h *Handler) CustomerOrders(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	q := r.URL.Query()

	customerID := q.Get("customerId")
	if customerID == "" {
		writeError(w, http.StatusBadRequest, "customerId is required")
		return
	}
	if !p.CanManageOrders() && !p.CanActFor(customerID) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	f := order.ListFilter{CustomerID: customerID}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	h.respondOrderList(w, r, f)
}

func (h *Handler) respondOrderList(w http.ResponseWriter, r *http.Request, f order.ListFilter) {
	orders, total, err := h.orderReads.List(r.Context(), f)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	out := make([]orderSummary, len(orders))
	for i := range orders {
		out[i] = summarizeOrder(&orders[i])
	}
	page, limit := f.Page, f.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	respondJSON(w, http.StatusOK, orderListResponse{
		Success: true,
		Orders:  out,
		Total:   total,
		Page:    page,
		Limit:   limit,
	})
}

type updateStatusRequest struct {
	OrderID     string `json:"orderId,omitempty"`
	OrderNumber string `json:"orderNumber,omitempty"`
	Status      string `json:"status"`
	AdminNotes  string `json:"adminNotes,omitempty"`
}

// UpdateOrderStatus is the admin transition endpoint. Every change lands in
// the status history with the acting admin recorded.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	if !p.CanManageOrders() {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := req.OrderID
	if id == "" {
		if req.OrderNumber == "" {
			writeError(w, http.StatusBadRequest, "orderId or orderNumber is required")
			return
		}
		o, err := h.orderReads.ByNumber(r.Context(), req.OrderNumber)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		id = o.ID
	}

	o, err := h.orders.UpdateStatus(r.Context(), id, order.Status(req.Status), p.AdminName, req.AdminNotes)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		Success bool         `json:"success"`
		Order   orderSummary `json:"order"`
	}{Success: true, Order: summarizeOrder(o)})
}

type cancelRequest struct {
	OrderNumber string `json:"orderNumber"`
	CustomerID  string `json:"customerId"`
	Reason      string `json:"reason,omitempty"`
}

// CancelOrder is the customer-initiated cancellation.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderNumber == "" || req.CustomerID == "" {
		writeError(w, http.StatusBadRequest, "orderNumber and customerId are required")
		return
	}

	p := principalFrom(r.Context())
	if !p.CanManageOrders() && !p.CanActFor(req.CustomerID) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	o, err := h.orders.Cancel(r.Context(), req.OrderNumber, req.CustomerID, req.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		Success bool         `json:"success"`
		Order   orderSummary `json:"order"`
	}{Success: true, Order: summarizeOrder(o)})
}

// CancelEligibility reports whether an order can still be cancelled by its
// customer, without changing anything.
func (h *Handler) CancelEligibility(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	number := q.Get("orderNumber")
	customerID := q.Get("customerId")
	if number == "" || customerID == "" {
		writeError(w, http.StatusBadRequest, "orderNumber and customerId are required")
		return
	}

	p := principalFrom(r.Context())
	if !p.CanManageOrders() && !p.CanActFor(customerID) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	eligible, status, err := h.orders.CancelEligibility(r.Context(), number, customerID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		Success  bool   `json:"success"`
		Eligible bool   `json:"eligible"`
		Status   string `json:"status"`
	}{Success: true, Eligible: eligible, Status: string(status)})
}

func toHistoryDTOs(entries []order.HistoryEntry) []historyEntryDTO {
	out := make([]historyEntryDTO, len(entries))
	for i, e := range entries {
		out[i] = historyEntryDTO{
			Status:    string(e.Status),
			ChangedBy: e.ChangedBy,
			Notes:     e.Notes,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	return out
}
