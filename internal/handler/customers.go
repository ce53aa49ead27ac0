package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mk-uidev/flavorforge/internal/domain/customer"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email     string            `json:"email"`
	Password  string            `json:"password"`
	FirstName string            `json:"firstName"`
	LastName  string            `json:"lastName"`
	Phone     string            `json:"phone"`
	Address   *customer.Address `json:"address,omitempty"`
}

type userDTO struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	FirstName     string  `json:"firstName"`
	LastName      string  `json:"lastName"`
	Phone         string  `json:"phone,omitempty"`
	TotalOrders   int     `json:"totalOrders"`
	TotalSpent    float64 `json:"totalSpent"`
	LoyaltyPoints int64   `json:"loyaltyPoints"`
}

type sessionResponse struct {
	Success bool    `json:"success"`
	Token   string  `json:"token"`
	User    userDTO `json:"user"`
}

// Login authenticates a customer and returns a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	c, token, err := h.customers.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse{Success: true, Token: token, User: toUserDTO(c)})
}

// Register creates a customer account and logs it in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	c, token, err := h.customers.Register(r.Context(), customer.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Address:   req.Address,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, sessionResponse{Success: true, Token: token, User: toUserDTO(c)})
}

func toUserDTO(c *customer.Customer) userDTO {
	return userDTO{
		ID:            c.ID,
		Email:         c.Email,
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		Phone:         c.Phone,
		TotalOrders:   c.TotalOrders,
		TotalSpent:    c.TotalSpent.InexactFloat64(),
		LoyaltyPoints: c.LoyaltyPoints,
	}
}
