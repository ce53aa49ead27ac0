package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mk-uidev/flavorforge/internal/domain/product"
)

type productDTO struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description,omitempty"`
	Price            float64 `json:"price"`
	EffectivePrice   float64 `json:"effectivePrice"`
	OnOffer          bool    `json:"onOffer"`
	Savings          float64 `json:"savings,omitempty"`
	SavingsPercent   int     `json:"savingsPercent,omitempty"`
	CategoryID       string  `json:"categoryId,omitempty"`
	MinOrderQuantity int     `json:"minOrderQuantity"`
	Available        bool    `json:"available"`
}

type categoryDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ItemCount int    `json:"itemCount"`
}

// ListProducts returns the catalog with offer-adjusted prices.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	now := time.Now()
	out := make([]productDTO, len(products))
	for i := range products {
		out[i] = toProductDTO(&products[i], now)
	}
	respondJSON(w, http.StatusOK, struct {
		Success  bool         `json:"success"`
		Products []productDTO `json:"products"`
	}{Success: true, Products: out})
}

// GetProduct returns a single product by ID with its offer-adjusted price.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		Success bool       `json:"success"`
		Product productDTO `json:"product"`
	}{Success: true, Product: toProductDTO(p, time.Now())})
}

// ListCategories returns all catalog categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.ListCategories(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	out := make([]categoryDTO, len(categories))
	for i, c := range categories {
		out[i] = categoryDTO{ID: c.ID, Name: c.Name, ItemCount: c.ItemCount}
	}
	respondJSON(w, http.StatusOK, struct {
		Success    bool          `json:"success"`
		Categories []categoryDTO `json:"categories"`
	}{Success: true, Categories: out})
}

func toProductDTO(p *product.Product, now time.Time) productDTO {
	dto := productDTO{
		ID:               p.ID,
		Name:             p.Name,
		Description:      p.Description,
		Price:            p.Price.InexactFloat64(),
		EffectivePrice:   product.EffectivePrice(p, now).InexactFloat64(),
		CategoryID:       p.CategoryID,
		MinOrderQuantity: p.MinOrderQuantity,
		Available:        p.Available,
	}
	if product.OfferActive(p, now) {
		dto.OnOffer = true
		dto.Savings = product.Savings(p, now).InexactFloat64()
		dto.SavingsPercent = product.SavingsPercent(p, now)
	}
	return dto
}
