package handler

import (
	"net/http"
	"time"

	"github.com/mk-uidev/flavorforge/internal/domain/store"
)

type storeConfigDTO struct {
	Currency       string                `json:"currency"`
	CurrencySymbol string                `json:"currencySymbol"`
	TaxRate        float64               `json:"taxRate"`
	MinOrderAmount float64               `json:"minOrderAmount"`
	Delivery       store.DeliveryOptions `json:"delivery"`
	Pickup         store.PickupOptions   `json:"pickup"`
	Contact        store.ContactInfo     `json:"contact"`
	Hours          store.OperatingHours  `json:"hours"`
	OpenNow        bool                  `json:"openNow"`
}

// GetStoreConfig serves the cached storefront configuration.
func (h *Handler) GetStoreConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.config.Get(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		Success bool           `json:"success"`
		Config  storeConfigDTO `json:"config"`
	}{Success: true, Config: toStoreConfigDTO(cfg)})
}

// RefreshStoreConfig drops the config cache so the next read hits the
// database. Admin only; called after out-of-band configuration writes.
func (h *Handler) RefreshStoreConfig(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	if !p.CanManageStore() {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	h.config.Invalidate()
	cfg, err := h.config.Get(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		Success bool           `json:"success"`
		Config  storeConfigDTO `json:"config"`
	}{Success: true, Config: toStoreConfigDTO(cfg)})
}

func toStoreConfigDTO(cfg *store.Config) storeConfigDTO {
	return storeConfigDTO{
		Currency:       cfg.Currency,
		CurrencySymbol: cfg.CurrencySymbol,
		TaxRate:        cfg.TaxRate.InexactFloat64(),
		MinOrderAmount: cfg.MinOrderAmount.InexactFloat64(),
		Delivery:       cfg.Delivery,
		Pickup:         cfg.Pickup,
		Contact:        cfg.Contact,
		Hours:          cfg.Hours,
		OpenNow:        store.IsOpen(cfg, timeNow()),
	}
}

// timeNow is swapped in tests to pin the open-now computation.
var timeNow = time.Now
