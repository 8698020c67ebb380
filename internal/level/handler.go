// internal/level/handler.go
package level

import (
	"fmt"
	"net/http"

	"inventoryapi/internal/batch"
	"inventoryapi/internal/httpx"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
	log     *zap.Logger
}

func NewHandler(service Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/inventory_levels", func(r chi.Router) {
		r.Get("/", h.handleRetrieveLevels)
		r.Delete("/", h.handleDeleteLevel)
		r.Get("/retrieve", h.handleListLevels)
		r.Get("/history", h.handleHistory)
		r.Post("/connect", h.handleConnect)
		r.Post("/set", h.handleSet)
		r.Post("/adjust", h.handleAdjust)
	})
}

type pairRequest struct {
	InventoryItemID *int64 `json:"inventory_item_id"`
	LocationID      *int64 `json:"location_id"`
}

func (p pairRequest) problems() map[string]string {
	problems := map[string]string{}
	if p.InventoryItemID == nil {
		problems["inventory_item_id"] = "must be provided"
	}
	if p.LocationID == nil {
		problems["location_id"] = "must be provided"
	}
	return problems
}

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	if problems := req.problems(); len(problems) > 0 {
		httpx.FailedValidation(w, r, h.log, problems)
		return
	}

	level, err := h.service.Connect(r.Context(), *req.InventoryItemID, *req.LocationID)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	h.write(w, r, http.StatusCreated, httpx.Envelope{"inventory_level": level})
}

func (h *Handler) handleSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		pairRequest
		Available *int64 `json:"available"`
	}
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	problems := req.problems()
	if req.Available == nil {
		problems["available"] = "must be provided"
	}
	if len(problems) > 0 {
		httpx.FailedValidation(w, r, h.log, problems)
		return
	}

	level, err := h.service.Set(r.Context(), *req.InventoryItemID, *req.LocationID, *req.Available)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	h.write(w, r, http.StatusOK, httpx.Envelope{"inventory_level": level})
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req struct {
		pairRequest
		AvailableAdjustment *int64 `json:"available_adjustment"`
	}
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	problems := req.problems()
	if req.AvailableAdjustment == nil {
		problems["available_adjustment"] = "must be provided"
	}
	if len(problems) > 0 {
		httpx.FailedValidation(w, r, h.log, problems)
		return
	}

	level, err := h.service.Adjust(r.Context(), *req.InventoryItemID, *req.LocationID, *req.AvailableAdjustment)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	h.write(w, r, http.StatusOK, httpx.Envelope{"inventory_level": level})
}

func (h *Handler) handleRetrieveLevels(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	itemIDs, err := batch.ParseIDs(query.Get("inventory_item_ids"))
	if err != nil {
		httpx.Error(w, r, h.log, fmt.Errorf("inventory_item_ids: %w", err))
		return
	}
	locationIDs, err := batch.ParseIDs(query.Get("location_ids"))
	if err != nil {
		httpx.Error(w, r, h.log, fmt.Errorf("location_ids: %w", err))
		return
	}

	entries, err := h.service.RetrieveLevels(r.Context(), itemIDs, locationIDs)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	h.write(w, r, http.StatusOK, httpx.Envelope{"inventory_levels": entries})
}

func (h *Handler) handleListLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.service.ListLevels(r.Context())
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	h.write(w, r, http.StatusOK, httpx.Envelope{"inventory_levels": levels})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	itemID, locationID, ok := h.pairQuery(w, r)
	if !ok {
		return
	}

	changes, err := h.service.History(r.Context(), itemID, locationID)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	h.write(w, r, http.StatusOK, httpx.Envelope{"changes": changes})
}

func (h *Handler) handleDeleteLevel(w http.ResponseWriter, r *http.Request) {
	itemID, locationID, ok := h.pairQuery(w, r)
	if !ok {
		return
	}

	deleted, err := h.service.Delete(r.Context(), itemID, locationID)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	h.write(w, r, http.StatusOK, httpx.Envelope{"deleted_count": deleted})
}

func (h *Handler) pairQuery(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	itemID, err := httpx.QueryID(r, "inventory_item_id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return 0, 0, false
	}
	locationID, err := httpx.QueryID(r, "location_id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return 0, 0, false
	}
	return itemID, locationID, true
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, status int, data httpx.Envelope) {
	if err := httpx.WriteJSON(w, status, data); err != nil {
		httpx.Error(w, r, h.log, err)
	}
}
