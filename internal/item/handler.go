// internal/item/handler.go
package item

import (
	"fmt"
	"net/http"

	"inventoryapi/internal/apperr"
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

// Routes mounts the /inventory_item endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/inventory_item", func(r chi.Router) {
		r.Post("/", h.handleCreateItem)
		r.Get("/", h.handleGetItems)
		r.Delete("/", h.handleDeleteItems)
		r.Get("/retrieve", h.handleListItems)
		r.Get("/{id}", h.handleGetItem)
		r.Put("/{id}", h.handleEditItem)
		r.Delete("/{id}", h.handleDeleteItem)
	})
}

func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID *int64 `json:"id"`
		Fields
	}

	if err := httpx.ReadJSON(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	problems := req.Fields.Validate()
	if req.ID == nil {
		if problems == nil {
			problems = map[string]string{}
		}
		problems["id"] = "must be provided"
	}
	if problems != nil {
		httpx.FailedValidation(w, r, h.log, problems)
		return
	}

	item, err := h.service.CreateItem(r.Context(), *req.ID, req.Fields)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	h.write(w, r, http.StatusCreated, httpx.Envelope{"inventory_item": item})
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	h.write(w, r, http.StatusOK, httpx.Envelope{"inventory_item": item})
}

func (h *Handler) handleGetItems(w http.ResponseWriter, r *http.Request) {
	ids, err := batch.ParseIDs(r.URL.Query().Get("ids"))
	if err != nil {
		httpx.Error(w, r, h.log, fmt.Errorf("ids: %w", err))
		return
	}

	entries, err := h.service.GetItems(r.Context(), ids)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	h.write(w, r, http.StatusOK, httpx.Envelope{"inventory_items": entries})
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	h.write(w, r, http.StatusOK, httpx.Envelope{"inventory_items": items})
}

func (h *Handler) handleEditItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	var req struct {
		ID *int64 `json:"id"`
		Fields
	}
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	if req.ID != nil && *req.ID != id {
		httpx.Error(w, r, h.log, fmt.Errorf("%w: body id %d does not match path id %d", apperr.ErrInvalidInput, *req.ID, id))
		return
	}
	if problems := req.Fields.Validate(); problems != nil {
		httpx.FailedValidation(w, r, h.log, problems)
		return
	}

	item, err := h.service.EditItem(r.Context(), id, req.Fields)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	h.write(w, r, http.StatusOK, httpx.Envelope{"inventory_item": item})
}

func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	deleted, err := h.service.DeleteItem(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	h.write(w, r, http.StatusOK, httpx.Envelope{"deleted_count": deleted})
}

func (h *Handler) handleDeleteItems(w http.ResponseWriter, r *http.Request) {
	ids, err := batch.ParseIDs(r.URL.Query().Get("ids"))
	if err != nil {
		httpx.Error(w, r, h.log, fmt.Errorf("ids: %w", err))
		return
	}

	deleted, err := h.service.DeleteItems(r.Context(), ids)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	h.write(w, r, http.StatusOK, httpx.Envelope{"deleted_count": deleted})
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, status int, data httpx.Envelope) {
	if err := httpx.WriteJSON(w, status, data); err != nil {
		httpx.Error(w, r, h.log, err)
	}
}
