// internal/location/handler.go
package location

import (
	"net/http"

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
	r.Route("/location", func(r chi.Router) {
		r.Post("/", h.handleCreateLocation)
		r.Get("/retrieve", h.handleListLocations)
		r.Get("/{id}", h.handleGetLocation)
		r.Delete("/{id}", h.handleDeleteLocation)
	})
}

func (h *Handler) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
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

	location, err := h.service.CreateLocation(r.Context(), *req.ID, req.Fields)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	h.write(w, r, http.StatusCreated, httpx.Envelope{"location": location})
}

func (h *Handler) handleListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.service.ListLocations(r.Context())
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	h.write(w, r, http.StatusOK, httpx.Envelope{"locations": locations})
}

func (h *Handler) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	location, err := h.service.GetLocation(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	h.write(w, r, http.StatusOK, httpx.Envelope{"location": location})
}

func (h *Handler) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	deleted, err := h.service.DeleteLocation(r.Context(), id)
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
