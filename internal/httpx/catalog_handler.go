package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kicklover/go-sneaker-orders/internal/catalog"
)

// CatalogHandler is plain CRUD over the catalog store plus the additive
// restock endpoint. Mutations are admin-only; stock decrements never happen
// here, only through the order engine.
type CatalogHandler struct {
	Store catalog.Store
}

func (h *CatalogHandler) Register(r *chi.Mux) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Put("/{id}/restock", h.restock)
	})
}

func catalogErrStatus(err error) int {
	switch {
	case errors.Is(err, catalog.ErrInvalidItem):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	caller, ok := requireCaller(w, r)
	if !ok {
		return false
	}
	if !caller.Admin {
		writeError(w, http.StatusUnauthorized, "admin only")
		return false
	}
	return true
}

func (h *CatalogHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := h.Store.List(ctx)
	if err != nil {
		writeError(w, catalogErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *CatalogHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	it, err := h.Store.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, catalogErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *CatalogHandler) create(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var it catalog.Item
	if err := json.NewDecoder(r.Body).Decode(&it); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := it.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Store.Create(ctx, &it); err != nil {
		writeError(w, catalogErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (h *CatalogHandler) update(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var it catalog.Item
	if err := json.NewDecoder(r.Body).Decode(&it); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	it.ID = chi.URLParam(r, "id")
	if err := it.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Store.Update(ctx, &it); err != nil {
		writeError(w, catalogErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// delete removes a catalog item. Orders keep their line-item snapshots, so
// historical orders stay renderable; cancelling one of them afterwards skips
// the vanished buckets.
func (h *CatalogHandler) delete(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Store.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, catalogErrStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type restockReq struct {
	Size     int `json:"size"`
	Quantity int `json:"quantity"`
}

func (h *CatalogHandler) restock(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var req restockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Store.Restock(ctx, chi.URLParam(r, "id"), req.Size, req.Quantity); err != nil {
		writeError(w, catalogErrStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
