package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"retailpos/m/domain"
	"retailpos/m/internal/sales"
)

type stockRequest struct {
	StoreID       int64  `json:"store_id"`
	ItemID        int64  `json:"item_id"`
	Quantity      int64  `json:"quantity"`
	MinStockLevel int64  `json:"min_stock_level"`
	Location      string `json:"location"`
}

func (h *Handler) createStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.StoreID == 0 || req.ItemID == 0 || req.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "store_id, item_id and a non-negative quantity are required")
		return
	}
	if req.MinStockLevel == 0 {
		req.MinStockLevel = 5
	}

	tx, err := h.db.Beginx()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create stock record")
		return
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowx(`INSERT INTO stock (store_id, item_id, quantity, min_stock_level, location) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		req.StoreID, req.ItemID, req.Quantity, req.MinStockLevel, req.Location).Scan(&id)
	if err != nil {
		respondError(w, http.StatusConflict, "stock record already exists for this store and item")
		return
	}
	if _, err := tx.Exec(`INSERT INTO stock_history (stock_id, quantity_change, change_type, reason) VALUES ($1, $2, $3, $4)`,
		id, req.Quantity, domain.StockChangeInitial, "Initial stock creation"); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to record stock history")
		return
	}
	if err := tx.Commit(); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create stock record")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id, "quantity": req.Quantity})
}

type stockListing struct {
	domain.StockRecord
	ItemName string `db:"item_name" json:"item_name"`
}

func (h *Handler) listStock(w http.ResponseWriter, r *http.Request) {
	storeID, err := strconv.ParseInt(r.URL.Query().Get("store_id"), 10, 64)
	if err != nil || storeID <= 0 {
		respondError(w, http.StatusBadRequest, "valid store_id is required")
		return
	}
	var records []stockListing
	if err := h.db.Select(&records, `SELECT s.id, s.store_id, s.item_id, s.quantity, s.min_stock_level, s.location, s.last_updated, i.name AS item_name
                FROM stock s
                JOIN items i ON i.id = s.item_id
                WHERE s.store_id = $1
                ORDER BY i.name`, storeID); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list stock")
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "Admin", "Manager") {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid stock id")
		return
	}
	var payload struct {
		Delta  int64  `json:"delta"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Delta == 0 {
		respondError(w, http.StatusBadRequest, "delta must be non-zero")
		return
	}
	if payload.Reason == "" {
		payload.Reason = "Manual adjustment"
	}

	rec, err := h.sales.AdjustStock(r.Context(), id, payload.Delta, payload.Reason)
	switch {
	case errors.Is(err, sales.ErrStockNotFound):
		respondError(w, http.StatusNotFound, "stock record not found")
		return
	case errors.Is(err, sales.ErrInsufficientStock):
		respondError(w, http.StatusBadRequest, "adjustment would make stock negative")
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "unable to adjust stock")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (h *Handler) stockHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid stock id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []domain.StockHistoryEntry
	if err := h.db.Select(&entries, `SELECT id, stock_id, quantity_change, change_type, reason, related_sale_id, related_po_id, change_date
                FROM stock_history WHERE stock_id = $1 ORDER BY id DESC LIMIT $2`, id, limit); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch stock history")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) lowStockAlerts(w http.ResponseWriter, r *http.Request) {
	var records []stockListing
	if err := h.db.Select(&records, `SELECT s.id, s.store_id, s.item_id, s.quantity, s.min_stock_level, s.location, s.last_updated, i.name AS item_name
                FROM stock s
                JOIN items i ON i.id = s.item_id
                WHERE s.quantity <= s.min_stock_level
                ORDER BY s.quantity ASC`); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch alerts")
		return
	}
	respondJSON(w, http.StatusOK, records)
}
