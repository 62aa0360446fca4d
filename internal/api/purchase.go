package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"retailpos/m/domain"
	"retailpos/m/internal/sales"
)

// Supplier handlers

type supplierRequest struct {
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person"`
	ContactInfo   string `json:"contact_info"`
	Address       string `json:"address"`
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "Admin", "Manager") {
		return
	}
	var req supplierRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	var id int64
	err := h.db.QueryRowx(`INSERT INTO suppliers (name, contact_person, contact_info, address) VALUES ($1, $2, $3, $4) RETURNING id`,
		req.Name, req.ContactPerson, req.ContactInfo, req.Address).Scan(&id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create supplier")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id, "name": req.Name})
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	var suppliers []domain.Supplier
	if err := h.db.Select(&suppliers, `SELECT id, name, contact_person, contact_info, address, created_at FROM suppliers ORDER BY name`); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list suppliers")
		return
	}
	respondJSON(w, http.StatusOK, suppliers)
}

// Purchase order handlers

type purchaseOrderItemRequest struct {
	ItemID          int64   `json:"item_id"`
	QuantityOrdered int64   `json:"quantity_ordered"`
	UnitPrice       float64 `json:"unit_price"`
}

type purchaseOrderRequest struct {
	SupplierID           int64                      `json:"supplier_id"`
	StoreID              int64                      `json:"store_id"`
	ExpectedDeliveryDate string                     `json:"expected_delivery_date,omitempty"`
	Notes                string                     `json:"notes,omitempty"`
	Items                []purchaseOrderItemRequest `json:"items"`
}

func (h *Handler) createPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "Admin", "Manager") {
		return
	}
	var req purchaseOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SupplierID == 0 || req.StoreID == 0 || len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "supplier_id, store_id and at least one item are required")
		return
	}
	for _, item := range req.Items {
		if item.ItemID == 0 || item.QuantityOrdered <= 0 {
			respondError(w, http.StatusBadRequest, "item_id and a positive quantity_ordered are required for each item")
			return
		}
	}

	var totalCost float64
	for _, item := range req.Items {
		totalCost += float64(item.QuantityOrdered) * item.UnitPrice
	}

	tx, err := h.db.Beginx()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create purchase order")
		return
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowx(`INSERT INTO purchase_orders (supplier_id, store_id, expected_delivery_date, total_cost, notes) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		req.SupplierID, req.StoreID, nullIfEmpty(req.ExpectedDeliveryDate), totalCost, req.Notes).Scan(&id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create purchase order")
		return
	}
	for _, item := range req.Items {
		if _, err := tx.Exec(`INSERT INTO purchase_order_items (purchase_order_id, item_id, quantity_ordered, unit_price) VALUES ($1, $2, $3, $4)`,
			id, item.ItemID, item.QuantityOrdered, item.UnitPrice); err != nil {
			respondError(w, http.StatusInternalServerError, "unable to save purchase order items")
			return
		}
	}
	if err := tx.Commit(); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to finalize purchase order")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id, "total_cost": totalCost, "status": domain.POPending})
}

func (h *Handler) listPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	var orders []domain.PurchaseOrder
	var err error
	if status == "" {
		err = h.db.Select(&orders, `SELECT id, supplier_id, store_id, order_date, expected_delivery_date, total_cost, status, notes, created_at FROM purchase_orders ORDER BY created_at DESC`)
	} else {
		err = h.db.Select(&orders, `SELECT id, supplier_id, store_id, order_date, expected_delivery_date, total_cost, status, notes, created_at FROM purchase_orders WHERE status = $1 ORDER BY created_at DESC`, status)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list purchase orders")
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

type purchaseOrderDetail struct {
	domain.PurchaseOrder
	Items []domain.PurchaseOrderItem `json:"items"`
}

func (h *Handler) getPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid purchase order id")
		return
	}
	var detail purchaseOrderDetail
	err = h.db.Get(&detail.PurchaseOrder, `SELECT id, supplier_id, store_id, order_date, expected_delivery_date, total_cost, status, notes, created_at FROM purchase_orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "purchase order not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch purchase order")
		return
	}
	if err := h.db.Select(&detail.Items, `SELECT id, purchase_order_id, item_id, quantity_ordered, unit_price FROM purchase_order_items WHERE purchase_order_id = $1 ORDER BY id`, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch purchase order items")
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (h *Handler) receivePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "Admin", "Manager") {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid purchase order id")
		return
	}
	po, err := h.sales.ReceivePurchaseOrder(r.Context(), id)
	switch {
	case errors.Is(err, sales.ErrPONotFound):
		respondError(w, http.StatusNotFound, "purchase order not found")
		return
	case errors.Is(err, sales.ErrPOAlreadyReceived):
		respondError(w, http.StatusBadRequest, "purchase order already received")
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "unable to receive purchase order")
		return
	}
	respondJSON(w, http.StatusOK, po)
}

func (h *Handler) deletePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "Admin") {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid purchase order id")
		return
	}
	var status string
	err = h.db.Get(&status, `SELECT status FROM purchase_orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "purchase order not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch purchase order")
		return
	}
	// Received orders already moved stock; deleting them would orphan
	// the ledger rows.
	if status == domain.POReceived {
		respondError(w, http.StatusBadRequest, "cannot delete a received purchase order")
		return
	}
	if _, err := h.db.Exec(`DELETE FROM purchase_orders WHERE id = $1`, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to delete purchase order")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
