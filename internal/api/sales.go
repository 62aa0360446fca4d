package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"retailpos/m/domain"
	"retailpos/m/internal/sales"
)

// processSale runs the whole checkout in one transaction: sale row,
// lines, stock decrements, ledger rows, split payments, derived total
// and payment status. Any failure rolls the lot back.
func (h *Handler) processSale(w http.ResponseWriter, r *http.Request) {
	var req sales.CommitInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.StoreID == 0 {
		respondError(w, http.StatusBadRequest, "store_id is required")
		return
	}
	if req.StaffID == nil {
		staffID := r.Context().Value(ctxStaffID).(int64)
		req.StaffID = &staffID
	}

	sale, err := h.sales.Commit(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, sales.ErrItemNotFound), errors.Is(err, sales.ErrStockNotFound):
			status = http.StatusNotFound
		case errors.Is(err, sales.ErrNoLines),
			errors.Is(err, sales.ErrPriceUnset),
			errors.Is(err, sales.ErrInsufficientStock),
			errors.Is(err, sales.ErrInvalidPaymentMethod):
			status = http.StatusBadRequest
		}
		respondError(w, status, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, sale)
}

type saleDetail struct {
	domain.Sale
	Lines    []domain.SaleLine     `json:"items"`
	Payments []domain.SplitPayment `json:"payments"`
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid sale id")
		return
	}
	var detail saleDetail
	err = h.db.Get(&detail.Sale, `SELECT id, store_id, staff_id, customer_id, total_amount, payment_status, receipt_number, sale_date, created_at FROM sales WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "sale not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch sale")
		return
	}
	if err := h.db.Select(&detail.Lines, `SELECT id, sale_id, item_id, quantity, unit_price, discount, tax FROM sale_items WHERE sale_id = $1 ORDER BY id`, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch sale items")
		return
	}
	if err := h.db.Select(&detail.Payments, `SELECT id, sale_id, amount, payment_method_id, transaction_reference, payment_date FROM split_payments WHERE sale_id = $1 ORDER BY id`, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch sale payments")
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	var (
		args    []any
		clauses []string
	)

	storeIDStr := strings.TrimSpace(r.URL.Query().Get("store_id"))
	if storeIDStr != "" {
		storeID, err := strconv.ParseInt(storeIDStr, 10, 64)
		if err != nil || storeID <= 0 {
			respondError(w, http.StatusBadRequest, "invalid store_id")
			return
		}
		args = append(args, storeID)
		clauses = append(clauses, fmt.Sprintf("store_id = $%d", len(args)))
	}

	status := strings.TrimSpace(r.URL.Query().Get("payment_status"))
	if status != "" {
		args = append(args, status)
		clauses = append(clauses, fmt.Sprintf("payment_status = $%d", len(args)))
	}

	startDate := strings.TrimSpace(r.URL.Query().Get("start_date"))
	if startDate != "" {
		if _, err := time.Parse("2006-01-02", startDate); err != nil {
			respondError(w, http.StatusBadRequest, "start_date must be in YYYY-MM-DD format")
			return
		}
		args = append(args, startDate)
		clauses = append(clauses, fmt.Sprintf("DATE(sale_date) >= $%d", len(args)))
	}

	endDate := strings.TrimSpace(r.URL.Query().Get("end_date"))
	if endDate != "" {
		if _, err := time.Parse("2006-01-02", endDate); err != nil {
			respondError(w, http.StatusBadRequest, "end_date must be in YYYY-MM-DD format")
			return
		}
		args = append(args, endDate)
		clauses = append(clauses, fmt.Sprintf("DATE(sale_date) <= $%d", len(args)))
	}

	query := `SELECT id, store_id, staff_id, customer_id, total_amount, payment_status, receipt_number, sale_date, created_at FROM sales`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY sale_date DESC LIMIT 200"

	var result []domain.Sale
	if err := h.db.Select(&result, query, args...); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list sales")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) listSalePayments(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid sale id")
		return
	}
	var payments []domain.SplitPayment
	if err := h.db.Select(&payments, `SELECT id, sale_id, amount, payment_method_id, transaction_reference, payment_date FROM split_payments WHERE sale_id = $1 ORDER BY id`, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch payments")
		return
	}
	respondJSON(w, http.StatusOK, payments)
}

// Payment method registry

func (h *Handler) createPaymentMethod(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "Admin", "Manager") {
		return
	}
	var payload struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	var id int64
	if err := h.db.QueryRowx(`INSERT INTO payment_methods (name) VALUES ($1) RETURNING id`, payload.Name).Scan(&id); err != nil {
		respondError(w, http.StatusConflict, "payment method already exists")
		return
	}
	respondJSON(w, http.StatusCreated, domain.PaymentMethod{ID: id, Name: payload.Name})
}

func (h *Handler) listPaymentMethods(w http.ResponseWriter, r *http.Request) {
	var methods []domain.PaymentMethod
	if err := h.db.Select(&methods, `SELECT id, name FROM payment_methods ORDER BY id`); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list payment methods")
		return
	}
	respondJSON(w, http.StatusOK, methods)
}

func (h *Handler) deletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "Admin") {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid payment method id")
		return
	}
	var used int64
	if err := h.db.Get(&used, `SELECT COUNT(*) FROM split_payments WHERE payment_method_id = $1`, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to check payment method usage")
		return
	}
	if used > 0 {
		respondError(w, http.StatusBadRequest, "payment method is referenced by payments and cannot be deleted")
		return
	}
	if _, err := h.db.Exec(`DELETE FROM payment_methods WHERE id = $1`, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to delete payment method")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
