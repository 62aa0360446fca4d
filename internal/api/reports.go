package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"retailpos/m/domain"
)

// Reports

func (h *Handler) dailySales(w http.ResponseWriter, r *http.Request) {
	storeID := r.URL.Query().Get("store_id")
	query := `SELECT COALESCE(SUM(total_amount), 0) AS revenue, COUNT(*) AS count FROM sales WHERE DATE(sale_date) = DATE('now')`
	args := []interface{}{}
	if storeID != "" {
		query += " AND store_id = $1"
		args = append(args, storeID)
	}
	var revenue float64
	var count int64
	err := h.db.QueryRow(query, args...).Scan(&revenue, &count)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch daily sales")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"revenue": revenue, "sales_count": count})
}

func (h *Handler) monthlySales(w http.ResponseWriter, r *http.Request) {
	storeID := r.URL.Query().Get("store_id")
	query := `SELECT COALESCE(SUM(total_amount), 0) AS revenue, COUNT(*) AS count FROM sales WHERE strftime('%Y-%m', sale_date) = strftime('%Y-%m', 'now')`
	args := []interface{}{}
	if storeID != "" {
		query += " AND store_id = $1"
		args = append(args, storeID)
	}
	var revenue float64
	var count int64
	err := h.db.QueryRow(query, args...).Scan(&revenue, &count)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch monthly sales")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"revenue": revenue, "sales_count": count})
}

type saleLineDetail struct {
	SaleID    int64   `db:"sale_id" json:"sale_id"`
	ItemID    int64   `db:"item_id" json:"item_id"`
	ItemName  string  `db:"item_name" json:"item_name"`
	Quantity  int64   `db:"quantity" json:"quantity"`
	UnitPrice float64 `db:"unit_price" json:"unit_price"`
	Discount  float64 `db:"discount" json:"discount"`
	Tax       float64 `db:"tax" json:"tax"`
}

type saleReportEntry struct {
	domain.Sale
	Items []saleLineDetail `json:"items"`
}

func (h *Handler) salesReport(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "Admin", "Manager") {
		return
	}

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
	query += " ORDER BY sale_date DESC"

	var result []domain.Sale
	if err := h.db.Select(&result, query, args...); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch sales report")
		return
	}
	if len(result) == 0 {
		respondJSON(w, http.StatusOK, []saleReportEntry{})
		return
	}

	ids := make([]int64, len(result))
	for i, sale := range result {
		ids[i] = sale.ID
	}

	itemsQuery, itemsArgs, err := sqlx.In(`SELECT si.sale_id, si.item_id, si.quantity, si.unit_price, si.discount, si.tax, i.name AS item_name
                FROM sale_items si
                JOIN items i ON i.id = si.item_id
                WHERE si.sale_id IN (?)`, ids)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to prepare sale items query")
		return
	}
	itemsQuery = h.db.Rebind(itemsQuery)

	var rows []saleLineDetail
	if err := h.db.Select(&rows, itemsQuery, itemsArgs...); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load sale items")
		return
	}
	itemsBySale := make(map[int64][]saleLineDetail)
	for _, row := range rows {
		itemsBySale[row.SaleID] = append(itemsBySale[row.SaleID], row)
	}

	report := make([]saleReportEntry, len(result))
	for i, sale := range result {
		report[i] = saleReportEntry{Sale: sale, Items: itemsBySale[sale.ID]}
	}

	respondJSON(w, http.StatusOK, report)
}
