package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"retailpos/m/domain"
)

// Store handlers

type storeRequest struct {
	Name          string `json:"name"`
	Street        string `json:"street"`
	City          string `json:"city"`
	State         string `json:"state"`
	ZipCode       string `json:"zip_code"`
	ContactNumber string `json:"contact_number"`
	ManagerID     *int64 `json:"manager_id,omitempty"`
}

func (h *Handler) createStore(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "Admin", "Manager") {
		return
	}
	var req storeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	var id int64
	err := h.db.QueryRowx(`INSERT INTO stores (name, street, city, state, zip_code, contact_number, manager_id) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		req.Name, req.Street, req.City, req.State, req.ZipCode, req.ContactNumber, req.ManagerID).Scan(&id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create store")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id, "name": req.Name})
}

func (h *Handler) listStores(w http.ResponseWriter, r *http.Request) {
	var stores []domain.Store
	if err := h.db.Select(&stores, `SELECT id, name, street, city, state, zip_code, contact_number, manager_id, status, created_at, updated_at FROM stores ORDER BY name`); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list stores")
		return
	}
	respondJSON(w, http.StatusOK, stores)
}

func (h *Handler) updateStore(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "Admin", "Manager") {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid store id")
		return
	}
	var req storeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if _, err := h.db.Exec(`UPDATE stores SET name = $1, street = $2, city = $3, state = $4, zip_code = $5, contact_number = $6, manager_id = $7, updated_at = CURRENT_TIMESTAMP WHERE id = $8`,
		req.Name, req.Street, req.City, req.State, req.ZipCode, req.ContactNumber, req.ManagerID, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update store")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Customer handlers

type customerRequest struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Street      string `json:"street"`
	City        string `json:"city"`
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.FullName == "" {
		respondError(w, http.StatusBadRequest, "full_name is required")
		return
	}
	var id int64
	err := h.db.QueryRowx(`INSERT INTO customers (full_name, email, phone_number, street, city) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		req.FullName, strings.ToLower(req.Email), req.PhoneNumber, req.Street, req.City).Scan(&id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create customer")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id, "full_name": req.FullName})
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	var customers []domain.Customer
	var err error
	if query == "" {
		err = h.db.Select(&customers, `SELECT id, full_name, email, phone_number, street, city, loyalty_points, created_at FROM customers ORDER BY full_name LIMIT 50`)
	} else {
		like := "%" + query + "%"
		err = h.db.Select(&customers, `SELECT id, full_name, email, phone_number, street, city, loyalty_points, created_at FROM customers WHERE full_name LIKE $1 OR phone_number LIKE $1 ORDER BY full_name LIMIT 50`, like)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list customers")
		return
	}
	respondJSON(w, http.StatusOK, customers)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid customer id")
		return
	}
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.FullName == "" {
		respondError(w, http.StatusBadRequest, "full_name is required")
		return
	}
	if _, err := h.db.Exec(`UPDATE customers SET full_name = $1, email = $2, phone_number = $3, street = $4, city = $5 WHERE id = $6`,
		req.FullName, strings.ToLower(req.Email), req.PhoneNumber, req.Street, req.City, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update customer")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Category handlers

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Status == "" {
		req.Status = "active"
	}
	var id int64
	err := h.db.QueryRowx(`INSERT INTO categories (name, description, status) VALUES ($1, $2, $3) RETURNING id`,
		req.Name, req.Description, req.Status).Scan(&id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create category")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id, "name": req.Name})
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	var categories []domain.Category
	if err := h.db.Select(&categories, `SELECT id, name, description, status, created_at, updated_at FROM categories ORDER BY name`); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list categories")
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Status == "" {
		req.Status = "active"
	}
	if _, err := h.db.Exec(`UPDATE categories SET name = $1, description = $2, status = $3, updated_at = CURRENT_TIMESTAMP WHERE id = $4`,
		req.Name, req.Description, req.Status, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update category")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Item handlers

type itemRequest struct {
	Name         string   `json:"name"`
	CategoryID   *int64   `json:"category_id,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	CostPrice    float64  `json:"cost_price"`
	Barcode      string   `json:"barcode,omitempty"`
	IsPerishable bool     `json:"is_perishable"`
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	var id int64
	err := h.db.QueryRowx(`INSERT INTO items (name, category_id, price, cost_price, barcode, is_perishable) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		req.Name, req.CategoryID, req.Price, req.CostPrice, nullIfEmpty(req.Barcode), req.IsPerishable).Scan(&id)
	if err != nil {
		respondError(w, http.StatusConflict, "unable to create item (duplicate barcode?)")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id, "name": req.Name})
}

func (h *Handler) searchItems(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	var items []domain.Item
	var err error
	if query == "" {
		err = h.db.Select(&items, `SELECT id, name, category_id, price, cost_price, barcode, is_perishable, created_at, updated_at FROM items ORDER BY name LIMIT 25`)
	} else {
		like := "%" + query + "%"
		err = h.db.Select(&items, `SELECT id, name, category_id, price, cost_price, barcode, is_perishable, created_at, updated_at FROM items WHERE name LIKE $1 OR barcode = $2 ORDER BY name LIMIT 25`, like, query)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to search items")
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if _, err := h.db.Exec(`UPDATE items SET name = $1, category_id = $2, price = $3, cost_price = $4, barcode = $5, is_perishable = $6, updated_at = CURRENT_TIMESTAMP WHERE id = $7`,
		req.Name, req.CategoryID, req.Price, req.CostPrice, nullIfEmpty(req.Barcode), req.IsPerishable, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update item")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "Admin", "Manager") {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	var referenced int64
	if err := h.db.Get(&referenced, `SELECT COUNT(*) FROM sale_items WHERE item_id = $1`, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to check item usage")
		return
	}
	if referenced > 0 {
		respondError(w, http.StatusBadRequest, "item is referenced by sales and cannot be deleted")
		return
	}
	if _, err := h.db.Exec(`DELETE FROM items WHERE id = $1`, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to delete item")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
