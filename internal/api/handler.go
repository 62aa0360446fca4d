package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"retailpos/m/domain"
	"retailpos/m/internal/sales"
)

type ctxKey string

const (
	ctxStaffID ctxKey = "staffID"
	ctxRole    ctxKey = "role"
)

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db     *sqlx.DB
	secret string
	sales  *sales.Service
}

// New constructs a Handler.
func New(db *sqlx.DB, secret string) *Handler {
	return &Handler{db: db, secret: secret, sales: sales.NewService(db)}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/reset-password", h.resetPassword)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/stores", func(r chi.Router) {
			r.Post("/", h.createStore)
			r.Get("/", h.listStores)
			r.Put("/{id}", h.updateStore)
		})

		pr.Get("/staff", h.listStaff)

		pr.Route("/customers", func(r chi.Router) {
			r.Post("/", h.createCustomer)
			r.Get("/", h.listCustomers)
			r.Put("/{id}", h.updateCustomer)
		})

		pr.Route("/categories", func(r chi.Router) {
			r.Post("/", h.createCategory)
			r.Get("/", h.listCategories)
			r.Put("/{id}", h.updateCategory)
		})

		pr.Route("/items", func(r chi.Router) {
			r.Post("/", h.createItem)
			r.Get("/", h.searchItems)
			r.Put("/{id}", h.updateItem)
			r.Delete("/{id}", h.deleteItem)
		})

		pr.Route("/stock", func(r chi.Router) {
			r.Post("/", h.createStock)
			r.Get("/", h.listStock)
			r.Post("/{id}/adjust", h.adjustStock)
			r.Get("/{id}/history", h.stockHistory)
			r.Get("/low", h.lowStockAlerts)
		})

		pr.Route("/payment_methods", func(r chi.Router) {
			r.Post("/", h.createPaymentMethod)
			r.Get("/", h.listPaymentMethods)
			r.Delete("/{id}", h.deletePaymentMethod)
		})

		pr.Route("/sales", func(r chi.Router) {
			r.Post("/", h.processSale)
			r.Get("/", h.listSales)
			r.Get("/{id}", h.getSale)
			r.Get("/{id}/payments", h.listSalePayments)
		})

		pr.Route("/suppliers", func(r chi.Router) {
			r.Post("/", h.createSupplier)
			r.Get("/", h.listSuppliers)
		})

		pr.Route("/purchase_orders", func(r chi.Router) {
			r.Post("/", h.createPurchaseOrder)
			r.Get("/", h.listPurchaseOrders)
			r.Get("/{id}", h.getPurchaseOrder)
			r.Post("/{id}/receive", h.receivePurchaseOrder)
			r.Delete("/{id}", h.deletePurchaseOrder)
		})

		pr.Route("/reports", func(r chi.Router) {
			r.Get("/sales/daily", h.dailySales)
			r.Get("/sales/monthly", h.monthlySales)
			r.Get("/sales", h.salesReport)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Authentication helpers

type authClaims struct {
	StaffID int64  `json:"staff_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(staffID int64, role string) (string, error) {
	claims := authClaims{
		StaffID: staffID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), ctxStaffID, claims.StaffID)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	role := r.Context().Value(ctxRole)
	if role == nil {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	current := role.(string)
	for _, allowedRole := range allowed {
		if current == allowedRole {
			return true
		}
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}

// Auth Handlers

type registerRequest struct {
	FullName    string  `json:"full_name"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	Role        string  `json:"role"`
	PhoneNumber string  `json:"phone_number,omitempty"`
	Salary      float64 `json:"salary,omitempty"`
}

type authResponse struct {
	Token string       `json:"token"`
	Staff domain.Staff `json:"staff"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.FullName == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		respondError(w, http.StatusBadRequest, "full_name, email, password and role are required")
		return
	}
	if req.Role != "Admin" && req.Role != "Manager" && req.Role != "Employee" {
		respondError(w, http.StatusBadRequest, "role must be Admin, Manager or Employee")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}

	var staffID int64
	err = h.db.QueryRowx(`INSERT INTO staff (full_name, email, role, phone_number, salary, password) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		req.FullName, strings.ToLower(req.Email), req.Role, req.PhoneNumber, req.Salary, hashed).Scan(&staffID)
	if err != nil {
		respondError(w, http.StatusConflict, "email already exists")
		return
	}

	token, err := h.generateToken(staffID, req.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{Token: token, Staff: domain.Staff{
		ID:       staffID,
		FullName: req.FullName,
		Email:    strings.ToLower(req.Email),
		Role:     req.Role,
		Status:   "active",
	}})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var staff domain.Staff
	err := h.db.Get(&staff, `SELECT id, full_name, email, role, phone_number, salary, password, status FROM staff WHERE email = $1`, strings.ToLower(req.Email))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(staff.Password), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.generateToken(staff.ID, staff.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	staff.Password = ""
	respondJSON(w, http.StatusOK, authResponse{Token: token, Staff: staff})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.NewPassword == "" {
		respondError(w, http.StatusBadRequest, "new_password is required")
		return
	}
	staffID := r.Context().Value(ctxStaffID).(int64)
	hashed, err := bcrypt.GenerateFromPassword([]byte(payload.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}
	if _, err := h.db.Exec(`UPDATE staff SET password = $1 WHERE id = $2`, hashed, staffID); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update password")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

func (h *Handler) listStaff(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "Admin", "Manager") {
		return
	}
	var staff []domain.Staff
	if err := h.db.Select(&staff, `SELECT id, full_name, email, role, phone_number, salary, status, created_at FROM staff ORDER BY full_name`); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list staff")
		return
	}
	respondJSON(w, http.StatusOK, staff)
}

// Helpers

func nullIfEmpty(val string) *string {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
