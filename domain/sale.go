package domain

// Payment statuses. PaymentPartiallyPaid exists in the schema but the
// commit flow only ever derives paid or pending.
const (
	PaymentPending       = "pending"
	PaymentPaid          = "paid"
	PaymentCancelled     = "cancelled"
	PaymentPartiallyPaid = "partially_paid"
)

type Sale struct {
	ID            int64   `db:"id" json:"id"`
	StoreID       int64   `db:"store_id" json:"store_id"`
	StaffID       *int64  `db:"staff_id" json:"staff_id,omitempty"`
	CustomerID    *int64  `db:"customer_id" json:"customer_id,omitempty"`
	TotalAmount   float64 `db:"total_amount" json:"total_amount"`
	PaymentStatus string  `db:"payment_status" json:"payment_status"`
	ReceiptNumber *string `db:"receipt_number" json:"receipt_number,omitempty"`
	SaleDate      string  `db:"sale_date" json:"sale_date"`
	CreatedAt     string  `db:"created_at" json:"created_at"`
}

type SaleLine struct {
	ID        int64   `db:"id" json:"id"`
	SaleID    int64   `db:"sale_id" json:"sale_id"`
	ItemID    int64   `db:"item_id" json:"item_id"`
	Quantity  int64   `db:"quantity" json:"quantity"`
	UnitPrice float64 `db:"unit_price" json:"unit_price"`
	Discount  float64 `db:"discount" json:"discount"`
	Tax       float64 `db:"tax" json:"tax"`
}

// Subtotal is always derived, never stored.
func (l SaleLine) Subtotal() float64 {
	return float64(l.Quantity)*l.UnitPrice - l.Discount + l.Tax
}
