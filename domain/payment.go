package domain

type PaymentMethod struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type SplitPayment struct {
	ID                   int64   `db:"id" json:"id"`
	SaleID               int64   `db:"sale_id" json:"sale_id"`
	Amount               float64 `db:"amount" json:"amount"`
	PaymentMethodID      int64   `db:"payment_method_id" json:"payment_method_id"`
	TransactionReference *string `db:"transaction_reference" json:"transaction_reference,omitempty"`
	PaymentDate          string  `db:"payment_date" json:"payment_date"`
}
