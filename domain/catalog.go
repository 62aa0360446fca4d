package domain

type Category struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	Status      string `db:"status" json:"status"`
	CreatedAt   string `db:"created_at" json:"created_at"`
	UpdatedAt   string `db:"updated_at" json:"updated_at"`
}

type Item struct {
	ID           int64    `db:"id" json:"id"`
	Name         string   `db:"name" json:"name"`
	CategoryID   *int64   `db:"category_id" json:"category_id,omitempty"`
	Price        *float64 `db:"price" json:"price,omitempty"`
	CostPrice    float64  `db:"cost_price" json:"cost_price"`
	Barcode      *string  `db:"barcode" json:"barcode,omitempty"`
	IsPerishable bool     `db:"is_perishable" json:"is_perishable"`
	CreatedAt    string   `db:"created_at" json:"created_at"`
	UpdatedAt    string   `db:"updated_at" json:"updated_at"`
}
