package domain

type Staff struct {
	ID          int64   `db:"id" json:"id"`
	FullName    string  `db:"full_name" json:"full_name"`
	Email       string  `db:"email" json:"email"`
	Role        string  `db:"role" json:"role"`
	PhoneNumber string  `db:"phone_number" json:"phone_number"`
	Salary      float64 `db:"salary" json:"salary"`
	Password    string  `db:"password" json:"password,omitempty"`
	Status      string  `db:"status" json:"status"`
	CreatedAt   string  `db:"created_at" json:"created_at,omitempty"`
}

type Customer struct {
	ID            int64  `db:"id" json:"id"`
	FullName      string `db:"full_name" json:"full_name"`
	Email         string `db:"email" json:"email"`
	PhoneNumber   string `db:"phone_number" json:"phone_number"`
	Street        string `db:"street" json:"street"`
	City          string `db:"city" json:"city"`
	LoyaltyPoints int64  `db:"loyalty_points" json:"loyalty_points"`
	CreatedAt     string `db:"created_at" json:"created_at"`
}
