package domain

type Store struct {
	ID            int64  `db:"id" json:"id"`
	Name          string `db:"name" json:"name"`
	Street        string `db:"street" json:"street"`
	City          string `db:"city" json:"city"`
	State         string `db:"state" json:"state"`
	ZipCode       string `db:"zip_code" json:"zip_code"`
	ContactNumber string `db:"contact_number" json:"contact_number"`
	ManagerID     *int64 `db:"manager_id" json:"manager_id,omitempty"`
	Status        string `db:"status" json:"status"`
	CreatedAt     string `db:"created_at" json:"created_at"`
	UpdatedAt     string `db:"updated_at" json:"updated_at"`
}
