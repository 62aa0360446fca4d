package domain

// Purchase order statuses.
const (
	POPending   = "pending"
	POShipped   = "shipped"
	POReceived  = "received"
	POCancelled = "cancelled"
)

type Supplier struct {
	ID            int64  `db:"id" json:"id"`
	Name          string `db:"name" json:"name"`
	ContactPerson string `db:"contact_person" json:"contact_person"`
	ContactInfo   string `db:"contact_info" json:"contact_info"`
	Address       string `db:"address" json:"address"`
	CreatedAt     string `db:"created_at" json:"created_at"`
}

type PurchaseOrder struct {
	ID                   int64   `db:"id" json:"id"`
	SupplierID           int64   `db:"supplier_id" json:"supplier_id"`
	StoreID              int64   `db:"store_id" json:"store_id"`
	OrderDate            string  `db:"order_date" json:"order_date"`
	ExpectedDeliveryDate *string `db:"expected_delivery_date" json:"expected_delivery_date,omitempty"`
	TotalCost            float64 `db:"total_cost" json:"total_cost"`
	Status               string  `db:"status" json:"status"`
	Notes                string  `db:"notes" json:"notes"`
	CreatedAt            string  `db:"created_at" json:"created_at"`
}

type PurchaseOrderItem struct {
	ID              int64   `db:"id" json:"id"`
	PurchaseOrderID int64   `db:"purchase_order_id" json:"purchase_order_id"`
	ItemID          int64   `db:"item_id" json:"item_id"`
	QuantityOrdered int64   `db:"quantity_ordered" json:"quantity_ordered"`
	UnitPrice       float64 `db:"unit_price" json:"unit_price"`
}
