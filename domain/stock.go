package domain

// Stock change types recorded in the history ledger.
const (
	StockChangeAddition   = "addition"
	StockChangeRemoval    = "removal"
	StockChangeAdjustment = "adjustment"
	StockChangeInitial    = "initial"
)

type StockRecord struct {
	ID            int64  `db:"id" json:"id"`
	StoreID       int64  `db:"store_id" json:"store_id"`
	ItemID        int64  `db:"item_id" json:"item_id"`
	Quantity      int64  `db:"quantity" json:"quantity"`
	MinStockLevel int64  `db:"min_stock_level" json:"min_stock_level"`
	Location      string `db:"location" json:"location"`
	LastUpdated   string `db:"last_updated" json:"last_updated"`
}

// StockHistoryEntry is append-only: the sum of deltas for a stock record
// equals its current quantity minus its initial quantity.
type StockHistoryEntry struct {
	ID             int64  `db:"id" json:"id"`
	StockID        int64  `db:"stock_id" json:"stock_id"`
	QuantityChange int64  `db:"quantity_change" json:"quantity_change"`
	ChangeType     string `db:"change_type" json:"change_type"`
	Reason         string `db:"reason" json:"reason"`
	RelatedSaleID  *int64 `db:"related_sale_id" json:"related_sale_id,omitempty"`
	RelatedPOID    *int64 `db:"related_po_id" json:"related_po_id,omitempty"`
	ChangeDate     string `db:"change_date" json:"change_date"`
}
