// Package sales owns every transaction that mutates stock: the sale
// commit, purchase-order receipt and manual adjustment. Each one runs
// inside a single database transaction while holding the keyed
// (store, item) locks, so concurrent decrements of the same stock row
// serialize and unrelated rows proceed in parallel.
package sales

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"retailpos/m/domain"
	"retailpos/m/internal/stocklock"
)

var (
	ErrNoLines              = errors.New("sale requires at least one line")
	ErrItemNotFound         = errors.New("item not found")
	ErrPriceUnset           = errors.New("price not set for item")
	ErrStockNotFound        = errors.New("stock record not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrPONotFound           = errors.New("purchase order not found")
	ErrPOAlreadyReceived    = errors.New("purchase order already received")
)

// paidEpsilon is the tolerance used when comparing the paid sum against
// the sale total.
const paidEpsilon = 0.01

// LineInput is one requested item within a sale. UnitPrice overrides the
// catalog price when set. Discount and tax are taken as given; no rule
// lookup happens here.
type LineInput struct {
	ItemID    int64    `json:"item_id"`
	Quantity  int64    `json:"quantity"`
	UnitPrice *float64 `json:"unit_price,omitempty"`
	Discount  float64  `json:"discount"`
	Tax       float64  `json:"tax"`
}

// PaymentInput is one payment instalment toward the sale total.
type PaymentInput struct {
	Amount               float64 `json:"amount"`
	PaymentMethodID      int64   `json:"payment_method_id"`
	TransactionReference *string `json:"transaction_reference,omitempty"`
}

// CommitInput is the full payload of one checkout.
type CommitInput struct {
	StoreID    int64          `json:"store_id"`
	StaffID    *int64         `json:"staff_id,omitempty"`
	CustomerID *int64         `json:"customer_id,omitempty"`
	Lines      []LineInput    `json:"items"`
	Payments   []PaymentInput `json:"payments"`
}

// Service executes stock-mutating transactions.
type Service struct {
	db    *sqlx.DB
	locks *stocklock.Keeper
}

func NewService(db *sqlx.DB) *Service {
	return &Service{db: db, locks: stocklock.NewKeeper()}
}

// Commit persists a sale with its lines and payments, decrements stock
// and appends the history ledger rows, all atomically. The total is
// always server-derived; the payment status is paid when the instalments
// cover the total within the epsilon, otherwise pending. Any error rolls
// back everything, including the sale row itself.
func (s *Service) Commit(ctx context.Context, in CommitInput) (*domain.Sale, error) {
	if len(in.Lines) == 0 {
		return nil, ErrNoLines
	}
	itemIDs := make([]int64, 0, len(in.Lines))
	for i, line := range in.Lines {
		if line.ItemID <= 0 || line.Quantity <= 0 {
			return nil, fmt.Errorf("line %d: item_id and a positive quantity are required", i+1)
		}
		itemIDs = append(itemIDs, line.ItemID)
	}

	// Locks are taken before the transaction starts so a blocked commit
	// never sits on the database connection.
	release := s.locks.Acquire(in.StoreID, itemIDs)
	defer release()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin sale: %w", err)
	}
	defer tx.Rollback()

	receipt := uuid.NewString()
	var saleID int64
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO sales (store_id, staff_id, customer_id, receipt_number) VALUES ($1, $2, $3, $4) RETURNING id`,
		in.StoreID, in.StaffID, in.CustomerID, receipt).Scan(&saleID)
	if err != nil {
		return nil, fmt.Errorf("create sale: %w", err)
	}

	var total float64
	for _, line := range in.Lines {
		var catalogPrice sql.NullFloat64
		err := tx.QueryRowxContext(ctx, `SELECT price FROM items WHERE id = $1`, line.ItemID).Scan(&catalogPrice)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("item %d: %w", line.ItemID, ErrItemNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve item %d: %w", line.ItemID, err)
		}

		var unitPrice float64
		switch {
		case line.UnitPrice != nil:
			unitPrice = *line.UnitPrice
		case catalogPrice.Valid:
			unitPrice = catalogPrice.Float64
		default:
			return nil, fmt.Errorf("item %d: %w", line.ItemID, ErrPriceUnset)
		}

		total += float64(line.Quantity)*unitPrice - line.Discount + line.Tax

		var stock struct {
			ID       int64 `db:"id"`
			Quantity int64 `db:"quantity"`
		}
		err = tx.GetContext(ctx, &stock, `SELECT id, quantity FROM stock WHERE store_id = $1 AND item_id = $2`, in.StoreID, line.ItemID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("item %d: %w", line.ItemID, ErrStockNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve stock for item %d: %w", line.ItemID, err)
		}
		if stock.Quantity < line.Quantity {
			return nil, fmt.Errorf("item %d: %w", line.ItemID, ErrInsufficientStock)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE stock SET quantity = $1, last_updated = CURRENT_TIMESTAMP WHERE id = $2`,
			stock.Quantity-line.Quantity, stock.ID); err != nil {
			return nil, fmt.Errorf("decrement stock for item %d: %w", line.ItemID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stock_history (stock_id, quantity_change, change_type, reason, related_sale_id) VALUES ($1, $2, $3, $4, $5)`,
			stock.ID, -line.Quantity, domain.StockChangeRemoval, fmt.Sprintf("Sale ID: %d", saleID), saleID); err != nil {
			return nil, fmt.Errorf("record stock history for item %d: %w", line.ItemID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sale_items (sale_id, item_id, quantity, unit_price, discount, tax) VALUES ($1, $2, $3, $4, $5, $6)`,
			saleID, line.ItemID, line.Quantity, unitPrice, line.Discount, line.Tax); err != nil {
			return nil, fmt.Errorf("save sale line for item %d: %w", line.ItemID, err)
		}
	}

	var totalPaid float64
	for _, payment := range in.Payments {
		var methodID int64
		err := tx.QueryRowxContext(ctx, `SELECT id FROM payment_methods WHERE id = $1`, payment.PaymentMethodID).Scan(&methodID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment method %d: %w", payment.PaymentMethodID, ErrInvalidPaymentMethod)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve payment method %d: %w", payment.PaymentMethodID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO split_payments (sale_id, amount, payment_method_id, transaction_reference) VALUES ($1, $2, $3, $4)`,
			saleID, payment.Amount, payment.PaymentMethodID, payment.TransactionReference); err != nil {
			return nil, fmt.Errorf("save payment: %w", err)
		}
		totalPaid += payment.Amount
	}

	// The source system never derives partially_paid; a short payment
	// stays pending.
	status := domain.PaymentPending
	if math.Abs(totalPaid-total) < paidEpsilon {
		status = domain.PaymentPaid
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sales SET total_amount = $1, payment_status = $2 WHERE id = $3`,
		total, status, saleID); err != nil {
		return nil, fmt.Errorf("finalize sale: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit sale: %w", err)
	}

	var sale domain.Sale
	if err := s.db.GetContext(ctx, &sale,
		`SELECT id, store_id, staff_id, customer_id, total_amount, payment_status, receipt_number, sale_date, created_at FROM sales WHERE id = $1`,
		saleID); err != nil {
		return nil, fmt.Errorf("load committed sale: %w", err)
	}
	return &sale, nil
}

// ReceivePurchaseOrder marks a pending order as received and folds its
// items into stock, creating stock records that don't exist yet and
// appending an addition ledger row per item. Receiving is one-shot: an
// order already in the received state stays untouched.
func (s *Service) ReceivePurchaseOrder(ctx context.Context, poID int64) (*domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	err := s.db.GetContext(ctx, &po,
		`SELECT id, supplier_id, store_id, order_date, expected_delivery_date, total_cost, status, notes, created_at FROM purchase_orders WHERE id = $1`, poID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPONotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load purchase order: %w", err)
	}
	if po.Status == domain.POReceived {
		return nil, ErrPOAlreadyReceived
	}

	var items []domain.PurchaseOrderItem
	if err := s.db.SelectContext(ctx, &items,
		`SELECT id, purchase_order_id, item_id, quantity_ordered, unit_price FROM purchase_order_items WHERE purchase_order_id = $1`, poID); err != nil {
		return nil, fmt.Errorf("load purchase order items: %w", err)
	}

	itemIDs := make([]int64, len(items))
	for i, item := range items {
		itemIDs[i] = item.ItemID
	}
	release := s.locks.Acquire(po.StoreID, itemIDs)
	defer release()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin receive: %w", err)
	}
	defer tx.Rollback()

	// Guard against a racing receive that won the locks first.
	var status string
	if err := tx.QueryRowxContext(ctx, `SELECT status FROM purchase_orders WHERE id = $1`, poID).Scan(&status); err != nil {
		return nil, fmt.Errorf("recheck purchase order: %w", err)
	}
	if status == domain.POReceived {
		return nil, ErrPOAlreadyReceived
	}

	for _, item := range items {
		var stock struct {
			ID       int64 `db:"id"`
			Quantity int64 `db:"quantity"`
		}
		err := tx.GetContext(ctx, &stock, `SELECT id, quantity FROM stock WHERE store_id = $1 AND item_id = $2`, po.StoreID, item.ItemID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if err := tx.QueryRowxContext(ctx,
				`INSERT INTO stock (store_id, item_id, quantity) VALUES ($1, $2, $3) RETURNING id`,
				po.StoreID, item.ItemID, item.QuantityOrdered).Scan(&stock.ID); err != nil {
				return nil, fmt.Errorf("create stock for item %d: %w", item.ItemID, err)
			}
		case err != nil:
			return nil, fmt.Errorf("resolve stock for item %d: %w", item.ItemID, err)
		default:
			if _, err := tx.ExecContext(ctx, `UPDATE stock SET quantity = $1, last_updated = CURRENT_TIMESTAMP WHERE id = $2`,
				stock.Quantity+item.QuantityOrdered, stock.ID); err != nil {
				return nil, fmt.Errorf("increment stock for item %d: %w", item.ItemID, err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stock_history (stock_id, quantity_change, change_type, reason, related_po_id) VALUES ($1, $2, $3, $4, $5)`,
			stock.ID, item.QuantityOrdered, domain.StockChangeAddition, fmt.Sprintf("PO Received: %d", poID), poID); err != nil {
			return nil, fmt.Errorf("record stock history for item %d: %w", item.ItemID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE purchase_orders SET status = $1 WHERE id = $2`, domain.POReceived, poID); err != nil {
		return nil, fmt.Errorf("mark purchase order received: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit receive: %w", err)
	}

	po.Status = domain.POReceived
	return &po, nil
}

// AdjustStock applies a signed manual correction to a stock record and
// appends the matching ledger row. The quantity can never go negative.
func (s *Service) AdjustStock(ctx context.Context, stockID, delta int64, reason string) (*domain.StockRecord, error) {
	var rec domain.StockRecord
	err := s.db.GetContext(ctx, &rec,
		`SELECT id, store_id, item_id, quantity, min_stock_level, location, last_updated FROM stock WHERE id = $1`, stockID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load stock: %w", err)
	}

	release := s.locks.Acquire(rec.StoreID, []int64{rec.ItemID})
	defer release()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin adjustment: %w", err)
	}
	defer tx.Rollback()

	// Re-read under the lock; the snapshot above may be stale.
	if err := tx.QueryRowxContext(ctx, `SELECT quantity FROM stock WHERE id = $1`, stockID).Scan(&rec.Quantity); err != nil {
		return nil, fmt.Errorf("reload stock: %w", err)
	}
	newQty := rec.Quantity + delta
	if newQty < 0 {
		return nil, fmt.Errorf("stock %d: %w", stockID, ErrInsufficientStock)
	}

	changeType := domain.StockChangeAdjustment
	switch {
	case delta > 0:
		changeType = domain.StockChangeAddition
	case delta < 0:
		changeType = domain.StockChangeRemoval
	}

	if _, err := tx.ExecContext(ctx, `UPDATE stock SET quantity = $1, last_updated = CURRENT_TIMESTAMP WHERE id = $2`, newQty, stockID); err != nil {
		return nil, fmt.Errorf("adjust stock: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO stock_history (stock_id, quantity_change, change_type, reason) VALUES ($1, $2, $3, $4)`,
		stockID, delta, changeType, reason); err != nil {
		return nil, fmt.Errorf("record adjustment history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit adjustment: %w", err)
	}

	rec.Quantity = newQty
	return &rec, nil
}
