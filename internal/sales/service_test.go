package sales

import (
	"context"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailpos/m/domain"
	"retailpos/m/internal/database"
	"retailpos/m/internal/migrations"
)

func newTestService(t *testing.T) (*Service, *sqlx.DB) {
	t.Helper()
	db := database.Connect(":memory:")
	t.Cleanup(func() { db.Close() })
	migrations.Run(db)
	return NewService(db), db
}

type fixture struct {
	storeID  int64
	staffID  int64
	cashID   int64
	cardID   int64
	itemA    int64 // priced 10.00, stock 50
	itemB    int64 // priced 25.50, stock 5
	unpriced int64 // no catalog price, stock 10
}

func seedFixture(t *testing.T, db *sqlx.DB) fixture {
	t.Helper()
	var f fixture
	mustInsert := func(dest *int64, query string, args ...any) {
		t.Helper()
		require.NoError(t, db.QueryRowx(query, args...).Scan(dest))
	}
	mustInsert(&f.storeID, `INSERT INTO stores (name) VALUES ('Main Street') RETURNING id`)
	mustInsert(&f.staffID, `INSERT INTO staff (full_name, email, password) VALUES ('Asha', 'asha@example.com', 'x') RETURNING id`)
	mustInsert(&f.cashID, `INSERT INTO payment_methods (name) VALUES ('Cash') RETURNING id`)
	mustInsert(&f.cardID, `INSERT INTO payment_methods (name) VALUES ('Card') RETURNING id`)
	mustInsert(&f.itemA, `INSERT INTO items (name, price) VALUES ('Beans', 10.0) RETURNING id`)
	mustInsert(&f.itemB, `INSERT INTO items (name, price) VALUES ('Olive Oil', 25.5) RETURNING id`)
	mustInsert(&f.unpriced, `INSERT INTO items (name) VALUES ('Mystery Box') RETURNING id`)

	seedStock(t, db, f.storeID, f.itemA, 50)
	seedStock(t, db, f.storeID, f.itemB, 5)
	seedStock(t, db, f.storeID, f.unpriced, 10)
	return f
}

func seedStock(t *testing.T, db *sqlx.DB, storeID, itemID, qty int64) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO stock (store_id, item_id, quantity) VALUES ($1, $2, $3)`, storeID, itemID, qty)
	require.NoError(t, err)
}

func stockQty(t *testing.T, db *sqlx.DB, storeID, itemID int64) int64 {
	t.Helper()
	var qty int64
	require.NoError(t, db.Get(&qty, `SELECT quantity FROM stock WHERE store_id = $1 AND item_id = $2`, storeID, itemID))
	return qty
}

func countRows(t *testing.T, db *sqlx.DB, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM `+table))
	return n
}

func TestCommitDerivesTotalAndDecrementsStock(t *testing.T) {
	svc, db := newTestService(t)
	f := seedFixture(t, db)

	sale, err := svc.Commit(context.Background(), CommitInput{
		StoreID: f.storeID,
		StaffID: &f.staffID,
		Lines: []LineInput{
			{ItemID: f.itemA, Quantity: 3, Discount: 2.0, Tax: 1.5},
			{ItemID: f.itemB, Quantity: 2},
		},
	})
	require.NoError(t, err)

	// 3*10.00 - 2.00 + 1.50 = 29.50, plus 2*25.50 = 51.00
	assert.InDelta(t, 80.50, sale.TotalAmount, 0.001)
	assert.Equal(t, domain.PaymentPending, sale.PaymentStatus)
	require.NotNil(t, sale.ReceiptNumber)
	assert.NotEmpty(t, *sale.ReceiptNumber)

	assert.Equal(t, int64(47), stockQty(t, db, f.storeID, f.itemA))
	assert.Equal(t, int64(3), stockQty(t, db, f.storeID, f.itemB))

	// Total always equals the sum of line subtotals.
	var lines []domain.SaleLine
	require.NoError(t, db.Select(&lines, `SELECT id, sale_id, item_id, quantity, unit_price, discount, tax FROM sale_items WHERE sale_id = $1`, sale.ID))
	require.Len(t, lines, 2)
	var sum float64
	for _, l := range lines {
		sum += l.Subtotal()
	}
	assert.InDelta(t, sale.TotalAmount, sum, 0.001)

	// Exactly one removal ledger row per line, delta -quantity.
	var entries []domain.StockHistoryEntry
	require.NoError(t, db.Select(&entries, `SELECT id, stock_id, quantity_change, change_type, reason, related_sale_id, change_date FROM stock_history WHERE related_sale_id = $1`, sale.ID))
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, domain.StockChangeRemoval, e.ChangeType)
		assert.Negative(t, e.QuantityChange)
	}
}

func TestCommitPaymentStatusDerivation(t *testing.T) {
	tests := []struct {
		name     string
		payments []float64
		want     string
	}{
		{"exact split covers total", []float64{60.00, 40.00}, domain.PaymentPaid},
		{"within epsilon", []float64{99.995}, domain.PaymentPaid},
		{"partial payment stays pending", []float64{30.00}, domain.PaymentPending},
		{"no payment", nil, domain.PaymentPending},
		{"overpaid beyond epsilon", []float64{110.00}, domain.PaymentPending},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, db := newTestService(t)
			f := seedFixture(t, db)

			payments := make([]PaymentInput, 0, len(tc.payments))
			for _, amount := range tc.payments {
				payments = append(payments, PaymentInput{Amount: amount, PaymentMethodID: f.cashID})
			}
			// 10 units at 10.00 = 100.00
			sale, err := svc.Commit(context.Background(), CommitInput{
				StoreID:  f.storeID,
				Lines:    []LineInput{{ItemID: f.itemA, Quantity: 10}},
				Payments: payments,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, sale.PaymentStatus)
		})
	}
}

func TestCommitPersistsSplitPayments(t *testing.T) {
	svc, db := newTestService(t)
	f := seedFixture(t, db)

	ref := "TXN-991"
	sale, err := svc.Commit(context.Background(), CommitInput{
		StoreID: f.storeID,
		Lines:   []LineInput{{ItemID: f.itemA, Quantity: 10}},
		Payments: []PaymentInput{
			{Amount: 60, PaymentMethodID: f.cashID},
			{Amount: 40, PaymentMethodID: f.cardID, TransactionReference: &ref},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, sale.PaymentStatus)

	var payments []domain.SplitPayment
	require.NoError(t, db.Select(&payments, `SELECT id, sale_id, amount, payment_method_id, transaction_reference, payment_date FROM split_payments WHERE sale_id = $1 ORDER BY id`, sale.ID))
	require.Len(t, payments, 2)
	assert.InDelta(t, 60.0, payments[0].Amount, 0.001)
	require.NotNil(t, payments[1].TransactionReference)
	assert.Equal(t, ref, *payments[1].TransactionReference)
}

func TestCommitInsufficientStockRollsBackEverything(t *testing.T) {
	svc, db := newTestService(t)
	f := seedFixture(t, db)

	// First line would succeed on its own; the second oversells itemB
	// (stock 5, requested 6) and must drag the whole sale down with it.
	_, err := svc.Commit(context.Background(), CommitInput{
		StoreID: f.storeID,
		Lines: []LineInput{
			{ItemID: f.itemA, Quantity: 1},
			{ItemID: f.itemB, Quantity: 6},
		},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	assert.Equal(t, int64(50), stockQty(t, db, f.storeID, f.itemA))
	assert.Equal(t, int64(5), stockQty(t, db, f.storeID, f.itemB))
	assert.Zero(t, countRows(t, db, "sales"))
	assert.Zero(t, countRows(t, db, "sale_items"))
	assert.Zero(t, countRows(t, db, "stock_history"))
}

func TestCommitErrorKinds(t *testing.T) {
	svc, db := newTestService(t)
	f := seedFixture(t, db)

	// Item with stock but no stock record in another store.
	var otherStore int64
	require.NoError(t, db.QueryRowx(`INSERT INTO stores (name) VALUES ('Annex') RETURNING id`).Scan(&otherStore))

	tests := []struct {
		name string
		in   CommitInput
		want error
	}{
		{"no lines", CommitInput{StoreID: f.storeID}, ErrNoLines},
		{"unknown item", CommitInput{StoreID: f.storeID, Lines: []LineInput{{ItemID: 9999, Quantity: 1}}}, ErrItemNotFound},
		{"price unset", CommitInput{StoreID: f.storeID, Lines: []LineInput{{ItemID: f.unpriced, Quantity: 1}}}, ErrPriceUnset},
		{"stock missing", CommitInput{StoreID: otherStore, Lines: []LineInput{{ItemID: f.itemA, Quantity: 1}}}, ErrStockNotFound},
		{"unknown payment method", CommitInput{
			StoreID:  f.storeID,
			Lines:    []LineInput{{ItemID: f.itemA, Quantity: 1}},
			Payments: []PaymentInput{{Amount: 10, PaymentMethodID: 9999}},
		}, ErrInvalidPaymentMethod},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Commit(context.Background(), tc.in)
			require.ErrorIs(t, err, tc.want)
		})
	}

	// None of the failed attempts may leave anything behind.
	assert.Zero(t, countRows(t, db, "sales"))
	assert.Zero(t, countRows(t, db, "split_payments"))
	assert.Equal(t, int64(50), stockQty(t, db, f.storeID, f.itemA))
}

func TestCommitPriceOverrideAndUnpricedItem(t *testing.T) {
	svc, db := newTestService(t)
	f := seedFixture(t, db)

	override := 7.25
	sale, err := svc.Commit(context.Background(), CommitInput{
		StoreID: f.storeID,
		Lines: []LineInput{
			{ItemID: f.itemA, Quantity: 2, UnitPrice: &override},
			// An unpriced item is sellable when the caller supplies a price.
			{ItemID: f.unpriced, Quantity: 1, UnitPrice: &override},
		},
	})
	require.NoError(t, err)
	assert.InDelta(t, 3*7.25, sale.TotalAmount, 0.001)
}

func TestCommitDuplicateItemLines(t *testing.T) {
	svc, db := newTestService(t)
	f := seedFixture(t, db)

	// Same item on two lines: both decrement under the one held lock.
	sale, err := svc.Commit(context.Background(), CommitInput{
		StoreID: f.storeID,
		Lines: []LineInput{
			{ItemID: f.itemB, Quantity: 2},
			{ItemID: f.itemB, Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stockQty(t, db, f.storeID, f.itemB))
	assert.Equal(t, int64(2), func() int64 {
		var n int64
		require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM stock_history WHERE related_sale_id = $1`, sale.ID))
		return n
	}())

	// The second occurrence sees the already-decremented quantity.
	_, err = svc.Commit(context.Background(), CommitInput{
		StoreID: f.storeID,
		Lines: []LineInput{
			{ItemID: f.itemB, Quantity: 2},
			{ItemID: f.itemB, Quantity: 1},
		},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, int64(2), stockQty(t, db, f.storeID, f.itemB))
}

func TestConcurrentCommitsNeverOversell(t *testing.T) {
	svc, db := newTestService(t)
	f := seedFixture(t, db)

	// Stock of 5, two simultaneous requests for 3: exactly one may win.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Commit(context.Background(), CommitInput{
				StoreID: f.storeID,
				Lines:   []LineInput{{ItemID: f.itemB, Quantity: 3}},
			})
		}(i)
	}
	wg.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, ErrInsufficientStock)
			failures++
		}
	}
	assert.Equal(t, 1, failures, "exactly one of the racing sales must fail")
	assert.Equal(t, int64(2), stockQty(t, db, f.storeID, f.itemB))
}

func TestCommitResubmissionAfterFailure(t *testing.T) {
	svc, db := newTestService(t)
	f := seedFixture(t, db)

	in := CommitInput{
		StoreID: f.storeID,
		Lines:   []LineInput{{ItemID: f.itemB, Quantity: 6}},
	}
	_, err := svc.Commit(context.Background(), in)
	require.ErrorIs(t, err, ErrInsufficientStock)

	// Identical resubmission fails identically, leaving no partial state.
	_, err = svc.Commit(context.Background(), in)
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Zero(t, countRows(t, db, "sales"))

	// A valid request afterwards produces an independent sale.
	in.Lines[0].Quantity = 5
	sale, err := svc.Commit(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stockQty(t, db, f.storeID, f.itemB))
	assert.Equal(t, int64(1), countRows(t, db, "sales"))
	assert.Positive(t, sale.ID)
}

func TestHistoryLedgerSumMatchesQuantity(t *testing.T) {
	svc, db := newTestService(t)
	f := seedFixture(t, db)

	for i := 0; i < 3; i++ {
		_, err := svc.Commit(context.Background(), CommitInput{
			StoreID: f.storeID,
			Lines:   []LineInput{{ItemID: f.itemA, Quantity: 4}},
		})
		require.NoError(t, err)
	}

	var stockID, initial int64 = 0, 50
	require.NoError(t, db.Get(&stockID, `SELECT id FROM stock WHERE store_id = $1 AND item_id = $2`, f.storeID, f.itemA))
	var deltaSum int64
	require.NoError(t, db.Get(&deltaSum, `SELECT COALESCE(SUM(quantity_change), 0) FROM stock_history WHERE stock_id = $1`, stockID))
	assert.Equal(t, stockQty(t, db, f.storeID, f.itemA)-initial, deltaSum)
}

func TestReceivePurchaseOrder(t *testing.T) {
	svc, db := newTestService(t)
	f := seedFixture(t, db)

	var supplierID int64
	require.NoError(t, db.QueryRowx(`INSERT INTO suppliers (name) VALUES ('Acme Wholesale') RETURNING id`).Scan(&supplierID))
	var newItem int64
	require.NoError(t, db.QueryRowx(`INSERT INTO items (name, price) VALUES ('Flour', 3.5) RETURNING id`).Scan(&newItem))

	var poID int64
	require.NoError(t, db.QueryRowx(`INSERT INTO purchase_orders (supplier_id, store_id, total_cost) VALUES ($1, $2, 120) RETURNING id`, supplierID, f.storeID).Scan(&poID))
	_, err := db.Exec(`INSERT INTO purchase_order_items (purchase_order_id, item_id, quantity_ordered, unit_price) VALUES ($1, $2, 20, 5), ($1, $3, 30, 1)`, poID, f.itemA, newItem)
	require.NoError(t, err)

	po, err := svc.ReceivePurchaseOrder(context.Background(), poID)
	require.NoError(t, err)
	assert.Equal(t, domain.POReceived, po.Status)

	// Existing stock incremented, missing stock created.
	assert.Equal(t, int64(70), stockQty(t, db, f.storeID, f.itemA))
	assert.Equal(t, int64(30), stockQty(t, db, f.storeID, newItem))

	var additions int64
	require.NoError(t, db.Get(&additions, `SELECT COUNT(*) FROM stock_history WHERE related_po_id = $1 AND change_type = $2`, poID, domain.StockChangeAddition))
	assert.Equal(t, int64(2), additions)

	// Receiving twice must not double the stock.
	_, err = svc.ReceivePurchaseOrder(context.Background(), poID)
	require.ErrorIs(t, err, ErrPOAlreadyReceived)
	assert.Equal(t, int64(70), stockQty(t, db, f.storeID, f.itemA))

	_, err = svc.ReceivePurchaseOrder(context.Background(), 9999)
	require.ErrorIs(t, err, ErrPONotFound)
}

func TestAdjustStock(t *testing.T) {
	svc, db := newTestService(t)
	f := seedFixture(t, db)

	var stockID int64
	require.NoError(t, db.Get(&stockID, `SELECT id FROM stock WHERE store_id = $1 AND item_id = $2`, f.storeID, f.itemB))

	rec, err := svc.AdjustStock(context.Background(), stockID, 7, "cycle count correction")
	require.NoError(t, err)
	assert.Equal(t, int64(12), rec.Quantity)

	rec, err = svc.AdjustStock(context.Background(), stockID, -2, "damaged goods")
	require.NoError(t, err)
	assert.Equal(t, int64(10), rec.Quantity)

	_, err = svc.AdjustStock(context.Background(), stockID, -100, "impossible")
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, int64(10), stockQty(t, db, f.storeID, f.itemB))

	_, err = svc.AdjustStock(context.Background(), 9999, 1, "nope")
	require.ErrorIs(t, err, ErrStockNotFound)

	var types []string
	require.NoError(t, db.Select(&types, `SELECT change_type FROM stock_history WHERE stock_id = $1 ORDER BY id`, stockID))
	assert.Equal(t, []string{domain.StockChangeAddition, domain.StockChangeRemoval}, types)
}
