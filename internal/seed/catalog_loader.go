package seed

import (
	"encoding/csv"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// LoadItems ingests the CSV into the items table, ignoring duplicates.
// Expected columns: name, barcode, price, cost_price, perishable.
func LoadItems(db *sqlx.DB, csvPath string) {
	file, err := os.Open(csvPath)
	if err != nil {
		log.Printf("unable to load item catalog %s: %v", csvPath, err)
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Skip header
	if _, err := reader.Read(); err != nil {
		log.Printf("unable to read catalog header: %v", err)
		return
	}

	tx, err := db.Beginx()
	if err != nil {
		log.Printf("unable to start catalog transaction: %v", err)
		return
	}
	stmt, err := tx.Preparex(`INSERT OR IGNORE INTO items (name, barcode, price, cost_price, is_perishable) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		log.Printf("unable to prepare item insert: %v", err)
		_ = tx.Rollback()
		return
	}
	defer stmt.Close()

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("unable to read catalog row: %v", err)
			continue
		}
		if len(record) < 5 {
			continue
		}
		name := strings.TrimSpace(record[0])
		barcode := strings.TrimSpace(record[1])
		if name == "" {
			continue
		}

		var price *float64
		if p, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64); err == nil {
			price = &p
		}
		costPrice, _ := strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
		perishable := strings.EqualFold(strings.TrimSpace(record[4]), "true")

		if _, err := stmt.Exec(name, barcode, price, costPrice, perishable); err != nil {
			log.Printf("unable to insert item %s: %v", name, err)
		} else {
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("unable to commit catalog seed: %v", err)
	} else {
		log.Printf("seeded item catalog with %d rows", rows)
	}
}

// EnsurePaymentMethods inserts the default payment methods so a fresh
// install can take payments immediately.
func EnsurePaymentMethods(db *sqlx.DB) {
	for _, name := range []string{"Cash", "Card", "Mobile"} {
		if _, err := db.Exec(`INSERT OR IGNORE INTO payment_methods (name) VALUES (?)`, name); err != nil {
			log.Printf("unable to seed payment method %s: %v", name, err)
		}
	}
}
