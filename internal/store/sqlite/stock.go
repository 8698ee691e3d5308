package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dukapos/internal/domain"
	"dukapos/internal/store"
)

// AddStock appends a ledger entry and increments the product balance
// by the same amount, in one transaction.
func (s *Store) AddStock(ctx context.Context, req domain.StockAddRequest) (int64, error) {
	if req.ProductID < 1 || req.Quantity <= 0 {
		return 0, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE id = ?`, req.ProductID).Scan(&exists); err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, store.ErrNotFound
	}

	var expiry any
	if req.ExpiryDate != nil {
		expiry = req.ExpiryDate.UTC().Format(timeLayout)
	}
	now := time.Now().UTC().Format(timeLayout)

	res, err := tx.ExecContext(ctx, `
		INSERT INTO stock_entries (product_id, quantity, note, supplier, batch_number, expiry_date, date_added)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, req.ProductID, req.Quantity, req.Note, req.Supplier, req.BatchNumber, expiry, now)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err := adjustProductQuantity(ctx, tx, req.ProductID, req.Quantity, false); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// DeleteStock removes a ledger entry and takes its quantity back out
// of the product balance. The re-read inside the transaction guards
// against deleting the same entry twice: once the row is gone the
// whole call is a not-found no-op, with no second decrement.
func (s *Store) DeleteStock(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var quantity int
	var productID int64
	err = tx.QueryRowContext(ctx, `
		SELECT quantity, product_id FROM stock_entries WHERE id = ?
	`, id).Scan(&quantity, &productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM stock_entries WHERE id = ?`, id); err != nil {
		return err
	}
	if err := adjustProductQuantity(ctx, tx, productID, -quantity, false); err != nil {
		return err
	}

	return tx.Commit()
}

const stockColumns = `
	s.id, s.product_id, COALESCE(p.name, ''), s.quantity,
	COALESCE(s.note, ''), COALESCE(s.supplier, ''), COALESCE(s.batch_number, ''),
	s.expiry_date, s.date_added
`

func scanStockEntry(row interface{ Scan(...any) error }) (domain.StockEntry, error) {
	var e domain.StockEntry
	var expiry sql.NullString
	var dateAdded string
	err := row.Scan(
		&e.ID, &e.ProductID, &e.ProductName, &e.Quantity,
		&e.Note, &e.Supplier, &e.BatchNumber,
		&expiry, &dateAdded,
	)
	if err != nil {
		return domain.StockEntry{}, err
	}
	e.ExpiryDate = parseTimePtr(expiry)
	e.DateAdded = parseTime(dateAdded)
	return e, nil
}

func (s *Store) ListStockByProduct(ctx context.Context, productID int64, limit int, offset int) ([]domain.StockEntry, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+stockColumns+`
		FROM stock_entries s
		JOIN products p ON s.product_id = p.id
		WHERE s.product_id = ?
		ORDER BY s.date_added DESC, s.id DESC
		LIMIT ? OFFSET ?
	`, productID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectStockEntries(rows)
}

// ListStockByDateRange returns ledger entries whose date_added falls on
// the inclusive calendar-day range, with days evaluated in loc (the
// store's configured timezone). Most recent first.
func (s *Store) ListStockByDateRange(ctx context.Context, productID int64, rng domain.DateRange, loc *time.Location) ([]domain.StockEntry, error) {
	start, end, err := dayBoundsUTC(rng, loc)
	if err != nil {
		return nil, store.ErrInvalidInput
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+stockColumns+`
		FROM stock_entries s
		JOIN products p ON s.product_id = p.id
		WHERE s.product_id = ? AND s.date_added >= ? AND s.date_added < ?
		ORDER BY s.date_added DESC, s.id DESC
	`, productID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectStockEntries(rows)
}

func collectStockEntries(rows *sql.Rows) ([]domain.StockEntry, error) {
	entries := make([]domain.StockEntry, 0, 32)
	for rows.Next() {
		e, err := scanStockEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
