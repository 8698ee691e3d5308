package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"dukapos/internal/domain"
	"dukapos/internal/store"
)

// CreateOrder persists a denormalized order: the caller-supplied line
// snapshot is serialized as-is, the total is Σ(qty × price) over that
// snapshot, and each line's product balance is decremented (clamped at
// zero) while its rating grows by the sold quantity. All of it commits
// or none of it does.
func (s *Store) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (int64, error) {
	if len(req.Lines) == 0 {
		return 0, store.ErrInvalidInput
	}
	if req.PaymentType != domain.PaymentCash && req.PaymentType != domain.PaymentCashless {
		return 0, store.ErrInvalidInput
	}

	var total float64
	for _, line := range req.Lines {
		if line.ID < 1 || line.Quantity < 1 || line.Price < 0 {
			return 0, store.ErrInvalidInput
		}
		total += float64(line.Quantity) * line.Price
	}

	snapshot, err := json.Marshal(req.Lines)
	if err != nil {
		return 0, fmt.Errorf("encode order lines: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(timeLayout)
	res, err := tx.ExecContext(ctx, `
		INSERT INTO orders (lines, total, payment_type, tax, shipping_cost, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(snapshot), total, req.PaymentType, req.Tax, req.ShippingCost, now, now)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, line := range req.Lines {
		if err := adjustProductQuantity(ctx, tx, line.ID, -line.Quantity, true); err != nil {
			return 0, err
		}
		// Rating doubles as a sales-popularity counter.
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET rating = rating + ? WHERE id = ?
		`, line.Quantity, line.ID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

const orderColumns = `
	id, lines, total, payment_type, COALESCE(tax, 0), COALESCE(shipping_cost, 0),
	is_deleted, created_at, updated_at
`

func scanOrder(row interface{ Scan(...any) error }) (domain.Order, error) {
	var o domain.Order
	var lines, createdAt, updatedAt string
	var isDeleted int
	err := row.Scan(
		&o.ID, &lines, &o.Total, &o.PaymentType, &o.Tax, &o.ShippingCost,
		&isDeleted, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	if err := json.Unmarshal([]byte(lines), &o.Lines); err != nil {
		return domain.Order{}, fmt.Errorf("order %d: %w: %v", o.ID, store.ErrCorruptOrder, err)
	}
	o.IsDeleted = isDeleted != 0
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE id = ? AND is_deleted = 0
	`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (s *Store) ListOrders(ctx context.Context, limit int, offset int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE is_deleted = 0
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectOrders(rows)
}

func (s *Store) ListOrdersByDateRange(ctx context.Context, rng domain.DateRange, loc *time.Location) ([]domain.Order, error) {
	start, end, err := dayBoundsUTC(rng, loc)
	if err != nil {
		return nil, store.ErrInvalidInput
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE is_deleted = 0 AND created_at >= ? AND created_at < ?
		ORDER BY created_at DESC, id DESC
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectOrders(rows)
}

func collectOrders(rows *sql.Rows) ([]domain.Order, error) {
	orders := make([]domain.Order, 0, 32)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// SoftDeleteOrder marks the order deleted and puts every line's
// quantity back on the product it came from. An unreadable line
// snapshot aborts the whole operation — a partial, silently wrong
// restoration would corrupt the stock balances.
func (s *Store) SoftDeleteOrder(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var snapshot string
	err = tx.QueryRowContext(ctx, `
		SELECT lines FROM orders WHERE id = ? AND is_deleted = 0
	`, id).Scan(&snapshot)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}

	var lines []domain.OrderLine
	if err := json.Unmarshal([]byte(snapshot), &lines); err != nil {
		return fmt.Errorf("order %d: %w: %v", id, store.ErrCorruptOrder, err)
	}

	for _, line := range lines {
		if err := adjustProductQuantity(ctx, tx, line.ID, line.Quantity, false); err != nil {
			return err
		}
	}

	now := time.Now().UTC().Format(timeLayout)
	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET is_deleted = 1, updated_at = ? WHERE id = ?
	`, now, id); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) SalesByPaymentType(ctx context.Context) ([]domain.PaymentTypeSales, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payment_type, COALESCE(SUM(total), 0)
		FROM orders
		WHERE is_deleted = 0
		GROUP BY payment_type
		ORDER BY payment_type ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.PaymentTypeSales, 0, 2)
	for rows.Next() {
		var s domain.PaymentTypeSales
		if err := rows.Scan(&s.PaymentType, &s.TotalSales); err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

func (s *Store) MonthlySales(ctx context.Context, year int) ([]domain.MonthlySales, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m', created_at) AS month, COALESCE(SUM(total), 0)
		FROM orders
		WHERE is_deleted = 0 AND strftime('%Y', created_at) = ?
		GROUP BY month
		ORDER BY month ASC
	`, strconv.Itoa(year))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.MonthlySales, 0, 12)
	for rows.Next() {
		var m domain.MonthlySales
		if err := rows.Scan(&m.Month, &m.TotalSales); err != nil {
			return nil, err
		}
		sales = append(sales, m)
	}
	return sales, rows.Err()
}
