package sqlite

import (
	"context"
	"database/sql"
	"time"

	"dukapos/internal/domain"
	"dukapos/internal/store"
)

func (s *Store) AddSubscription(ctx context.Context, req domain.SubscriptionUpsertRequest) (int64, error) {
	if req.UserID < 1 || req.Name == "" || req.Amount <= 0 || req.DueDate.IsZero() {
		return 0, store.ErrInvalidInput
	}
	meta, err := encodeMeta(req.Meta)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, name, amount, due_date, status, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, req.UserID, req.Name, req.Amount, req.DueDate.UTC().Format(timeLayout),
		domain.SubscriptionPending, meta, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) EditSubscription(ctx context.Context, req domain.SubscriptionUpsertRequest) error {
	if req.ID < 1 || req.UserID < 1 || req.Name == "" || req.Amount <= 0 || req.DueDate.IsZero() {
		return store.ErrInvalidInput
	}
	meta, err := encodeMeta(req.Meta)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions SET user_id = ?, name = ?, amount = ?, due_date = ?, meta = ?
		WHERE id = ? AND is_deleted = 0
	`, req.UserID, req.Name, req.Amount, req.DueDate.UTC().Format(timeLayout), meta, req.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SoftDeleteSubscription(ctx context.Context, id int64) error {
	return s.setSubscriptionDeleted(ctx, id, 1)
}

func (s *Store) RestoreSubscription(ctx context.Context, id int64) error {
	return s.setSubscriptionDeleted(ctx, id, 0)
}

func (s *Store) setSubscriptionDeleted(ctx context.Context, id int64, deleted int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE subscriptions SET is_deleted = ? WHERE id = ?`, deleted, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) MarkSubscriptionPaid(ctx context.Context, id int64, paymentDate time.Time) error {
	if paymentDate.IsZero() {
		paymentDate = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions SET status = ?, payment_date = ?
		WHERE id = ? AND is_deleted = 0
	`, domain.SubscriptionPaid, paymentDate.UTC().Format(timeLayout), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

const subscriptionColumns = `
	id, user_id, COALESCE(name, ''), amount, due_date, status,
	COALESCE(meta, ''), created_at, payment_date, is_deleted
`

func scanSubscription(row interface{ Scan(...any) error }) (domain.Subscription, error) {
	var sub domain.Subscription
	var meta, dueDate, createdAt string
	var paymentDate sql.NullString
	var isDeleted int
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.Name, &sub.Amount, &dueDate, &sub.Status,
		&meta, &createdAt, &paymentDate, &isDeleted,
	)
	if err != nil {
		return domain.Subscription{}, err
	}
	sub.Meta = decodeMeta(meta)
	sub.DueDate = parseTime(dueDate)
	sub.CreatedAt = parseTime(createdAt)
	sub.PaymentDate = parseTimePtr(paymentDate)
	sub.IsDeleted = isDeleted != 0
	return sub, nil
}

// ListSubscriptionsForUser returns the user's non-deleted subscriptions
// together with their amount sum, in one store call.
func (s *Store) ListSubscriptionsForUser(ctx context.Context, userID int64) (*domain.UserSubscriptions, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = ? AND is_deleted = 0
		ORDER BY due_date DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &domain.UserSubscriptions{Subscriptions: make([]domain.Subscription, 0, 16)}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		result.Subscriptions = append(result.Subscriptions, sub)
		result.TotalAmount += sub.Amount
	}
	return result, rows.Err()
}

// ListAllSubscriptions joins user identity fields and carries the
// global sum of non-deleted amounts regardless of the filters, as the
// dashboard headline figure.
func (s *Store) ListAllSubscriptions(ctx context.Context, filter domain.SubscriptionFilter) (*domain.SubscriptionList, error) {
	query := `
		SELECT s.id, s.user_id, COALESCE(s.name, ''), s.amount, s.due_date, s.status,
			COALESCE(s.meta, ''), s.created_at, s.payment_date, s.is_deleted,
			COALESCE(u.name, ''), COALESCE(u.email, ''), COALESCE(u.phone, '')
		FROM subscriptions s
		INNER JOIN users u ON s.user_id = u.id
		WHERE s.is_deleted = 0
	`
	args := make([]any, 0, 3)
	if filter.DueRange != nil {
		start, end, err := dayBoundsUTC(*filter.DueRange, time.UTC)
		if err != nil {
			return nil, store.ErrInvalidInput
		}
		query += ` AND s.due_date >= ? AND s.due_date < ?`
		args = append(args, start, end)
	}
	if filter.Status != "" {
		query += ` AND s.status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY s.due_date DESC, s.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &domain.SubscriptionList{Subscriptions: make([]domain.SubscriptionWithUser, 0, 32)}
	for rows.Next() {
		var sub domain.SubscriptionWithUser
		var meta, dueDate, createdAt string
		var paymentDate sql.NullString
		var isDeleted int
		err := rows.Scan(
			&sub.ID, &sub.UserID, &sub.Name, &sub.Amount, &dueDate, &sub.Status,
			&meta, &createdAt, &paymentDate, &isDeleted,
			&sub.UserName, &sub.UserEmail, &sub.UserPhone,
		)
		if err != nil {
			return nil, err
		}
		sub.Meta = decodeMeta(meta)
		sub.DueDate = parseTime(dueDate)
		sub.CreatedAt = parseTime(createdAt)
		sub.PaymentDate = parseTimePtr(paymentDate)
		sub.IsDeleted = isDeleted != 0
		result.Subscriptions = append(result.Subscriptions, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM subscriptions WHERE is_deleted = 0
	`).Scan(&result.TotalAmount)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SweepOverdueSubscriptions flips pending subscriptions whose due date
// has passed to overdue. Returns the number of rows flipped.
func (s *Store) SweepOverdueSubscriptions(ctx context.Context, now time.Time) (int, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions SET status = ?
		WHERE status = ? AND due_date < ? AND is_deleted = 0
	`, domain.SubscriptionOverdue, domain.SubscriptionPending, now.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// GenerateNextMonthRollover clones every paid, non-deleted subscription
// into next month's pending record unless the user already has a
// non-deleted subscription with the same name in the target year-month.
// Running it twice within a month creates nothing the second time.
func (s *Store) GenerateNextMonthRollover(ctx context.Context, now time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT user_id, COALESCE(name, ''), amount, due_date, COALESCE(meta, '')
		FROM subscriptions
		WHERE status = ? AND is_deleted = 0
	`, domain.SubscriptionPaid)
	if err != nil {
		return 0, err
	}

	type rollover struct {
		userID  int64
		name    string
		amount  float64
		dueDate time.Time
		meta    string
	}
	candidates := make([]rollover, 0, 32)
	for rows.Next() {
		var r rollover
		var dueDate string
		if err := rows.Scan(&r.userID, &r.name, &r.amount, &dueDate, &r.meta); err != nil {
			_ = rows.Close()
			return 0, err
		}
		r.dueDate = parseTime(dueDate)
		candidates = append(candidates, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	_ = rows.Close()

	if now.IsZero() {
		now = time.Now().UTC()
	}
	created := 0
	creationTime := now.UTC().Format(timeLayout)
	for _, r := range candidates {
		next := r.dueDate.AddDate(0, 1, 0)
		targetMonth := next.Format("2006-01")

		var exists int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM subscriptions
			WHERE user_id = ? AND name = ? AND strftime('%Y-%m', due_date) = ? AND is_deleted = 0
		`, r.userID, r.name, targetMonth).Scan(&exists)
		if err != nil {
			return 0, err
		}
		if exists > 0 {
			continue
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO subscriptions (user_id, name, amount, due_date, status, meta, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.userID, r.name, r.amount, next.UTC().Format(timeLayout),
			domain.SubscriptionPending, r.meta, creationTime)
		if err != nil {
			return 0, err
		}
		created++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return created, nil
}
