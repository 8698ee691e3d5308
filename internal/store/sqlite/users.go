package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dukapos/internal/domain"
	"dukapos/internal/store"
)

func (s *Store) CreateUser(ctx context.Context, req domain.UserUpsertRequest) (int64, error) {
	if req.Name == "" || req.Phone == "" {
		return 0, store.ErrInvalidInput
	}
	meta, err := encodeMeta(req.Meta)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (name, email, phone, meta, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, req.Name, req.Email, req.Phone, meta, now)
	if err != nil {
		if isUniqueViolation(err, "users.phone") {
			return 0, store.ErrDuplicatePhone
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) UpdateUser(ctx context.Context, req domain.UserUpsertRequest) error {
	if req.ID < 1 || req.Name == "" || req.Phone == "" {
		return store.ErrInvalidInput
	}
	meta, err := encodeMeta(req.Meta)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET name = ?, email = ?, phone = ?, meta = ? WHERE id = ?
	`, req.Name, req.Email, req.Phone, meta, req.ID)
	if err != nil {
		if isUniqueViolation(err, "users.phone") {
			return store.ErrDuplicatePhone
		}
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

const userColumns = `
	id, COALESCE(name, ''), COALESCE(email, ''), COALESCE(phone, ''),
	COALESCE(meta, ''), is_deleted, created_at
`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var u domain.User
	var meta, createdAt string
	var isDeleted int
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &meta, &isDeleted, &createdAt)
	if err != nil {
		return domain.User{}, err
	}
	u.Meta = decodeMeta(meta)
	u.IsDeleted = isDeleted != 0
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = ?
	`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE is_deleted = 0
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, 32)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) SoftDeleteUser(ctx context.Context, id int64) error {
	return s.setUserDeleted(ctx, id, 1)
}

func (s *Store) RestoreUser(ctx context.Context, id int64) error {
	return s.setUserDeleted(ctx, id, 0)
}

func (s *Store) setUserDeleted(ctx context.Context, id int64, deleted int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_deleted = ? WHERE id = ?`, deleted, id)
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

func (s *Store) CreateStaff(ctx context.Context, account domain.StaffAccount) error {
	if account.Username == "" || account.Password == "" {
		return store.ErrInvalidInput
	}
	created := account.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO staff_accounts (username, password, role, active, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, account.Username, account.Password, account.Role, boolToInt(account.Active), created.Format(timeLayout))
	if err != nil && isUniqueViolation(err, "staff_accounts.username") {
		return store.ErrInvalidInput
	}
	return err
}

func (s *Store) ListStaff(ctx context.Context) ([]domain.StaffAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM staff_accounts
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]domain.StaffAccount, 0, 8)
	for rows.Next() {
		var a domain.StaffAccount
		var active int
		var createdAt string
		if err := rows.Scan(&a.Username, &a.Password, &a.Role, &active, &createdAt); err != nil {
			return nil, err
		}
		a.Active = active != 0
		a.CreatedAt = parseTime(createdAt)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *Store) UpdateStaffPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE staff_accounts SET password = ? WHERE username = ?
	`, password, username)
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

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
