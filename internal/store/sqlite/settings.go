package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"dukapos/internal/domain"
	"dukapos/internal/store"
)

// settingsID is the fixed id of the singleton configuration row.
const settingsID = 1

// GetSettings returns the singleton row, creating the default one if a
// pre-schema database somehow lacks it.
func (s *Store) GetSettings(ctx context.Context) (*domain.Settings, error) {
	settings, err := s.readSettings(ctx)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO settings (id, store_name, currency, timezone)
		VALUES (?, 'Liquor Store', 'KSH', 'Africa/Nairobi')
	`, settingsID); err != nil {
		return nil, err
	}
	return s.readSettings(ctx)
}

func (s *Store) readSettings(ctx context.Context) (*domain.Settings, error) {
	var settings domain.Settings
	var meta string
	var autoGenerate int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, store_name, COALESCE(currency, ''), COALESCE(timezone, ''),
			COALESCE(paybill_number, ''), COALESCE(account_number, ''),
			COALESCE(till_number, ''), COALESCE(phone_number, ''),
			COALESCE(auto_generate_next_month, 0), COALESCE(meta, '')
		FROM settings WHERE id = ?
	`, settingsID).Scan(
		&settings.ID, &settings.StoreName, &settings.Currency, &settings.Timezone,
		&settings.PaybillNumber, &settings.AccountNumber,
		&settings.TillNumber, &settings.PhoneNumber,
		&autoGenerate, &meta,
	)
	if err != nil {
		return nil, err
	}
	settings.AutoGenerateNextMonth = autoGenerate != 0
	settings.Meta = decodeMeta(meta)
	return &settings, nil
}

func (s *Store) UpdateSettings(ctx context.Context, req domain.SettingsUpdateRequest) error {
	if req.StoreName == "" {
		return store.ErrInvalidInput
	}
	meta, err := encodeMeta(req.Meta)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE settings
		SET store_name = ?, currency = ?, timezone = ?, paybill_number = ?,
			account_number = ?, till_number = ?, phone_number = ?,
			auto_generate_next_month = ?, meta = ?
		WHERE id = ?
	`, req.StoreName, req.Currency, req.Timezone, req.PaybillNumber,
		req.AccountNumber, req.TillNumber, req.PhoneNumber,
		boolToInt(req.AutoGenerateNextMonth), meta, settingsID)
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
