package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dukapos/internal/domain"
	"dukapos/internal/store"
)

func (s *Store) CreateCategory(ctx context.Context, name string, rating int) (int64, error) {
	if name == "" {
		return 0, store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (name, rating) VALUES (?, ?)
	`, name, rating)
	if err != nil {
		if isUniqueViolation(err, "categories.name") {
			return 0, store.ErrInvalidInput
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, rating FROM categories ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Rating); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	var c domain.Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, rating FROM categories WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.Rating)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.Category) error {
	if category.Name == "" {
		return store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories SET name = ?, rating = ? WHERE id = ?
	`, category.Name, category.Rating, category.ID)
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

// DeleteCategory refuses to orphan products: the product listing joins
// the category name, so a product without a resolvable category cannot
// render.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM products WHERE category_id = ?
	`, id).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return store.ErrCategoryInUse
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
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

const productColumns = `
	p.id, p.name, p.category_id, COALESCE(c.name, ''),
	COALESCE(p.description, ''), p.quantity, p.price,
	COALESCE(p.buying_price, 0), COALESCE(p.volume, 0),
	COALESCE(p.alcohol_percentage, 0), COALESCE(p.measurement_unit, ''),
	p.rating, COALESCE(p.image, ''), COALESCE(p.meta, ''),
	COALESCE(p.origin, ''), p.threshold, p.created_at, p.updated_at
`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	var meta, createdAt, updatedAt string
	err := row.Scan(
		&p.ID, &p.Name, &p.CategoryID, &p.CategoryName,
		&p.Description, &p.Quantity, &p.Price,
		&p.BuyingPrice, &p.Volume,
		&p.AlcoholPercentage, &p.MeasurementUnit,
		&p.Rating, &p.Image, &meta,
		&p.Origin, &p.Threshold, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Product{}, err
	}
	p.Meta = decodeMeta(meta)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// ListProducts orders by rating descending — the rating counter grows
// with every sale, so this is "best selling first" — then name. A zero
// CategoryID means no category filter.
func (s *Store) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON p.category_id = c.id
	`
	args := make([]any, 0, 3)
	if filter.CategoryID > 0 {
		query += ` WHERE p.category_id = ?`
		args = append(args, filter.CategoryID)
	}
	query += ` ORDER BY p.rating DESC, p.name ASC`

	limit := filter.Limit
	if limit < 1 {
		limit = 1000
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON p.category_id = c.id
		WHERE p.id = ?
	`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// UpsertProduct creates or updates a catalog entry. New products start
// with quantity 0 — stock arrives through the ledger. On update the
// stored quantity is untouched unless the request carries the unlock
// flag.
func (s *Store) UpsertProduct(ctx context.Context, req domain.ProductUpsertRequest) (int64, error) {
	if req.Name == "" || req.Price <= 0 || req.CategoryID < 1 {
		return 0, store.ErrInvalidInput
	}

	meta, err := encodeMeta(req.Meta)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC().Format(timeLayout)

	if req.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO products (name, category_id, description, quantity, price,
				buying_price, volume, alcohol_percentage, measurement_unit, rating,
				image, meta, origin, threshold, created_at, updated_at)
			VALUES (?, ?, ?, 0, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, req.Name, req.CategoryID, req.Description, req.Price,
			req.BuyingPrice, req.Volume, req.AlcoholPercentage, req.MeasurementUnit, req.Rating,
			req.Image, meta, req.Origin, req.Threshold, now, now)
		if err != nil {
			if isUniqueViolation(err, "products.name") {
				return 0, store.ErrDuplicateProduct
			}
			return 0, err
		}
		return res.LastInsertId()
	}

	query := `
		UPDATE products SET name = ?, category_id = ?, description = ?, price = ?,
			buying_price = ?, volume = ?, alcohol_percentage = ?, measurement_unit = ?,
			rating = ?, image = ?, meta = ?, origin = ?, threshold = ?, updated_at = ?
	`
	args := []any{req.Name, req.CategoryID, req.Description, req.Price,
		req.BuyingPrice, req.Volume, req.AlcoholPercentage, req.MeasurementUnit,
		req.Rating, req.Image, meta, req.Origin, req.Threshold, now}
	if req.UnlockQuantity {
		query += `, quantity = ?`
		args = append(args, req.Quantity)
	}
	query += ` WHERE id = ?`
	args = append(args, req.ID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err, "products.name") {
			return 0, store.ErrDuplicateProduct
		}
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, store.ErrNotFound
	}
	return req.ID, nil
}

func (s *Store) ListLowStock(ctx context.Context, limit int) ([]domain.Product, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON p.category_id = c.id
		WHERE p.quantity <= p.threshold
		ORDER BY p.rating DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
