// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codeberg.org/oliverandrich/productscan/internal/database"
	"codeberg.org/oliverandrich/productscan/internal/models"
)

const productColumns = `id, user_id, name, description, brand, category, identified_text,
	image_url, metadata, created_at`

// UserProductCount pairs a user with the number of products they own.
type UserProductCount struct {
	ID           int64  `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	ProductCount int64  `db:"product_count" json:"product_count"`
}

// CreateProduct inserts a product for its owner and fills in ID and CreatedAt.
func (r *Repository) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.UserID == 0 {
		return fmt.Errorf("failed to create product: owner is required")
	}
	if p.Metadata == nil {
		p.Metadata = models.Metadata{}
	}
	now := time.Now().UTC()

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO products (user_id, name, description, brand, category, identified_text,
			image_url, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Name, p.Description, p.Brand, p.Category, p.IdentifiedText,
		p.ImageURL, p.Metadata, now)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", wrapError(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read product id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	return nil
}

// GetProductByID retrieves a single product.
func (r *Repository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	err := r.db.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &p, nil
}

// ListProductsByUser returns the products owned by a user, newest first.
func (r *Repository) ListProductsByUser(ctx context.Context, userID int64) ([]models.Product, error) {
	products := []models.Product{}
	err := r.db.SelectContext(ctx, &products,
		`SELECT `+productColumns+` FROM products WHERE user_id = ? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// ListProducts returns every product, newest first.
func (r *Repository) ListProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := r.db.SelectContext(ctx, &products,
		`SELECT `+productColumns+` FROM products ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// SearchProducts returns products whose name, description or brand contains
// text, ignoring case. Results are ordered by ID so repeated calls are stable.
func (r *Repository) SearchProducts(ctx context.Context, text string) ([]models.Product, error) {
	pattern := "%" + escapeLike(strings.ToLower(text)) + "%"

	products := []models.Product{}
	err := r.db.SelectContext(ctx, &products,
		`SELECT `+productColumns+` FROM products
		WHERE `+database.FoldFunc+`(name) LIKE ? ESCAPE '\'
			OR `+database.FoldFunc+`(description) LIKE ? ESCAPE '\'
			OR `+database.FoldFunc+`(brand) LIKE ? ESCAPE '\'
		ORDER BY id`,
		pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return products, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// DeleteProduct removes a product regardless of owner.
func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	return requireAffected(r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id))
}

// DeleteUserProduct removes a product only if userID owns it.
func (r *Repository) DeleteUserProduct(ctx context.Context, id, userID int64) error {
	return requireAffected(r.db.ExecContext(ctx,
		`DELETE FROM products WHERE id = ? AND user_id = ?`, id, userID))
}

// CountProducts returns the total number of products.
func (r *Repository) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT count(*) FROM products`)
	return count, err
}

// CountProductsByUser returns the number of products a user owns.
func (r *Repository) CountProductsByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT count(*) FROM products WHERE user_id = ?`, userID)
	return count, err
}

// MostActiveUser returns the active user owning the most products. Ties go to
// the lower user ID. ErrNotFound is returned when nobody owns a product.
func (r *Repository) MostActiveUser(ctx context.Context) (*UserProductCount, error) {
	var out UserProductCount
	err := r.db.GetContext(ctx, &out,
		`SELECT u.id, u.username, count(p.id) AS product_count
		FROM users u JOIN products p ON p.user_id = u.id
		WHERE u.deleted_at IS NULL
		GROUP BY u.id, u.username
		ORDER BY product_count DESC, u.id
		LIMIT 1`)
	if err != nil {
		return nil, wrapError(err)
	}
	return &out, nil
}
