package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "kampanyasepeti/crawlworker/pkg/errors"
)

const campaignColumns = `id, brand_id, category_id, title, description, discount_rate,
	image_url, source_url, start_date, end_date, status, created_at, updated_at, last_seen_at`

// PostgresCatalog is the production Catalog backed by Postgres
type PostgresCatalog struct {
	db *sqlx.DB
}

// NewPostgresCatalog creates a Postgres-backed catalog
func NewPostgresCatalog(db *sqlx.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

func (p *PostgresCatalog) FindByNaturalKey(ctx context.Context, brandID, sourceURL string) (*Campaign, error) {
	var c Campaign
	err := p.db.GetContext(ctx, &c,
		`SELECT `+campaignColumns+` FROM campaigns WHERE brand_id = $1 AND source_url = $2`,
		brandID, sourceURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find campaign by natural key: %w", err)
	}
	return &c, nil
}

func (p *PostgresCatalog) Insert(ctx context.Context, c *Campaign) (*Campaign, error) {
	stored := *c
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	query := `
		INSERT INTO campaigns (id, brand_id, category_id, title, description, discount_rate,
			image_url, source_url, start_date, end_date, status, created_at, updated_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := p.db.ExecContext(ctx, query,
		stored.ID, stored.BrandID, stored.CategoryID, stored.Title, stored.Description,
		stored.DiscountRate, stored.ImageURL, stored.SourceURL, stored.StartDate,
		stored.EndDate, stored.Status, stored.CreatedAt, stored.UpdatedAt, stored.LastSeenAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert campaign: %w", err)
	}
	return &stored, nil
}

func (p *PostgresCatalog) Update(ctx context.Context, id string, patch Patch) (*Campaign, error) {
	sets := []string{}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.DiscountRate != nil {
		add("discount_rate", *patch.DiscountRate)
	}
	if patch.ImageURL != nil {
		add("image_url", *patch.ImageURL)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.UpdatedAt != nil {
		add("updated_at", *patch.UpdatedAt)
	}
	if patch.LastSeenAt != nil {
		add("last_seen_at", *patch.LastSeenAt)
	}
	if len(sets) == 0 {
		return p.getByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE campaigns SET %s WHERE id = $%d",
		strings.Join(sets, ", "), len(args))
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update campaign: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return nil, apperrors.NewNotFound("campaign", id)
	}
	return p.getByID(ctx, id)
}

func (p *PostgresCatalog) getByID(ctx context.Context, id string) (*Campaign, error) {
	var c Campaign
	err := p.db.GetContext(ctx, &c,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("campaign", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	return &c, nil
}

func (p *PostgresCatalog) ListActiveByBrand(ctx context.Context, brandID string) ([]*Campaign, error) {
	var cs []*Campaign
	err := p.db.SelectContext(ctx, &cs,
		`SELECT `+campaignColumns+` FROM campaigns WHERE brand_id = $1 AND status = $2`,
		brandID, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active campaigns: %w", err)
	}
	return cs, nil
}

func (p *PostgresCatalog) List(ctx context.Context, filter Filter) ([]*Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE 1=1`
	args := []interface{}{}
	if filter.BrandID != nil {
		args = append(args, *filter.BrandID)
		query += fmt.Sprintf(" AND brand_id = $%d", len(args))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		query += fmt.Sprintf(" AND category_id = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	switch filter.Sort {
	case SortEndingSoon:
		query += " ORDER BY end_date ASC NULLS LAST, created_at DESC"
	case SortHighestDiscount, SortPopular:
		query += " ORDER BY discount_rate DESC NULLS LAST, created_at DESC"
	default:
		query += " ORDER BY created_at DESC"
	}

	var cs []*Campaign
	if err := p.db.SelectContext(ctx, &cs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return cs, nil
}

// PostgresDirectory serves brand and category lookups from Postgres
type PostgresDirectory struct {
	db *sqlx.DB
}

// NewPostgresDirectory creates a Postgres-backed brand/category directory
func NewPostgresDirectory(db *sqlx.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (p *PostgresDirectory) BrandExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := p.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM brands WHERE id = $1)`, id)
	if err != nil {
		return false, fmt.Errorf("failed to check brand: %w", err)
	}
	return exists, nil
}

func (p *PostgresDirectory) GetBrand(ctx context.Context, id string) (*Brand, error) {
	var b Brand
	err := p.db.GetContext(ctx, &b,
		`SELECT id, name, logo_url, domain FROM brands WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("brand", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load brand: %w", err)
	}
	err = p.db.SelectContext(ctx, &b.CategoryIDs,
		`SELECT category_id FROM brand_categories WHERE brand_id = $1 ORDER BY category_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load brand categories: %w", err)
	}
	return &b, nil
}

func (p *PostgresDirectory) ListBrands(ctx context.Context) ([]*Brand, error) {
	var bs []*Brand
	err := p.db.SelectContext(ctx, &bs,
		`SELECT id, name, logo_url, domain FROM brands ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list brands: %w", err)
	}
	return bs, nil
}

func (p *PostgresDirectory) ListCategories(ctx context.Context) ([]*Category, error) {
	var cs []*Category
	err := p.db.SelectContext(ctx, &cs,
		`SELECT id, name, icon, color FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return cs, nil
}
