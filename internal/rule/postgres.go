package rule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "kampanyasepeti/crawlworker/pkg/errors"
)

const ruleColumns = `id, brand_id, url, selector_item, selector_title, selector_discount,
	selector_image, selector_description, schedule, is_active, last_crawled_at, created_at`

// PostgresStore is the production Store backed by Postgres
type PostgresStore struct {
	db     *sqlx.DB
	brands BrandDirectory
	now    func() time.Time
}

// NewPostgresStore creates a Postgres-backed store
func NewPostgresStore(db *sqlx.DB, brands BrandDirectory) *PostgresStore {
	return &PostgresStore{db: db, brands: brands, now: time.Now}
}

func (s *PostgresStore) Create(ctx context.Context, draft Draft) (*CrawlRule, error) {
	if err := validateDraft(ctx, s.brands, draft); err != nil {
		return nil, err
	}

	r := CrawlRule{
		ID:          uuid.NewString(),
		BrandID:     draft.BrandID,
		URL:         draft.URL,
		SelectorSet: draft.Selectors,
		Schedule:    draft.Schedule,
		Active:      draft.Active,
		CreatedAt:   s.now().UTC(),
	}

	query := `
		INSERT INTO crawl_rules (id, brand_id, url, selector_item, selector_title,
			selector_discount, selector_image, selector_description, schedule, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.BrandID, r.URL, r.Item, r.Title, r.Discount, r.Image, r.Description,
		r.Schedule, r.Active, r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create crawl rule: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, patch Patch) (*CrawlRule, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin update: %w", err)
	}
	defer tx.Rollback()

	var current CrawlRule
	err = tx.GetContext(ctx, &current,
		`SELECT `+ruleColumns+` FROM crawl_rules WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("crawl rule", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load crawl rule: %w", err)
	}

	patched := applyPatch(current, patch)
	draft := Draft{
		BrandID:   patched.BrandID,
		URL:       patched.URL,
		Selectors: patched.SelectorSet,
		Schedule:  patched.Schedule,
		Active:    patched.Active,
	}
	if err := validateDraft(ctx, s.brands, draft); err != nil {
		return nil, err
	}

	// last_crawled_at is deliberately left out: it belongs to RecordRun
	query := `
		UPDATE crawl_rules
		SET brand_id=$1, url=$2, selector_item=$3, selector_title=$4, selector_discount=$5,
			selector_image=$6, selector_description=$7, schedule=$8
		WHERE id=$9
	`
	_, err = tx.ExecContext(ctx, query,
		patched.BrandID, patched.URL, patched.Item, patched.Title, patched.Discount,
		patched.Image, patched.Description, patched.Schedule, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update crawl rule: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}
	return &patched, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM crawl_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete crawl rule: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return apperrors.NewNotFound("crawl rule", id)
	}
	return nil
}

func (s *PostgresStore) SetActive(ctx context.Context, id string, active bool) (*CrawlRule, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE crawl_rules SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return nil, fmt.Errorf("failed to set crawl rule active flag: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return nil, apperrors.NewNotFound("crawl rule", id)
	}
	return s.Get(ctx, id)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*CrawlRule, error) {
	var r CrawlRule
	err := s.db.GetContext(ctx, &r,
		`SELECT `+ruleColumns+` FROM crawl_rules WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("crawl rule", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load crawl rule: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*CrawlRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM crawl_rules WHERE 1=1`
	args := []interface{}{}
	if filter.BrandID != nil {
		args = append(args, *filter.BrandID)
		query += fmt.Sprintf(" AND brand_id = $%d", len(args))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		query += fmt.Sprintf(" AND is_active = $%d", len(args))
	}
	query += " ORDER BY created_at, id"

	var rules []*CrawlRule
	if err := s.db.SelectContext(ctx, &rules, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list crawl rules: %w", err)
	}
	return rules, nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, id string, ts time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE crawl_rules SET last_crawled_at = $1 WHERE id = $2`, ts.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return apperrors.NewNotFound("crawl rule", id)
	}
	return nil
}
