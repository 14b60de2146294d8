package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"fleet-analytics/internal/models"
	"fleet-analytics/pkg/database"
	"fleet-analytics/pkg/logging"
	"fleet-analytics/pkg/metrics"
)

// PricingRepository provides data access for the pricing schedule
type PricingRepository interface {
	ListPricing(ctx context.Context) ([]models.PricingEntry, error)
	GetPricing(ctx context.Context, id int64) (*models.PricingEntry, error)
	CreatePricing(ctx context.Context, entry *models.PricingEntry) error
	DeletePricing(ctx context.Context, id int64) error

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// pricingRow is the database shape of a pricing entry; open bounds are NULL
type pricingRow struct {
	ID           int64        `db:"id"`
	Destination  string       `db:"destination"`
	PricePerUnit float64      `db:"price_per_unit"`
	ValidFrom    sql.NullTime `db:"valid_from"`
	ValidTo      sql.NullTime `db:"valid_to"`
}

func (r pricingRow) toEntry() models.PricingEntry {
	entry := models.PricingEntry{
		ID:           r.ID,
		Destination:  r.Destination,
		PricePerUnit: r.PricePerUnit,
	}
	if r.ValidFrom.Valid {
		entry.ValidFrom = models.TruncateDay(r.ValidFrom.Time)
	}
	if r.ValidTo.Valid {
		entry.ValidTo = models.TruncateDay(r.ValidTo.Time)
	}
	return entry
}

func nullDate(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: models.TruncateDay(t), Valid: true}
}

// pricingRepository implements PricingRepository
type pricingRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewPricingRepository creates a new pricing repository
func NewPricingRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) PricingRepository {
	return &pricingRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ListPricing retrieves every pricing entry ordered by destination and start
func (r *pricingRepository) ListPricing(ctx context.Context) ([]models.PricingEntry, error) {
	query := `
		SELECT id, destination, price_per_unit, valid_from, valid_to
		FROM pricing
		ORDER BY destination, valid_from NULLS LAST, id
	`

	var rows []pricingRow
	if err := r.db.SelectContext(ctx, "list_pricing", &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list pricing: %w", err)
	}

	entries := make([]models.PricingEntry, len(rows))
	for i, row := range rows {
		entries[i] = row.toEntry()
	}
	return entries, nil
}

// GetPricing retrieves one pricing entry by id
func (r *pricingRepository) GetPricing(ctx context.Context, id int64) (*models.PricingEntry, error) {
	query := `
		SELECT id, destination, price_per_unit, valid_from, valid_to
		FROM pricing
		WHERE id = $1
	`

	var row pricingRow
	err := r.db.GetContext(ctx, "get_pricing", &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{
			Resource: "pricing",
			ID:       strconv.FormatInt(id, 10),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pricing: %w", err)
	}

	entry := row.toEntry()
	return &entry, nil
}

// CreatePricing validates and inserts entry, setting its ID. An entry whose
// window intersects another entry of the same destination is rejected.
func (r *pricingRepository) CreatePricing(ctx context.Context, entry *models.PricingEntry) error {
	entry.Destination = models.NormalizeText(entry.Destination)
	if err := entry.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	from, to := nullDate(entry.ValidFrom), nullDate(entry.ValidTo)

	var existing int64
	err = tx.GetContext(ctx, &existing, `
		SELECT id FROM pricing
		WHERE destination = $1
		  AND (valid_from IS NULL OR $3::date IS NULL OR valid_from <= $3::date)
		  AND (valid_to IS NULL OR $2::date IS NULL OR $2::date <= valid_to)
		ORDER BY id
		LIMIT 1
	`, entry.Destination, from, to)
	switch {
	case err == nil:
		return &models.OverlapError{Destination: entry.Destination, ExistingID: existing}
	case !errors.Is(err, sql.ErrNoRows):
		r.metrics.RecordDBError("overlap_check_error")
		return fmt.Errorf("failed to check pricing overlap: %w", err)
	}

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO pricing (destination, price_per_unit, valid_from, valid_to, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, entry.Destination, entry.PricePerUnit, from, to, time.Now().UTC()).Scan(&entry.ID)
	if err != nil {
		r.metrics.RecordDBError("insert_error")
		return fmt.Errorf("failed to create pricing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Info(ctx, "[REPO_CREATE_PRICING] Pricing entry created", logging.Fields{
		"id":             entry.ID,
		"destination":    entry.Destination,
		"price_per_unit": entry.PricePerUnit,
	})

	return nil
}

// DeletePricing removes a pricing entry by id
func (r *pricingRepository) DeletePricing(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "delete_pricing", `DELETE FROM pricing WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pricing: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete pricing: %w", err)
	}
	if affected == 0 {
		return &models.NotFoundError{
			Resource: "pricing",
			ID:       strconv.FormatInt(id, 10),
		}
	}

	r.logger.Info(ctx, "[REPO_DELETE_PRICING] Pricing entry deleted", logging.Fields{
		"id": id,
	})

	return nil
}

// HealthCheck performs a repository health check
func (r *pricingRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
