package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Brownie44l1/ripeness-api/internal/db/models"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const DefaultListLimit = 50

type IClassificationRepository interface {
	Repository[models.Classification]
	List(ctx context.Context, limit int) ([]models.Classification, error)
}

type ClassificationRepository struct {
	db *bun.DB
}

func NewClassificationRepository(db *bun.DB) IClassificationRepository {
	return &ClassificationRepository{db: db}
}

func (r *ClassificationRepository) Create(ctx context.Context, c *models.Classification) (*models.Classification, error) {
	if c == nil {
		return nil, fmt.Errorf("classification model is nil")
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	if _, err := r.db.NewInsert().Model(c).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to insert classification: %w", err)
	}
	return c, nil
}

func (r *ClassificationRepository) GetByID(ctx context.Context, id string) (*models.Classification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var c models.Classification
	if err := r.db.NewSelect().Model(&c).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &c, nil
}

// List returns the most recent classifications first.
func (r *ClassificationRepository) List(ctx context.Context, limit int) ([]models.Classification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var out []models.Classification
	if err := r.db.NewSelect().
		Model(&out).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx); err != nil {
		return nil, err
	}
	return out, nil
}
