// Package event records consumed domain events so redelivery is idempotent.
package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/market/driver"
	"goflare.io/market/models"
)

var _ Repository = (*repository)(nil)

type Repository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	MarkAsProcessed(ctx context.Context, id string) error
}

type repository struct {
	conn   driver.PostgresPool
	logger *zap.Logger
}

func NewRepository(conn driver.PostgresPool, logger *zap.Logger) Repository {
	return &repository{
		conn:   conn,
		logger: logger,
	}
}

func (r *repository) Create(ctx context.Context, event *models.Event) error {
	_, err := r.conn.Exec(ctx, `
INSERT INTO events (id, type, data, processed, created_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())
ON CONFLICT (id) DO NOTHING
`, event.ID, string(event.Type), event.Data, event.Processed)
	if err != nil {
		r.logger.Error("failed to record event", zap.String("event_id", event.ID), zap.Error(err))
	}
	return err
}

func (r *repository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	var (
		e         models.Event
		eventType string
	)
	err := r.conn.QueryRow(ctx, `
SELECT id, type, data, processed, created_at, updated_at
FROM events
WHERE id = $1
`, id).Scan(&e.ID, &eventType, &e.Data, &e.Processed, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	e.Type = models.EventType(eventType)
	return &e, nil
}

func (r *repository) MarkAsProcessed(ctx context.Context, id string) error {
	_, err := r.conn.Exec(ctx, `
UPDATE events SET processed = true, updated_at = now() WHERE id = $1
`, id)
	return err
}
