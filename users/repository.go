// Package users maintains the durable user profiles orders are attributed to.
package users

import (
	"context"

	"go.uber.org/zap"

	"goflare.io/market/driver"
	"goflare.io/market/models"
)

var _ Repository = (*repository)(nil)

type Repository interface {
	// UpsertFromIdentity creates or refreshes the profile for the caller.
	// Idempotent; checkout calls it unconditionally so order creation
	// never depends on first-login timing.
	UpsertFromIdentity(ctx context.Context, identity models.Identity) (*models.UserProfile, error)
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

func (r *repository) UpsertFromIdentity(ctx context.Context, identity models.Identity) (*models.UserProfile, error) {
	const q = `
INSERT INTO users (subject, email, name, created_at, last_seen_at)
VALUES ($1, $2, $3, now(), now())
ON CONFLICT (subject) DO UPDATE
SET email = EXCLUDED.email,
    name = EXCLUDED.name,
    last_seen_at = now()
RETURNING id, subject, email, name, created_at, last_seen_at
`
	var profile models.UserProfile
	err := r.conn.QueryRow(ctx, q, identity.Subject, identity.Email, identity.Name).Scan(
		&profile.ID,
		&profile.Subject,
		&profile.Email,
		&profile.Name,
		&profile.CreatedAt,
		&profile.LastSeenAt,
	)
	if err != nil {
		r.logger.Error("failed to upsert user profile", zap.String("subject", identity.Subject), zap.Error(err))
		return nil, err
	}

	return &profile, nil
}
