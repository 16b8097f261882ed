package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"calbridge.app/bridge/internal/model"
)

type webhookChannelStore struct {
	pool *pgxpool.Pool
}

func newWebhookChannelStore(pool *pgxpool.Pool) WebhookChannelStore {
	return &webhookChannelStore{pool: pool}
}

func (s *webhookChannelStore) Get(ctx context.Context) (*model.WebhookChannel, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT channel_id, resource_id, calendar_id, expiration, created_at, renewed_at
		 FROM webhook_channels ORDER BY created_at DESC LIMIT 1`)

	var ch model.WebhookChannel
	if err := row.Scan(&ch.ChannelID, &ch.ResourceID, &ch.CalendarID, &ch.Expiration, &ch.CreatedAt, &ch.RenewedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ch, nil
}

// Save replaces any existing channel row. Exactly one active channel per
// calendar is an invariant, so previous rows are cleared in the same
// transaction.
func (s *webhookChannelStore) Save(ctx context.Context, channel *model.WebhookChannel) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM webhook_channels WHERE channel_id <> $1`, channel.ChannelID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO webhook_channels (channel_id, resource_id, calendar_id, expiration, created_at, renewed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (channel_id) DO UPDATE
		 SET resource_id = EXCLUDED.resource_id,
		     calendar_id = EXCLUDED.calendar_id,
		     expiration = EXCLUDED.expiration,
		     renewed_at = EXCLUDED.renewed_at`,
		channel.ChannelID, channel.ResourceID, channel.CalendarID, channel.Expiration, channel.CreatedAt, channel.RenewedAt,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *webhookChannelStore) Delete(ctx context.Context, channelID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM webhook_channels WHERE channel_id = $1`, channelID)
	return err
}
