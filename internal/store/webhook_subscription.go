package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"calbridge.app/bridge/internal/model"
)

type webhookSubscriptionStore struct {
	pool *pgxpool.Pool
}

func newWebhookSubscriptionStore(pool *pgxpool.Pool) WebhookSubscriptionStore {
	return &webhookSubscriptionStore{pool: pool}
}

func (s *webhookSubscriptionStore) Get(ctx context.Context) (*model.WebhookSubscription, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT subscription_id, database_id, verification_token, verified, created_at, verified_at
		 FROM webhook_subscriptions ORDER BY created_at DESC LIMIT 1`)

	var sub model.WebhookSubscription
	if err := row.Scan(&sub.SubscriptionID, &sub.DatabaseID, &sub.VerificationToken, &sub.Verified, &sub.CreatedAt, &sub.VerifiedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (s *webhookSubscriptionStore) Save(ctx context.Context, sub *model.WebhookSubscription) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO webhook_subscriptions (subscription_id, database_id, verification_token, verified, created_at, verified_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (subscription_id) DO UPDATE
		 SET database_id = EXCLUDED.database_id,
		     verification_token = EXCLUDED.verification_token`,
		sub.SubscriptionID, sub.DatabaseID, sub.VerificationToken, sub.Verified, sub.CreatedAt, sub.VerifiedAt,
	)
	return err
}

func (s *webhookSubscriptionStore) SetVerificationToken(ctx context.Context, subscriptionID, token string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE webhook_subscriptions SET verification_token = $2 WHERE subscription_id = $1`,
		subscriptionID, token,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkVerified is a one-way transition: there is no corresponding
// mark-unverified, by contract.
func (s *webhookSubscriptionStore) MarkVerified(ctx context.Context, subscriptionID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE webhook_subscriptions SET verified = TRUE, verified_at = $2
		 WHERE subscription_id = $1 AND NOT verified`,
		subscriptionID, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Already verified or unknown; distinguish for the caller.
		var verified bool
		row := s.pool.QueryRow(ctx, `SELECT verified FROM webhook_subscriptions WHERE subscription_id = $1`, subscriptionID)
		if scanErr := row.Scan(&verified); scanErr != nil {
			if errors.Is(scanErr, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return scanErr
		}
	}
	return nil
}

func (s *webhookSubscriptionStore) Delete(ctx context.Context, subscriptionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM webhook_subscriptions WHERE subscription_id = $1`, subscriptionID)
	return err
}
