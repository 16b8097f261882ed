package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"calbridge.app/bridge/internal/model"
)

type syncLogStore struct {
	pool *pgxpool.Pool
}

func newSyncLogStore(pool *pgxpool.Pool) SyncLogStore {
	return &syncLogStore{pool: pool}
}

func (s *syncLogStore) Append(ctx context.Context, entry *model.SyncLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_log (id, direction, operation, outcome, event_title, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, string(entry.Direction), string(entry.Operation), string(entry.Outcome),
		entry.EventTitle, entry.Error, entry.CreatedAt,
	)
	return err
}

func (s *syncLogStore) List(ctx context.Context, limit int32) ([]model.SyncLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, direction, operation, outcome, event_title, error, created_at
		 FROM sync_log ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.SyncLogEntry
	for rows.Next() {
		var e model.SyncLogEntry
		if err := rows.Scan(&e.ID, &e.Direction, &e.Operation, &e.Outcome, &e.EventTitle, &e.Error, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
