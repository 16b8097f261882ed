package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"calbridge.app/bridge/internal/model"
)

type syncCursorStore struct {
	pool *pgxpool.Pool
}

func newSyncCursorStore(pool *pgxpool.Pool) SyncCursorStore {
	return &syncCursorStore{pool: pool}
}

func (s *syncCursorStore) Get(ctx context.Context, source model.SyncSource) (*model.SyncCursor, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT source, token, last_sync_at, updated_at FROM sync_cursors WHERE source = $1`,
		string(source),
	)

	var cursor model.SyncCursor
	if err := row.Scan(&cursor.Source, &cursor.Token, &cursor.LastSyncAt, &cursor.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cursor, nil
}

func (s *syncCursorStore) Set(ctx context.Context, cursor *model.SyncCursor) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_cursors (source, token, last_sync_at, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (source) DO UPDATE
		 SET token = EXCLUDED.token, last_sync_at = EXCLUDED.last_sync_at, updated_at = EXCLUDED.updated_at`,
		string(cursor.Source), cursor.Token, cursor.LastSyncAt, time.Now().UTC(),
	)
	return err
}

func (s *syncCursorStore) Clear(ctx context.Context, source model.SyncSource) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sync_cursors WHERE source = $1`, string(source))
	return err
}
