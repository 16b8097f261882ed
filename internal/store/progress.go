package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"calbridge.app/bridge/internal/model"
)

type progressStore struct {
	pool *pgxpool.Pool
}

func newProgressStore(pool *pgxpool.Pool) ProgressStore {
	return &progressStore{pool: pool}
}

func (s *progressStore) Get(ctx context.Context, kind model.JobKind) (*model.ProgressRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT record FROM job_progress WHERE kind = $1`, string(kind))

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var record model.ProgressRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decoding progress record: %w", err)
	}
	return &record, nil
}

func (s *progressStore) Set(ctx context.Context, record *model.ProgressRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding progress record: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO job_progress (kind, record, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (kind) DO UPDATE
		 SET record = EXCLUDED.record, updated_at = EXCLUDED.updated_at`,
		string(record.Kind), raw, time.Now().UTC(),
	)
	return err
}
