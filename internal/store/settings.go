package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"calbridge.app/bridge/internal/model"
)

type settingsStore struct {
	pool *pgxpool.Pool
}

func newSettingsStore(pool *pgxpool.Pool) SettingsStore {
	return &settingsStore{pool: pool}
}

// Get resolves the single settings row.
func (s *settingsStore) Get(ctx context.Context) (*model.Settings, error) {
	row := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE id = 1`)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var settings model.Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	if settings.Properties.Title == "" {
		settings.Properties = model.DefaultPropertySchema()
	}
	return &settings, nil
}

func (s *settingsStore) Put(ctx context.Context, settings *model.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO settings (id, value, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, raw)
	return err
}
