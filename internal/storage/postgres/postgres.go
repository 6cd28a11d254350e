// Package postgres implements storage.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/memohai/msgbridge/internal/storage"
)

// DBTX is the subset of *pgxpool.Pool the store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists users, variables and events. The pool is owned by the caller.
type Store struct {
	db     DBTX
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// New creates a Store on an open connection pool.
func New(log *slog.Logger, db DBTX) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		db:     db,
		logger: log.With(slog.String("service", "storage/postgres")),
	}
}

const mergeUserSQL = `
INSERT INTO users (id, name, email, phone_number, photo_uri, metadata)
VALUES ($1, COALESCE($2::text, ''), COALESCE($3::text, ''), COALESCE($4::text, ''), COALESCE($5::text, ''), $6::jsonb)
ON CONFLICT (id) DO UPDATE SET
    name         = COALESCE($2::text, users.name),
    email        = COALESCE($3::text, users.email),
    phone_number = COALESCE($4::text, users.phone_number),
    photo_uri    = COALESCE($5::text, users.photo_uri),
    metadata     = users.metadata || EXCLUDED.metadata,
    updated_at   = now()
RETURNING id, name, email, phone_number, photo_uri, metadata, created_at, updated_at`

func (s *Store) MergeUser(ctx context.Context, userID string, profile storage.Profile) (storage.User, error) {
	if s.db == nil {
		return storage.User{}, errors.New("postgres store not configured")
	}
	metadata := profile.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metaBytes, err := json.Marshal(metadata)
	if err != nil {
		return storage.User{}, fmt.Errorf("encode metadata: %w", err)
	}
	row := s.db.QueryRow(ctx, mergeUserSQL,
		userID,
		profile.Name,
		profile.Email,
		profile.PhoneNumber,
		profile.PhotoURI,
		metaBytes,
	)
	user, err := scanUser(row)
	if err != nil {
		return storage.User{}, fmt.Errorf("merge user: %w", err)
	}
	return user, nil
}

const getUserSQL = `
SELECT id, name, email, phone_number, photo_uri, metadata, created_at, updated_at
FROM users WHERE id = $1`

func (s *Store) GetUser(ctx context.Context, userID string) (storage.User, error) {
	if s.db == nil {
		return storage.User{}, errors.New("postgres store not configured")
	}
	user, err := scanUser(s.db.QueryRow(ctx, getUserSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.User{}, storage.ErrNotFound
		}
		return storage.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

const setKVSQL = `
INSERT INTO variables (user_id, key, value)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

func (s *Store) SetKV(ctx context.Context, userID, key, value string) error {
	if s.db == nil {
		return errors.New("postgres store not configured")
	}
	if _, err := s.db.Exec(ctx, setKVSQL, userID, key, value); err != nil {
		return fmt.Errorf("set variable %s: %w", key, err)
	}
	return nil
}

const getKVSQL = `SELECT value FROM variables WHERE user_id = $1 AND key = $2`

func (s *Store) GetKV(ctx context.Context, userID, key string) (string, error) {
	if s.db == nil {
		return "", errors.New("postgres store not configured")
	}
	var value string
	if err := s.db.QueryRow(ctx, getKVSQL, userID, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("get variable %s: %w", key, err)
	}
	return value, nil
}

const trackSQL = `INSERT INTO events (user_id, event, properties) VALUES ($1, $2, $3::jsonb)`

func (s *Store) Track(ctx context.Context, userID, event string, properties map[string]any) error {
	if s.db == nil {
		return errors.New("postgres store not configured")
	}
	var props []byte
	if properties != nil {
		encoded, err := json.Marshal(properties)
		if err != nil {
			return fmt.Errorf("encode properties: %w", err)
		}
		props = encoded
	}
	if _, err := s.db.Exec(ctx, trackSQL, userID, event, props); err != nil {
		return fmt.Errorf("track %s: %w", event, err)
	}
	return nil
}

func scanUser(row pgx.Row) (storage.User, error) {
	var (
		user     storage.User
		metadata []byte
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PhoneNumber,
		&user.PhotoURI,
		&metadata,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return storage.User{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &user.Metadata); err != nil {
			return storage.User{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return user, nil
}
