// Package apikey manages the API keys gateway clients present. Raw keys are
// random 32-byte hex strings shown once at creation; only their SHA-256
// digest is stored. Each key carries its own per-minute rate limit and an
// admin flag that unlocks key management and cache invalidation.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/hrdatainsights/salary-platform/pkg/errors"
	"github.com/hrdatainsights/salary-platform/pkg/postgres"
)

var (
	ErrInvalidKey = fmt.Errorf("%w: invalid api key", apperrors.ErrUnauthorized)
	ErrExpiredKey = fmt.Errorf("%w: api key expired", apperrors.ErrUnauthorized)
)

const schema = `
CREATE TABLE IF NOT EXISTS api_keys (
	id         UUID PRIMARY KEY,
	key_hash   TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	rate_limit INTEGER NOT NULL,
	is_admin   BOOLEAN NOT NULL DEFAULT false,
	is_active  BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ
)`

// KeyInfo is the metadata of a validated key. The hash never leaves the
// store.
type KeyInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	RateLimit int        `json:"rate_limit"`
	Admin     bool       `json:"admin"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewKey describes a key to create.
type NewKey struct {
	Name      string
	RateLimit int
	Admin     bool
	ExpiresAt *time.Time
}

// Validator validates and manages keys in the api_keys table.
type Validator struct {
	db     *postgres.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewValidator(db *postgres.Client) *Validator {
	return &Validator{
		db:     db,
		logger: slog.Default().With("component", "apikey-validator"),
		now:    time.Now,
	}
}

// EnsureSchema creates the api_keys table when missing.
func (v *Validator) EnsureSchema(ctx context.Context) error {
	if _, err := v.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating api_keys: %w", err)
	}
	return nil
}

// Validate looks up an active key by the digest of rawKey.
func (v *Validator) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	var (
		info      KeyInfo
		expiresAt sql.NullTime
	)
	err := v.db.DB.QueryRowContext(ctx,
		`SELECT id, name, rate_limit, is_admin, created_at, expires_at
		 FROM api_keys
		 WHERE key_hash = $1 AND is_active = true`,
		HashKey(rawKey),
	).Scan(&info.ID, &info.Name, &info.RateLimit, &info.Admin, &info.CreatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("querying api key: %w", err)
	}
	if expiresAt.Valid {
		if expiresAt.Time.Before(v.now()) {
			return nil, ErrExpiredKey
		}
		info.ExpiresAt = &expiresAt.Time
	}
	return &info, nil
}

// CreateKey stores a new key and returns its raw value with its metadata.
// The raw value cannot be recovered later.
func (v *Validator) CreateKey(ctx context.Context, k NewKey) (string, *KeyInfo, error) {
	if k.Name == "" {
		return "", nil, fmt.Errorf("%w: key name is required", apperrors.ErrInvalidInput)
	}
	if k.RateLimit <= 0 {
		return "", nil, fmt.Errorf("%w: rate limit must be positive", apperrors.ErrInvalidInput)
	}
	rawKey, err := generateRawKey()
	if err != nil {
		return "", nil, err
	}

	info := &KeyInfo{
		ID:        uuid.NewString(),
		Name:      k.Name,
		RateLimit: k.RateLimit,
		Admin:     k.Admin,
		CreatedAt: v.now().UTC(),
		ExpiresAt: k.ExpiresAt,
	}
	var expiry sql.NullTime
	if k.ExpiresAt != nil {
		expiry = sql.NullTime{Time: *k.ExpiresAt, Valid: true}
	}
	_, err = v.db.DB.ExecContext(ctx,
		`INSERT INTO api_keys (id, key_hash, name, rate_limit, is_admin, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		info.ID, HashKey(rawKey), info.Name, info.RateLimit, info.Admin, info.CreatedAt, expiry,
	)
	if err != nil {
		return "", nil, fmt.Errorf("creating api key: %w", err)
	}

	v.logger.Info("api key created", "id", info.ID, "name", info.Name, "rate_limit", info.RateLimit, "admin", info.Admin)
	return rawKey, info, nil
}

// RevokeKey deactivates the key with the given id.
func (v *Validator) RevokeKey(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: key id must be a UUID", apperrors.ErrInvalidInput)
	}
	result, err := v.db.DB.ExecContext(ctx,
		`UPDATE api_keys SET is_active = false WHERE id = $1 AND is_active = true`,
		id,
	)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("%w: api key %s", apperrors.ErrNotFound, id)
	}
	v.logger.Info("api key revoked", "id", id)
	return nil
}

// ListKeys returns the active keys, newest first.
func (v *Validator) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	rows, err := v.db.DB.QueryContext(ctx,
		`SELECT id, name, rate_limit, is_admin, created_at, expires_at
		 FROM api_keys WHERE is_active = true ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	keys := make([]KeyInfo, 0)
	for rows.Next() {
		var (
			k         KeyInfo
			expiresAt sql.NullTime
		)
		if err := rows.Scan(&k.ID, &k.Name, &k.RateLimit, &k.Admin, &k.CreatedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		if expiresAt.Valid {
			k.ExpiresAt = &expiresAt.Time
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// HashKey returns the SHA-256 hex digest of a raw key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generateRawKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
