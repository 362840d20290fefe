package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// KeyInfo describes a stored API key. The key itself is never stored.
type KeyInfo struct {
	ID         string     `db:"api_key_id"`
	Name       string     `db:"name"`
	SecretID   string     `db:"secret_id"`
	CreatedAt  time.Time  `db:"created_at"`
	LastUsedAt *time.Time `db:"last_used_at"`
	RevokedAt  *time.Time `db:"revoked_at"`
}

// Keys issues, lists and revokes API keys.
type Keys struct {
	queries Queries
}

// NewKeys creates a key manager over the api_keys queries.
func NewKeys(queries Queries) *Keys {
	return &Keys{queries: queries}
}

// Create issues a key under secretID and stores its HMAC.
// The returned plaintext key is shown once and cannot be recovered.
func (k *Keys) Create(ctx context.Context, name, secretID string, secret []byte) (KeyInfo, string, error) {
	if name == "" {
		return KeyInfo{}, "", fmt.Errorf("key name must not be empty")
	}

	key, err := GenerateAPIKey(secretID)
	if err != nil {
		return KeyInfo{}, "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return KeyInfo{}, "", fmt.Errorf("generate key id: %w", err)
	}

	info := KeyInfo{
		ID:        id.String(),
		Name:      name,
		SecretID:  secretID,
		CreatedAt: time.Now().UTC(),
	}
	_, err = k.queries.ExecContext(ctx, "insert-api-key",
		info.ID, info.Name, info.SecretID, ComputeHMAC(secret, key), info.CreatedAt)
	if err != nil {
		return KeyInfo{}, "", fmt.Errorf("insert api key: %w", err)
	}
	return info, key, nil
}

// Revoke marks a key revoked. Returns ErrKeyNotFound for unknown or already revoked keys.
func (k *Keys) Revoke(ctx context.Context, id string) error {
	res, err := k.queries.ExecContext(ctx, "revoke-api-key", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// List returns all keys in creation order.
func (k *Keys) List(ctx context.Context) ([]KeyInfo, error) {
	var out []KeyInfo
	if err := k.queries.SelectContext(ctx, "list-api-keys", &out); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return out, nil
}
