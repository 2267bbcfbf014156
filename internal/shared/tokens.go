package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenManager issues and resolves opaque bearer tokens backed by Redis.
// A token maps to the owning user ID only; role sets are resolved from
// Postgres on every request so revoked roles take effect immediately.
type TokenManager struct {
	client *redis.Client
	ttl    time.Duration
	secret []byte
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(client *redis.Client, secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{client: client, ttl: ttl, secret: []byte(secret)}
}

// Issue creates a token for the given user and stores it with the configured TTL.
func (tm *TokenManager) Issue(ctx context.Context, userID int64) (string, error) {
	token := tm.generateToken()
	if err := tm.client.Set(ctx, tm.redisKey(token), strconv.FormatInt(userID, 10), tm.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the user ID a token belongs to.
// Unknown or expired tokens yield ErrUnauthenticated.
func (tm *TokenManager) Resolve(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, ErrUnauthenticated
	}
	raw, err := tm.client.Get(ctx, tm.redisKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrUnauthenticated
		}
		return 0, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ErrUnauthenticated
	}
	return id, nil
}

// Revoke deletes a token. Revoking an unknown token is not an error.
func (tm *TokenManager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := tm.client.Del(ctx, tm.redisKey(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// TTL exposes the configured token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

func (tm *TokenManager) redisKey(token string) string {
	return "token:" + token
}

func (tm *TokenManager) generateToken() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	if len(tm.secret) > 0 {
		for i := range b {
			b[i] ^= tm.secret[i%len(tm.secret)]
		}
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
