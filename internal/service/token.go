package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"sodaclub-ledger-api/internal/model"

	"github.com/redis/go-redis/v9"
)

const (
	// TokenPrefix is the prefix for all session tokens
	TokenPrefix = "sct_"

	// TokenTTL is the session lifetime. Club sessions are long-lived;
	// members log in from a shared kitchen tablet.
	TokenTTL = 30 * 24 * time.Hour

	// TokenRedisKeyPrefix is the Redis key prefix for tokens
	TokenRedisKeyPrefix = "sodaclub:token:"
)

// ErrTokenNotFound indicates an unknown, expired or revoked token.
var ErrTokenNotFound = errors.New("token not found or expired")

// TokenStore issues and resolves persistent session tokens. It is the
// collaborator the identity resolver leans on; the ledger core never
// inspects token internals.
type TokenStore interface {
	// Issue creates a new session token holding data.
	Issue(ctx context.Context, data model.TokenData) (string, error)

	// Resolve returns the data behind a token, or ErrTokenNotFound.
	Resolve(ctx context.Context, token string) (*model.TokenData, error)

	// Refresh extends the lifetime of an existing token.
	Refresh(ctx context.Context, token string) error

	// Revoke deletes a token.
	Revoke(ctx context.Context, token string) error
}

// newToken generates a fresh random session token.
func newToken() (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return TokenPrefix + hex.EncodeToString(tokenBytes), nil
}

func validTokenFormat(token string) bool {
	return len(token) > len(TokenPrefix) && token[:len(TokenPrefix)] == TokenPrefix
}

// RedisTokenStore stores session tokens in Redis.
type RedisTokenStore struct {
	redis *redis.Client
}

// NewRedisTokenStore creates a Redis-backed token store.
func NewRedisTokenStore(redisClient *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{redis: redisClient}
}

// Issue creates a new session token and stores it in Redis.
func (s *RedisTokenStore) Issue(ctx context.Context, data model.TokenData) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	data.CreatedAt = time.Now()
	data.ExpiresAt = data.CreatedAt.Add(TokenTTL)

	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to serialize token data: %w", err)
	}

	key := TokenRedisKeyPrefix + token
	if err := s.redis.Set(ctx, key, jsonData, TokenTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}

	log.Printf("[RedisTokenStore] Issued token for member=%s role=%s expires=%v",
		data.MemberIdentifier, data.Role, data.ExpiresAt)

	return token, nil
}

// Resolve checks if a token is valid and returns its data.
func (s *RedisTokenStore) Resolve(ctx context.Context, token string) (*model.TokenData, error) {
	if !validTokenFormat(token) {
		return nil, ErrTokenNotFound
	}

	key := TokenRedisKeyPrefix + token
	jsonData, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var data model.TokenData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to parse token data: %w", err)
	}

	if time.Now().After(data.ExpiresAt) {
		s.redis.Del(ctx, key)
		return nil, ErrTokenNotFound
	}

	return &data, nil
}

// Refresh extends the TTL of an existing token.
func (s *RedisTokenStore) Refresh(ctx context.Context, token string) error {
	key := TokenRedisKeyPrefix + token

	jsonData, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrTokenNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}

	var data model.TokenData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return err
	}

	data.ExpiresAt = time.Now().Add(TokenTTL)

	newJSON, _ := json.Marshal(data)
	return s.redis.Set(ctx, key, newJSON, TokenTTL).Err()
}

// Revoke deletes a token from Redis.
func (s *RedisTokenStore) Revoke(ctx context.Context, token string) error {
	return s.redis.Del(ctx, TokenRedisKeyPrefix+token).Err()
}

// MemoryTokenStore keeps session tokens in process memory. Used for
// Redis-less single-instance deployments and in tests; sessions do not
// survive a restart.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]model.TokenData
}

// NewMemoryTokenStore creates an in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]model.TokenData)}
}

// Issue creates a new session token.
func (s *MemoryTokenStore) Issue(ctx context.Context, data model.TokenData) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	data.CreatedAt = time.Now()
	data.ExpiresAt = data.CreatedAt.Add(TokenTTL)

	s.mu.Lock()
	s.tokens[token] = data
	s.mu.Unlock()

	return token, nil
}

// Resolve returns the data behind a token.
func (s *MemoryTokenStore) Resolve(ctx context.Context, token string) (*model.TokenData, error) {
	if !validTokenFormat(token) {
		return nil, ErrTokenNotFound
	}

	s.mu.RLock()
	data, ok := s.tokens[token]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrTokenNotFound
	}
	if time.Now().After(data.ExpiresAt) {
		s.mu.Lock()
		delete(s.tokens, token)
		s.mu.Unlock()
		return nil, ErrTokenNotFound
	}
	return &data, nil
}

// Refresh extends the lifetime of an existing token.
func (s *MemoryTokenStore) Refresh(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.tokens[token]
	if !ok {
		return ErrTokenNotFound
	}
	data.ExpiresAt = time.Now().Add(TokenTTL)
	s.tokens[token] = data
	return nil
}

// Revoke deletes a token.
func (s *MemoryTokenStore) Revoke(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
	return nil
}

var (
	_ TokenStore = (*RedisTokenStore)(nil)
	_ TokenStore = (*MemoryTokenStore)(nil)
)
