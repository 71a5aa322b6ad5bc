package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenStore keeps opaque bearer tokens in Redis. A user holds at most one
// active app token; issuing a new one revokes the previous.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

type tokenPayload struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

// TTL exposes the configured token lifetime.
func (s *TokenStore) TTL() time.Duration {
	return s.ttl
}

// Issue creates a token for the user and revokes the previous one.
func (s *TokenStore) Issue(ctx context.Context, userID int64, role string) (string, time.Time, error) {
	token := uuid.NewString()
	data, err := json.Marshal(tokenPayload{UserID: userID, Role: role})
	if err != nil {
		return "", time.Time{}, err
	}

	previous, err := s.client.Get(ctx, s.userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", time.Time{}, err
	}

	pipe := s.client.TxPipeline()
	if previous != "" {
		pipe.Del(ctx, s.tokenKey(previous))
	}
	pipe.Set(ctx, s.tokenKey(token), data, s.ttl)
	pipe.Set(ctx, s.userKey(userID), token, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", time.Time{}, err
	}
	return token, time.Now().Add(s.ttl), nil
}

// Resolve loads the actor for a token.
func (s *TokenStore) Resolve(ctx context.Context, token string) (*Actor, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	raw, err := s.client.Get(ctx, s.tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	var payload tokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return &Actor{UserID: payload.UserID, Role: payload.Role, Token: token}, nil
}

// Revoke deletes a single token.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	actor, err := s.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil
		}
		return err
	}
	return s.client.Del(ctx, s.tokenKey(token), s.userKey(actor.UserID)).Err()
}

// RevokeUser deletes whatever token the user currently holds.
func (s *TokenStore) RevokeUser(ctx context.Context, userID int64) error {
	token, err := s.client.Get(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	return s.client.Del(ctx, s.tokenKey(token), s.userKey(userID)).Err()
}

func (s *TokenStore) tokenKey(token string) string {
	return "token:" + token
}

func (s *TokenStore) userKey(userID int64) string {
	return "user_token:" + strconv.FormatInt(userID, 10)
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
