package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActorRecord is the session payload describing an authenticated principal.
// It is provisioned out of band (the core performs no authentication) and is
// read-only to every workflow operation.
type ActorRecord struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Role       string   `json:"role"`
	Department string   `json:"department"`
	Branch     string   `json:"branch"`
	Overrides  []string `json:"overrides,omitempty"`
}

// SessionStore maps bearer tokens to actor records in Redis.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

// Issue stores the record under a fresh random token and returns the token.
func (s *SessionStore) Issue(ctx context.Context, record ActorRecord) (string, error) {
	if record.ID == "" || record.Role == "" {
		return "", errors.New("session: actor id and role required")
	}
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, s.redisKey(token), data, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the actor record for a bearer token, refreshing its TTL.
func (s *SessionStore) Resolve(ctx context.Context, token string) (ActorRecord, error) {
	if token == "" {
		return ActorRecord{}, ErrSessionExpired
	}
	payload, err := s.client.Get(ctx, s.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ActorRecord{}, ErrSessionExpired
		}
		return ActorRecord{}, err
	}
	var record ActorRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return ActorRecord{}, err
	}
	if err := s.client.Expire(ctx, s.redisKey(token), s.ttl).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return ActorRecord{}, err
	}
	return record, nil
}

// Revoke deletes a token.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := s.client.Del(ctx, s.redisKey(token)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// TTL exposes the configured session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

func (s *SessionStore) redisKey(token string) string {
	return "session:" + token
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
