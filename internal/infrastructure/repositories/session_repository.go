package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/you/tradegate/domain"
)

// SessionRepositoryImpl implements domain.SessionRepository using Redis.
// Each session is four co-owned keys (access token, refresh token, user
// payload, metadata) that are always written and deleted together, so a
// logout can never leave a stray token behind.
type SessionRepositoryImpl struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type sessionMeta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(client *redis.Client, ttl time.Duration) domain.SessionRepository {
	return &SessionRepositoryImpl{
		client: client,
		prefix: "sess:",
		ttl:    ttl,
	}
}

func (r *SessionRepositoryImpl) keys(sessionID string) (access, refresh, user, meta string) {
	base := r.prefix + sessionID
	return base + ":access", base + ":refresh", base + ":user", base + ":meta"
}

// Save implements domain.SessionRepository.
func (r *SessionRepositoryImpl) Save(ctx context.Context, session *domain.Session) error {
	accessKey, refreshKey, userKey, metaKey := r.keys(session.ID)

	userPayload := []byte("null")
	if session.User != nil {
		data, err := json.Marshal(session.User)
		if err != nil {
			return fmt.Errorf("failed to marshal session user: %w", err)
		}
		userPayload = data
	}

	metaPayload, err := json.Marshal(sessionMeta{
		ID:        session.ID,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session meta: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, accessKey, session.AccessToken, r.ttl)
	pipe.Set(ctx, refreshKey, session.RefreshToken, r.ttl)
	pipe.Set(ctx, userKey, userPayload, r.ttl)
	pipe.Set(ctx, metaKey, metaPayload, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Find implements domain.SessionRepository.
func (r *SessionRepositoryImpl) Find(ctx context.Context, sessionID string) (*domain.Session, error) {
	accessKey, refreshKey, userKey, metaKey := r.keys(sessionID)

	values, err := r.client.MGet(ctx, accessKey, refreshKey, userKey, metaKey).Result()
	if err != nil {
		return nil, err
	}

	access, ok := values[0].(string)
	if !ok || access == "" {
		return nil, domain.ErrSessionNotFound
	}

	session := &domain.Session{
		ID:          sessionID,
		AccessToken: access,
	}
	if refresh, ok := values[1].(string); ok {
		session.RefreshToken = refresh
	}
	if userData, ok := values[2].(string); ok && userData != "null" {
		var user domain.User
		if err := json.Unmarshal([]byte(userData), &user); err == nil {
			session.User = &user
		}
	}
	if metaData, ok := values[3].(string); ok {
		var meta sessionMeta
		if err := json.Unmarshal([]byte(metaData), &meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session meta: %w", err)
		}
		session.CreatedAt = meta.CreatedAt
		session.ExpiresAt = meta.ExpiresAt
	}

	if !session.ExpiresAt.IsZero() && session.ExpiresAt.Before(time.Now()) {
		// Clean up the expired session eagerly.
		r.client.Del(ctx, accessKey, refreshKey, userKey, metaKey)
		return nil, domain.ErrSessionExpired
	}

	return session, nil
}

// Destroy implements domain.SessionRepository. All four keys go in one
// command; partial deletion is not possible.
func (r *SessionRepositoryImpl) Destroy(ctx context.Context, sessionID string) error {
	accessKey, refreshKey, userKey, metaKey := r.keys(sessionID)
	return r.client.Del(ctx, accessKey, refreshKey, userKey, metaKey).Err()
}

// Ping implements domain.SessionRepository.
func (r *SessionRepositoryImpl) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
