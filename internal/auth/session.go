// Package auth validates session tokens against Redis.
package auth

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// ErrInvalidToken is returned for unknown or expired session tokens.
var ErrInvalidToken = errors.New("invalid session token")

// SessionStore resolves session tokens to user ids. The auth service writes
// sessions as prefix+token -> user id with a TTL; this store only reads them.
type SessionStore struct {
	rdb    *redis.Client
	prefix string
}

func NewSessionStore(rdb *redis.Client, prefix string) *SessionStore {
	return &SessionStore{rdb: rdb, prefix: prefix}
}

// ValidateToken looks the token up and returns the owning user id.
func (s *SessionStore) ValidateToken(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, ErrInvalidToken
	}

	val, err := s.rdb.Get(ctx, s.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrInvalidToken
	}
	if err != nil {
		return 0, err
	}

	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil || userID <= 0 {
		return 0, ErrInvalidToken
	}
	return userID, nil
}
