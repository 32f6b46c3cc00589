package users

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisSessionPrefix     = "users:sess:"
	redisUserSessionPrefix = "users:usess:"
)

// RedisSessionStore keeps sessions in Redis so they survive restarts and can
// be shared across nodes. Sessions are stored as JSON under a key prefix and
// indexed per user for bulk invalidation.
type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
	logger Logger
}

var _ SessionStore = (*RedisSessionStore)(nil)

type RedisSessionStoreOption func(*RedisSessionStore)

// WithRedisSessionPrefix overrides the default key prefix.
func WithRedisSessionPrefix(prefix string) RedisSessionStoreOption {
	return func(s *RedisSessionStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRedisSessionLogger overrides the store logger.
func WithRedisSessionLogger(logger Logger) RedisSessionStoreOption {
	return func(s *RedisSessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewRedisSessionStore creates a SessionStore backed by the given Redis client.
func NewRedisSessionStore(client redis.UniversalClient, opts ...RedisSessionStoreOption) *RedisSessionStore {
	store := &RedisSessionStore{
		client: client,
		prefix: redisSessionPrefix,
		logger: defaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	return store
}

func (s *RedisSessionStore) key(sid string) string {
	return s.prefix + sid
}

func (s *RedisSessionStore) userKey(userID string) string {
	return redisUserSessionPrefix + userID
}

func (s *RedisSessionStore) Save(ctx context.Context, sid string, session *SessionObject, ttl time.Duration) error {
	if session == nil {
		return ErrUnableToParseData
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return ErrUnableToDecodeSession
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sid), payload, ttl)
		if session.UserID != "" {
			pipe.SAdd(ctx, s.userKey(session.UserID), sid)
			if ttl > 0 {
				// Let the index outlive the session slightly so stale
				// members fall out instead of pinning the set forever.
				pipe.Expire(ctx, s.userKey(session.UserID), ttl+time.Minute)
			}
		}
		return nil
	})

	return err
}

func (s *RedisSessionStore) Get(ctx context.Context, sid string) (*SessionObject, error) {
	payload, err := s.client.Get(ctx, s.key(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUnableToFindSession
		}
		return nil, err
	}

	session := &SessionObject{}
	if err := json.Unmarshal(payload, session); err != nil {
		return nil, ErrUnableToDecodeSession
	}

	return session, nil
}

func (s *RedisSessionStore) Renew(ctx context.Context, sid string, ttl time.Duration) error {
	session, err := s.Get(ctx, sid)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if ttl > 0 {
			pipe.Expire(ctx, s.key(sid), ttl)
		} else {
			pipe.Persist(ctx, s.key(sid))
		}
		if session.UserID != "" && ttl > 0 {
			pipe.Expire(ctx, s.userKey(session.UserID), ttl+time.Minute)
		}
		return nil
	})

	return err
}

func (s *RedisSessionStore) Delete(ctx context.Context, sid string) error {
	session, err := s.Get(ctx, sid)
	if err != nil {
		if errors.Is(err, ErrUnableToFindSession) {
			return nil
		}
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sid))
		if session.UserID != "" {
			pipe.SRem(ctx, s.userKey(session.UserID), sid)
		}
		return nil
	})

	return err
}

func (s *RedisSessionStore) DeleteAllForUser(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}

	sids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}

	keys := make([]string, 0, len(sids)+1)
	for _, sid := range sids {
		keys = append(keys, s.key(sid))
	}
	keys = append(keys, s.userKey(userID))

	return s.client.Del(ctx, keys...).Err()
}
