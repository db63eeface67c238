package memory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
)

const (
	redisFieldSummary = "summary"
	redisFieldVersion = "version"
)

type RedisConfig struct {
	Addr     string        `envconfig:"ADDR" default:"localhost:6379"`
	Password string        `envconfig:"PASSWORD"`
	DB       int           `envconfig:"DB" default:"0"`
	TTL      time.Duration `envconfig:"TTL" default:"168h"`
	Prefix   string        `envconfig:"PREFIX" default:"conv"`
}

func (c RedisConfig) Client() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
}

type RedisOption func(*RedisStore)

// WithRedisTTL sets the key expiry. Zero keeps keys forever.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// RedisStore keeps each summary in a hash and guards writes with WATCH/MULTI.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		prefix: "conv",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

func (s *RedisStore) key(conversationID string) string {
	return s.prefix + ":" + conversationID + ":summary"
}

func readRedisSummary(ctx context.Context, cmd redis.Cmdable, key string) (contractx.Summary, error) {
	values, err := cmd.HGetAll(ctx, key).Result()
	if err != nil {
		return contractx.Summary{}, fmt.Errorf("%w: redis hgetall: %v", contractx.ErrUpstream, err)
	}
	if len(values) == 0 {
		return contractx.Summary{}, nil
	}
	version, err := strconv.ParseInt(values[redisFieldVersion], 10, 64)
	if err != nil {
		return contractx.Summary{}, fmt.Errorf("%w: bad summary version %q", contractx.ErrUpstream, values[redisFieldVersion])
	}
	return contractx.Summary{Text: values[redisFieldSummary], Version: version}, nil
}

func (s *RedisStore) ReadSummary(ctx context.Context, conversationID string) (contractx.Summary, error) {
	id, err := validateConversationID(conversationID)
	if err != nil {
		return contractx.Summary{}, err
	}
	return readRedisSummary(ctx, s.client, s.key(id))
}

func (s *RedisStore) WriteSummary(ctx context.Context, conversationID string, text string, expectedVersion int64) (int64, error) {
	id, err := validateConversationID(conversationID)
	if err != nil {
		return 0, err
	}
	key := s.key(id)

	var next int64
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readRedisSummary(ctx, tx, key)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return versionConflict(id, expectedVersion, current.Version)
		}
		next = current.Version + 1

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, redisFieldSummary, text, redisFieldVersion, next)
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, redis.TxFailedErr):
		return 0, fmt.Errorf("%w: conversation=%s changed during write", contractx.ErrVersionConflict, id)
	case errors.Is(err, contractx.ErrVersionConflict), errors.Is(err, contractx.ErrUpstream):
		return 0, err
	default:
		return 0, fmt.Errorf("%w: redis write summary: %v", contractx.ErrUpstream, err)
	}
}
