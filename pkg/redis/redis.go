package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"FocusTracker/internal/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrCacheMiss is returned when no latest event is cached for a session.
var ErrCacheMiss = redis.Nil

type IRedis interface {
	SetLatest(ctx context.Context, sessionID string, event entity.FocusEvent, expiration time.Duration) error
	GetLatest(ctx context.Context, sessionID string) (entity.FocusEvent, error)
	Close() error
}

type redisClient struct {
	client *redis.Client
	log    *logrus.Logger
}

// New returns nil when REDIS_ADDRESS is unset so the cache stays optional.
func New(log *logrus.Logger) IRedis {
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		log.Info("REDIS_ADDRESS not set, latest-result cache disabled")
		return nil
	}

	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))

	log.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		log.Info("Successfully connected to Redis")
	}

	return NewWithClient(client, log)
}

func NewWithClient(client *redis.Client, log *logrus.Logger) IRedis {
	return &redisClient{client: client, log: log}
}

func latestKey(sessionID string) string {
	return "focus:latest:" + sessionID
}

func (r *redisClient) SetLatest(ctx context.Context, sessionID string, event entity.FocusEvent, expiration time.Duration) error {
	payload, err := jsoniter.Marshal(event)
	if err != nil {
		return err
	}

	key := latestKey(sessionID)
	if err := r.client.Set(ctx, key, payload, expiration).Err(); err != nil {
		r.log.Error(fmt.Sprintf("Error caching latest event for key %s: %v", key, err))
		return err
	}
	r.log.Debug(fmt.Sprintf("Cached latest event for key %s", key))
	return nil
}

func (r *redisClient) GetLatest(ctx context.Context, sessionID string) (entity.FocusEvent, error) {
	key := latestKey(sessionID)
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.log.Debug(fmt.Sprintf("No cached event for key %s", key))
		return entity.FocusEvent{}, ErrCacheMiss
	} else if err != nil {
		r.log.Error(fmt.Sprintf("Error reading cached event for key %s: %v", key, err))
		return entity.FocusEvent{}, err
	}

	var event entity.FocusEvent
	if err := jsoniter.Unmarshal(val, &event); err != nil {
		return entity.FocusEvent{}, err
	}
	return event, nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}
