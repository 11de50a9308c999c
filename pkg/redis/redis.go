package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"HeadTurner/pkg/dispatcher"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type IRedis interface {
	dispatcher.Store
	Ping(ctx context.Context) error
	Close() error
}

type redisClient struct {
	client *redis.Client
	prefix string
}

// New returns nil when REDIS_ADDRESS is unset; the shared tier is optional.
func New() (IRedis, error) {
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		return nil, nil
	}

	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	r := NewWithClient(client, os.Getenv("REDIS_KEY_PREFIX"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logrus.Info("Successfully connected to Redis")

	return r, nil
}

func NewWithClient(client *redis.Client, prefix string) IRedis {
	if prefix == "" {
		prefix = "headturner:"
	}
	return &redisClient{client: client, prefix: prefix}
}

func (r *redisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisClient) Close() error {
	return r.client.Close()
}

func (r *redisClient) Get(ctx context.Context, key string) (*dispatcher.Entry, bool) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error getting pose entry for key %s: %v", key, err))
		return nil, false
	}

	var entry dispatcher.Entry
	if err := json.Unmarshal(val, &entry); err != nil {
		logrus.Error(fmt.Sprintf("Error decoding pose entry for key %s: %v", key, err))
		return nil, false
	}

	logrus.Debug(fmt.Sprintf("Successfully got pose entry for key %s", key))
	return &entry, true
}

func (r *redisClient) Set(ctx context.Context, entry *dispatcher.Entry) error {
	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	val, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode pose entry: %w", err)
	}

	logrus.Debug(fmt.Sprintf("Setting pose entry for key %s with expiration %v", entry.Key, ttl))
	if err := r.client.Set(ctx, r.prefix+entry.Key, val, ttl).Err(); err != nil {
		logrus.Error(fmt.Sprintf("Error setting pose entry for key %s: %v", entry.Key, err))
		return err
	}
	return nil
}

func (r *redisClient) Delete(ctx context.Context, key string) error {
	result, err := r.client.Del(ctx, r.prefix+key).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error deleting pose entry for key %s: %v", key, err))
		return err
	}

	if result == 0 {
		logrus.Debug(fmt.Sprintf("Pose entry %s not found for deletion", key))
	}
	return nil
}
