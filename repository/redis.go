package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/litreview/config"
)

const (
	runKeyPrefix = "litreview:run:"
	runIndexKey  = "litreview:runs"
)

type redisArchive struct {
	client *redis.Client
}

// NewRedisArchive dials Redis and verifies the connection before handing
// the archive back.
func NewRedisArchive(ctx context.Context, cfg config.RedisConfig) (RunArchive, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        net.JoinHostPort(cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if pong != "PONG" {
		return nil, fmt.Errorf("unexpected ping reply: %s", pong)
	}
	return &redisArchive{client: client}, nil
}

func (r *redisArchive) SaveRun(ctx context.Context, run RunRecord) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshalling run %s: %w", run.ID, err)
	}
	if err := r.client.Set(ctx, runKeyPrefix+run.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("storing run %s: %w", run.ID, err)
	}
	if err := r.client.SAdd(ctx, runIndexKey, run.ID).Err(); err != nil {
		return fmt.Errorf("indexing run %s: %w", run.ID, err)
	}
	return nil
}

func (r *redisArchive) GetRun(ctx context.Context, id string) (RunRecord, error) {
	data, err := r.client.Get(ctx, runKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return RunRecord{}, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("loading run %s: %w", id, err)
	}
	var run RunRecord
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshalling run %s: %w", id, err)
	}
	return run, nil
}

func (r *redisArchive) ListRuns(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, runIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return ids, nil
}
