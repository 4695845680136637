package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"geogate/internal/model"
)

const lookupKeyPrefix = "lookup:"

type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisRepository {
	return &RedisRepository{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *RedisRepository) SetRecords(ctx context.Context, ip string, records *model.LookupRecords) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding lookup records: %w", err)
	}

	err = r.client.Set(ctx, lookupKeyPrefix+ip, payload, r.ttl).Err()
	if err != nil {
		r.logger.Error("failed to set lookup records in cache",
			zap.String("ip", ip),
			zap.Error(err))
	}
	return err
}

// GetRecords returns nil without error on a cache miss.
func (r *RedisRepository) GetRecords(ctx context.Context, ip string) (*model.LookupRecords, error) {
	payload, err := r.client.Get(ctx, lookupKeyPrefix+ip).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("failed to get lookup records from cache",
			zap.String("ip", ip),
			zap.Error(err))
		return nil, err
	}

	var records model.LookupRecords
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("decoding cached lookup records: %w", err)
	}
	return &records, nil
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
