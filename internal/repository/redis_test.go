package repository

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"geogate/internal/model"
)

func TestRedisRepository_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	logger, _ := zap.NewDevelopment()
	repo := NewRedisRepository(client, time.Minute, logger)
	ctx := context.Background()

	if err := repo.Ping(ctx); err == nil {
		t.Error("expected ping to fail")
	}

	records, err := repo.GetRecords(ctx, "8.8.8.8")
	if err == nil {
		t.Error("expected get to fail")
	}
	if records != nil {
		t.Errorf("expected no records, got %+v", records)
	}

	err = repo.SetRecords(ctx, "8.8.8.8", &model.LookupRecords{Geo: &model.GeoRecord{CountryCode: "US"}})
	if err == nil {
		t.Error("expected set to fail")
	}
}
