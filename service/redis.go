package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/TIANLI0/RugPalette/config"
	"github.com/TIANLI0/RugPalette/model"
	"github.com/TIANLI0/RugPalette/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisService 按文件内容 MD5 缓存分割结果
type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisService(cfg *config.RedisConfig) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisService{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetSegmentation 从缓存获取分割结果，未命中返回 nil, nil
func (s *RedisService) GetSegmentation(ctx context.Context, md5 string) (*model.SegmentationResponse, error) {
	data, err := s.client.Get(ctx, cacheKey(md5)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var result model.SegmentationResponse
	if err := json.Unmarshal(data, &result); err != nil {
		utils.Logger.Error("failed to unmarshal segmentation result",
			zap.String("md5", md5), zap.Error(err))
		return nil, err
	}

	return &result, nil
}

// SetSegmentation 写入分割结果
func (s *RedisService) SetSegmentation(ctx context.Context, md5 string, result *model.SegmentationResponse) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, cacheKey(md5), data, s.ttl).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func cacheKey(md5 string) string {
	return "segmentation:" + md5
}
