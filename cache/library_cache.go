package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"MuseFM/db"
	"MuseFM/logger"
	"MuseFM/model"

	"github.com/redis/go-redis/v9"
)

const (
	artistsKeyPrefix = "musefm:artists:"
	lastScanKey      = "musefm:scan:last"
)

var (
	// ErrCacheUnavailable means no Redis connection exists; callers decide
	// whether that is a degradation or a client error.
	ErrCacheUnavailable = errors.New("redis client not initialized")
	// ErrNoScanRecorded means the cache is up but no scan has run yet.
	ErrNoScanRecorded = errors.New("no scan has been recorded yet")
)

func artistsKey(letter string) string {
	if letter == "" {
		letter = "all"
	}
	return artistsKeyPrefix + letter
}

// GetArtists 从缓存读取歌手索引，未命中返回 (nil, false)
func GetArtists(ctx context.Context, letter string) ([]*model.Artist, bool) {
	if db.RedisClient == nil {
		return nil, false
	}
	data, err := db.RedisClient.Get(ctx, artistsKey(letter)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("读取歌手索引缓存失败", logger.ErrorField(err))
		}
		return nil, false
	}
	var artists []*model.Artist
	if err := json.Unmarshal(data, &artists); err != nil {
		logger.Warn("歌手索引缓存解码失败", logger.ErrorField(err))
		return nil, false
	}
	return artists, true
}

// SetArtists 写入歌手索引缓存
func SetArtists(ctx context.Context, letter string, artists []*model.Artist, ttl time.Duration) {
	if db.RedisClient == nil {
		return
	}
	data, err := json.Marshal(artists)
	if err != nil {
		return
	}
	if err := db.RedisClient.Set(ctx, artistsKey(letter), data, ttl).Err(); err != nil {
		logger.Warn("写入歌手索引缓存失败", logger.ErrorField(err))
	}
}

// InvalidateArtists 清除全部歌手索引缓存，同步完成后调用
func InvalidateArtists(ctx context.Context) {
	if db.RedisClient == nil {
		return
	}
	iter := db.RedisClient.Scan(ctx, 0, artistsKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := db.RedisClient.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("清除歌手索引缓存失败",
				logger.String("key", iter.Val()),
				logger.ErrorField(err))
		}
	}
	if err := iter.Err(); err != nil {
		logger.Warn("遍历歌手索引缓存失败", logger.ErrorField(err))
	}
}

// SetLastScanResult 记录最近一次扫描结果
func SetLastScanResult(ctx context.Context, result model.ScanResult) {
	if db.RedisClient == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := db.RedisClient.Set(ctx, lastScanKey, data, 0).Err(); err != nil {
		logger.Warn("记录扫描结果失败", logger.ErrorField(err))
	}
}

// GetLastScanResult 读取最近一次扫描结果
func GetLastScanResult(ctx context.Context) (model.ScanResult, error) {
	var result model.ScanResult
	if db.RedisClient == nil {
		return result, ErrCacheUnavailable
	}
	data, err := db.RedisClient.Get(ctx, lastScanKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return result, ErrNoScanRecorded
		}
		return result, fmt.Errorf("failed to read last scan result: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("failed to decode last scan result: %w", err)
	}
	return result, nil
}
