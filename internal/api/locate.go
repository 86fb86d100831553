package api

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"admission-map/internal/logger"
	"admission-map/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// LocateCache：定位结果的共享缓存（多实例部署时放在 Redis）
type LocateCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, val string, ttl time.Duration) error
}

type RedisCache struct {
	RC redis.Cmdable
}

func (c RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	s, err := c.RC.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

func (c RedisCache) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	return c.RC.Set(ctx, key, val, ttl).Err()
}

type locateResult struct {
	Found bool   `json:"found"`
	Code  int    `json:"code,omitempty"`
	Name  string `json:"name,omitempty"`
}

func locateKey(lat, lon float64) string {
	return "locate:" + strconv.FormatFloat(lat, 'f', -1, 64) + ":" + strconv.FormatFloat(lon, 'f', -1, 64)
}

// 文档注释：坐标 → 地区，带共享缓存
// 背景：进程内 LRU 之外，再用 Redis 缓存在多实例间共享热点；缓存读写失败只记录日志，不影响结果。
// 约束：以精确坐标作为键，不取整；边界附近的相邻点各自判定。
func (h *handlers) locateCached(ctx context.Context, lat, lon float64) locateResult {
	key := locateKey(lat, lon)
	var out locateResult
	if h.d.Cache != nil {
		s, ok, err := h.d.Cache.Get(ctx, key)
		if err != nil {
			logger.L().Error("locate_cache_get_error", "err", err)
		} else if ok && json.Unmarshal([]byte(s), &out) == nil {
			metrics.LocateCacheHitsTotal.WithLabelValues("redis").Inc()
			return out
		}
	}
	if f, code, ok := h.d.Locator.Locate(lat, lon); ok {
		out = locateResult{Found: true, Code: code, Name: f.Prop(h.d.Keys.Name)}
	}
	if h.d.Cache != nil {
		b, _ := json.Marshal(out)
		if err := h.d.Cache.Set(ctx, key, string(b), h.d.LocateTTL); err != nil {
			logger.L().Error("locate_cache_set_error", "err", err)
		}
	}
	logger.L().Debug("locate", "lat", lat, "lon", lon, "found", out.Found, "code", out.Code)
	return out
}
