package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"admission-map/internal/logger"
	"admission-map/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// 文档注释：令牌桶限流（每秒）
// 背景：地图悬停会产生密集请求，在入口处限速，保护 Redis 与定位计算。
// 约束：不排队，超出即返回 429；每个自然秒重置令牌。
type TokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	mu       sync.Mutex
	now      func() time.Time
}

func NewTokenBucket(qps int) *TokenBucket {
	if qps <= 0 {
		qps = 200
	}
	return &TokenBucket{capacity: qps, tokens: qps, lastSec: time.Now().Unix(), now: time.Now}
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	nowSec := tb.now().Unix()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Counter：固定窗口计数，返回当前窗口内的累计次数
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter：INCR + 首次命中时 EXPIRE，多实例共享同一窗口
type RedisCounter struct {
	RC redis.Cmdable
}

func (c RedisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := c.RC.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		_ = c.RC.Expire(ctx, key, window).Err()
	}
	return n, nil
}

// Limiter：全局令牌桶 + 可选的按访问者限流
type Limiter struct {
	Bucket     *TokenBucket
	Visitors   Counter
	PerVisitor int // 每访问者每秒上限；0 表示不限
	Now        func() time.Time
}

// 文档注释：限流中间件
// 约束：Bucket 为 nil 时跳过全局限流；访问者计数失败时放行并记录日志，不因 Redis 故障拒绝服务。
func (lm *Limiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if lm.Bucket != nil && !lm.Bucket.Allow() {
			metrics.RateLimitedTotal.WithLabelValues("global").Inc()
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if lm.Visitors != nil && lm.PerVisitor > 0 {
			ip := VisitorIP(r)
			now := time.Now
			if lm.Now != nil {
				now = lm.Now
			}
			key := "rl:" + ip + ":" + strconv.FormatInt(now().Unix(), 10)
			n, err := lm.Visitors.Hit(r.Context(), key, 2*time.Second)
			if err != nil {
				logger.L().Error("ratelimit_counter_error", "err", err)
			} else if n > int64(lm.PerVisitor) {
				metrics.RateLimitedTotal.WithLabelValues("visitor").Inc()
				logger.L().Debug("ratelimit_visitor", "ip", ip, "count", n)
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
