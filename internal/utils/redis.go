// 包 utils：Postgres / Redis / TLS 的连接与证书工具，统一从环境变量读取
package utils

import (
	"os"
	"strconv"

	"admission-map/internal/logger"

	"github.com/redis/go-redis/v9"
)

// OpenRedisFromEnv：enabled 为真时按环境变量返回客户端，否则返回 nil（调用方按 nil 视为禁用）
// 约束：是否启用由配置层决定（REDIS_ENABLE），这里只读取连接参数；REDIS_DB 解析失败回退到 0；不做连通性检查。
func OpenRedisFromEnv(enabled bool) *redis.Client {
	if !enabled {
		return nil
	}
	addr := env("REDIS_HOST", "127.0.0.1") + ":" + env("REDIS_PORT", "6379")
	db := 0
	if n, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil && n >= 0 {
		db = n
	}
	logger.L().Debug("redis_env", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASS"), DB: db})
}
