package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"flashvote/logging"
)

type QuotaRule struct {
	Limit  int                       // 視窗內允許的請求數
	Window time.Duration             // 視窗大小，例如 24 小時
	KeyFn  func(*gin.Context) string // 空字串 = 不計配額
}

// DailyUserQuotaKey counts per authenticated user; anonymous requests are not counted.
func DailyUserQuotaKey(scope string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		uid := c.GetInt64("userId")
		if uid == 0 {
			return ""
		}
		return fmt.Sprintf("quota:%s:user:%d:day", scope, uid)
	}
}

// Quota is a fixed-window counter in Redis. When Redis is unavailable the
// request is let through.
func Quota(rdb *redis.Client, rule QuotaRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rule.KeyFn(c)
		if key == "" || rdb == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		n, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			// Redis 掛了 → 降級放行
			logrus.WithError(err).WithField(logging.FldPath, c.FullPath()).Warn("quota check skipped")
			c.Next()
			return
		}
		// 第一次建立 key 才設定過期
		if n == 1 {
			_ = rdb.Expire(ctx, key, rule.Window).Err()
		}
		if int(n) > rule.Limit {
			if ttl, err := rdb.TTL(ctx, key).Result(); err == nil && ttl > 0 {
				c.Header("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "Usage quota exceeded. Please try again later.",
			})
			return
		}
		c.Header("X-Quota-Used", fmt.Sprintf("%d/%d", n, rule.Limit))
		c.Next()
	}
}
