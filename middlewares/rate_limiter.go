package middlewares

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"flashvote/logging"
)

// 限速器設定
type LimiterConfig struct {
	RPS     float64       // 每秒補充多少令牌（穩態速率）
	Burst   int           // 桶子容量（允許的突發）
	IdleTTL time.Duration // key 閒置多久就自動清除
}

type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key in memory.
type RateLimiter struct {
	conf    LimiterConfig
	mu      sync.Mutex
	buckets map[string]*keyLimiter
	done    chan struct{}
	once    sync.Once
}

// NewRateLimiter starts a background sweeper that drops idle keys; call Close to stop it.
func NewRateLimiter(conf LimiterConfig) *RateLimiter {
	if conf.IdleTTL <= 0 {
		conf.IdleTTL = 10 * time.Minute
	}
	if conf.Burst < 1 {
		conf.Burst = 1
	}
	rl := &RateLimiter{
		conf:    conf,
		buckets: make(map[string]*keyLimiter),
		done:    make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(conf.IdleTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-rl.done:
				return
			case now := <-ticker.C:
				rl.sweep(now)
			}
		}
	}()

	return rl
}

func (rl *RateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for k, v := range rl.buckets {
		if now.Sub(v.lastSeen) > rl.conf.IdleTTL {
			delete(rl.buckets, k)
		}
	}
}

func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}

	lim := rate.NewLimiter(rate.Limit(rl.conf.RPS), rl.conf.Burst)
	rl.buckets[key] = &keyLimiter{limiter: lim, lastSeen: now}
	return lim
}

// KeySelector decides what a request is limited by (IP, user id, ...).
// An empty key skips the limiter.
type KeySelector func(c *gin.Context) string

func (rl *RateLimiter) Middleware(selectKey KeySelector) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := selectKey(c)
		if key == "" {
			c.Next()
			return
		}

		// 用 Reserve 才知道要等多久，不拿就 Cancel 還回去
		res := rl.getLimiter(key).Reserve()
		if !res.OK() {
			tooManyRequests(c, 60)
			return
		}
		if wait := res.Delay(); wait > 0 {
			res.Cancel()
			tooManyRequests(c, int(math.Ceil(wait.Seconds())))
			return
		}
		c.Next()
	}
}

func tooManyRequests(c *gin.Context, retry int) {
	if retry < 1 {
		retry = 1
	}
	logrus.WithFields(logrus.Fields{
		logging.FldIP:   c.ClientIP(),
		logging.FldPath: c.FullPath(),
	}).Debug("request rate limited")

	c.Header("Retry-After", strconv.Itoa(retry))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"message": "Too many requests. Please try again later.",
	})
}
