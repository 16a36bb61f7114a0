package middlewares

import (
	"bytes"
	"crypto/sha1"
	"encoding/gob"
	"encoding/hex"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"flashvote/utils"
)

type cachedBody struct {
	Status int
	Header map[string][]string
	Body   []byte
}

// 路徑+參數轉成 SHA1，避免 Redis key 太長
func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// CacheKeyFrom returns the Redis key for a cacheable request, or "" when the
// request must not be cached. Keys are namespaced so a write can purge them
// (see utils.CacheInvalidator).
func CacheKeyFrom(c *gin.Context) string {
	path := c.FullPath() // 路由模板，例如 /e/:slug
	if c.Request.Method != "GET" || path == "" {
		return ""
	}
	raw := c.Request.URL.Path + "|" + c.Request.URL.RawQuery

	switch {
	case strings.HasPrefix(path, "/e/:slug"):
		return utils.PublicEventCachePrefix(c.Param("slug")) + sha1Hex(raw)
	case strings.HasPrefix(path, "/locations/"):
		return utils.LocationCachePrefix + sha1Hex(raw)
	default:
		// 投票結果、後台資料都不快取
		return ""
	}
}

// ResponseCache serves cached 2xx responses of public pages and location lookups.
func ResponseCache(rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := CacheKeyFrom(c)
		if key == "" || rdb == nil || ttl <= 0 {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		if b, err := rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
			var hit cachedBody
			if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&hit); err == nil {
				for k, vals := range hit.Header {
					for _, v := range vals {
						c.Writer.Header().Add(k, v)
					}
				}
				c.Writer.Header().Set("X-Cache", "HIT")
				c.Status(hit.Status)
				_, _ = c.Writer.Write(hit.Body)
				c.Abort()
				return
			}
		}

		// 沒命中：攔截回應存一份
		bw := &bufferedWriter{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = bw
		// header 要在寫 body 之前設
		c.Writer.Header().Set("X-Cache", "MISS")

		c.Next()

		if bw.Status() >= 200 && bw.Status() < 300 {
			item := cachedBody{
				Status: bw.Status(),
				Header: c.Writer.Header().Clone(),
				Body:   bw.buf.Bytes(),
			}
			delete(item.Header, "X-Cache")

			var o bytes.Buffer
			if err := gob.NewEncoder(&o).Encode(item); err == nil {
				_ = rdb.Set(ctx, key, o.Bytes(), ttl).Err()
			}
		}
	}
}

type bufferedWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
