package mw

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// limiterPool 按访问键维护令牌桶，过期的键在取桶时顺带清理。
type limiterPool struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	r         rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
}

func newLimiterPool(r rate.Limit, burst int, idle time.Duration) *limiterPool {
	return &limiterPool{
		visitors: make(map[string]*visitor),
		r:        r,
		burst:    burst,
		idle:     idle,
	}
}

func (p *limiterPool) allow(key string) bool {
	now := time.Now()
	p.mu.Lock()
	if now.Sub(p.lastSweep) > p.idle {
		for k, v := range p.visitors {
			if now.Sub(v.seen) > p.idle {
				delete(p.visitors, k)
			}
		}
		p.lastSweep = now
	}
	v, ok := p.visitors[key]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(p.r, p.burst)}
		p.visitors[key] = v
	}
	v.seen = now
	lim := v.lim
	p.mu.Unlock()
	return lim.Allow()
}

// RateLimit 基于客户端 IP 加路由的令牌桶限速中间件。
// 对战中 tap 与 state 轮询的频率远高于普通接口，burst 需要给足。
func RateLimit(r rate.Limit, burst int) gin.HandlerFunc {
	pool := newLimiterPool(r, burst, 2*time.Minute)
	return func(c *gin.Context) {
		key := c.ClientIP() + "|" + c.FullPath()
		if !pool.allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "请求过于频繁，稍后再试"})
			return
		}
		c.Next()
	}
}
