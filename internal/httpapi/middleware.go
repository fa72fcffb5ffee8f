package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/types"
)

const requestIDHeader = "X-Request-ID"

// requestID echoes the caller's X-Request-ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(requestIDHeader)),
		)
	}
}

// limiterIdle is how long a client's bucket survives without traffic.
const limiterIdle = 10 * time.Minute

type clientLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

type limiterSet struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	swept   time.Time
}

func (ls *limiterSet) allow(ip string, now time.Time) bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	// Sweep idle buckets inline instead of running a janitor goroutine.
	if now.Sub(ls.swept) > limiterIdle {
		for k, cl := range ls.clients {
			if now.Sub(cl.seen) > limiterIdle {
				delete(ls.clients, k)
			}
		}
		ls.swept = now
	}

	cl, ok := ls.clients[ip]
	if !ok {
		cl = &clientLimiter{lim: rate.NewLimiter(ls.limit, ls.burst)}
		ls.clients[ip] = cl
	}
	cl.seen = now
	return cl.lim.AllowN(now, 1)
}

// rateLimit applies a token bucket per client IP.
func rateLimit(perSecond float64, burst int) gin.HandlerFunc {
	if burst <= 0 {
		burst = int(perSecond)
		if burst < 1 {
			burst = 1
		}
	}
	ls := &limiterSet{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		swept:   time.Now(),
	}
	return func(c *gin.Context) {
		if !ls.allow(c.ClientIP(), time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, types.ErrorBody{
				Error:   "rate_limited",
				Message: "rate limit exceeded; retry later",
			})
			return
		}
		c.Next()
	}
}
