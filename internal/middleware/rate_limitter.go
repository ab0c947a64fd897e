package middleware

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"FocusTracker/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	ErrTooManyRequests = response.NewKeyedError(http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
)

const minLimiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

type rateLimiter struct {
	bucket    map[string]*visitor
	rate      rate.Limit
	burstSize int
	mutex     *sync.RWMutex

	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiter(reqRate rate.Limit, burstSize int) *rateLimiter {
	// Idle entries outlive a full refill so eviction never grants extra tokens.
	idleTTL := minLimiterIdleTTL
	if reqRate > 0 && reqRate != rate.Inf {
		if refill := time.Duration(float64(burstSize) / float64(reqRate) * float64(time.Second)); refill > idleTTL {
			idleTTL = refill
		}
	}

	return &rateLimiter{
		bucket:    make(map[string]*visitor),
		rate:      reqRate,
		burstSize: burstSize,
		mutex:     &sync.RWMutex{},
		idleTTL:   idleTTL,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (r *rateLimiter) GetLimiterFrom(ip string) *rate.Limiter {
	now := r.now()

	r.mutex.RLock()
	v, exist := r.bucket[ip]
	sweepDue := now.Sub(r.lastSweep) >= r.idleTTL
	r.mutex.RUnlock()
	if exist && !sweepDue {
		v.lastSeen.Store(now.UnixNano())
		return v.limiter
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if now.Sub(r.lastSweep) >= r.idleTTL {
		r.sweep(now)
	}

	v, exist = r.bucket[ip]
	if !exist {
		v = &visitor{limiter: rate.NewLimiter(r.rate, r.burstSize)}
		r.bucket[ip] = v
	}
	v.lastSeen.Store(now.UnixNano())

	return v.limiter
}

// sweep drops visitors idle for idleTTL. The caller holds the write lock.
func (r *rateLimiter) sweep(now time.Time) {
	cutoff := now.Add(-r.idleTTL).UnixNano()
	for ip, v := range r.bucket {
		if v.lastSeen.Load() < cutoff {
			delete(r.bucket, ip)
		}
	}
	r.lastSweep = now
}

func (m *middleware) NewRateLimiter(ctx *fiber.Ctx) error {
	clientIP := ctx.IP()
	limiter := m.rateLimitter.GetLimiterFrom(clientIP)

	if !limiter.Allow() {
		m.log.WithFields(logrus.Fields{
			"request_id": m.GetRequestID(ctx),
			"ip":         clientIP,
			"path":       ctx.Path(),
		}).Warn("Too many requests")
		return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"ok":    false,
			"error": ErrTooManyRequests.Error(),
			"code":  "RATE_LIMITED",
		})
	}

	return ctx.Next()
}
