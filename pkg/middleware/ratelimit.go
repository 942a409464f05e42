package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	// cleanupThreshold はアイドルエントリの掃除を行うマップサイズの下限。
	cleanupThreshold = 500
	// maxIdleAge はこの期間アクセスの無いクライアントのエントリを掃除対象とする。
	maxIdleAge = 10 * time.Minute
	// defaultMaxClients は保持するクライアントエントリ数の上限。
	defaultMaxClients = 10000
)

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientRateLimiter はクライアントIPごとのトークンバケットを管理する。
type ClientRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	r       rate.Limit
	b       int
	// maxClients を超える場合は最も古いエントリを追い出す。
	maxClients int
}

// NewClientRateLimiter はクライアントIPごとのレートリミッターを生成する。
// rは1秒あたりの許可数、bはバースト数。
func NewClientRateLimiter(r rate.Limit, b int) *ClientRateLimiter {
	return &ClientRateLimiter{
		clients:    make(map[string]*clientEntry),
		r:          r,
		b:          b,
		maxClients: defaultMaxClients,
	}
}

// Allow は指定クライアントのリクエストを許可するかどうかを返す。
func (l *ClientRateLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if len(l.clients) > cleanupThreshold {
		cutoff := now.Add(-maxIdleAge)
		for k, e := range l.clients {
			if e.lastSeen.Before(cutoff) {
				delete(l.clients, k)
			}
		}
	}

	e, ok := l.clients[client]
	if !ok {
		if len(l.clients) >= l.maxClients {
			l.evictOldest()
		}
		e = &clientEntry{limiter: rate.NewLimiter(l.r, l.b)}
		l.clients[client] = e
	}
	e.lastSeen = now
	return e.limiter.Allow()
}

// evictOldest は最終アクセスが最も古いエントリを1件削除する。
func (l *ClientRateLimiter) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for k, e := range l.clients {
		if !found || e.lastSeen.Before(oldest) {
			oldestKey, oldest, found = k, e.lastSeen, true
		}
	}
	if found {
		delete(l.clients, oldestKey)
	}
}

// RateLimit はクライアントIPごとにリクエスト数を制限するGinミドルウェアを返す。
// 上限を超えた場合は429を返す。
func RateLimit(limiter *ClientRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": http.StatusText(http.StatusTooManyRequests),
			})
			return
		}
		c.Next()
	}
}
