package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/hitoshi/pressroom/internal/metrics"
	"github.com/hitoshi/pressroom/internal/model"
)

// レート制限のスコープ。認証エンドポイントにはより厳しいバケットを適用する。
const (
	ScopeAPI  = "api"
	ScopeAuth = "auth"
)

// authPathPrefix が付くパスには認証スコープのバケットが適用される。
const authPathPrefix = "/api/auth"

// exemptPaths はレート制限を適用しないパス。
var exemptPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// RateLimiterConfig はレート制限の設定を保持する。
// レートはreq/sec単位（req/min ÷ 60で導出する）。
type RateLimiterConfig struct {
	APIRate       rate.Limit    // API全般のレート
	APIBurst      int           // API全般のバーストサイズ
	AuthRate      rate.Limit    // 認証エンドポイントのレート
	AuthBurst     int           // 認証エンドポイントのバーストサイズ
	IdleTTL       time.Duration // この時間アクセスのないバケットは破棄される
	PurgeInterval time.Duration // パージ実行の最短間隔
}

// NewRateLimiterConfig はreq/min単位の設定値からRateLimiterConfigを構築する。
func NewRateLimiterConfig(apiPerMinute, apiBurst, authPerMinute, authBurst int) RateLimiterConfig {
	return RateLimiterConfig{
		APIRate:       rate.Limit(float64(apiPerMinute) / 60.0),
		APIBurst:      apiBurst,
		AuthRate:      rate.Limit(float64(authPerMinute) / 60.0),
		AuthBurst:     authBurst,
		IdleTTL:       time.Hour,
		PurgeInterval: 5 * time.Minute,
	}
}

// clientBucket はキーごとのトークンバケットと最終アクセス時刻を保持する。
type clientBucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はクライアント単位のトークンバケット型レート制限を提供する。
// キーは認証済みならユーザーID、未認証ならクライアントIP。
//
// 期限切れバケットのパージはバックグラウンドのタイマーではなく、
// リクエスト経路の中で前回パージからの経過時間を見て機会的に実行する。
type RateLimiter struct {
	config    RateLimiterConfig
	collector metrics.MetricsCollector
	jwtSecret []byte
	now       func() time.Time // テスト用に時計を差し替え可能

	mu        sync.Mutex
	buckets   map[string]*clientBucket
	lastPurge time.Time
}

// NewRateLimiter は新しいRateLimiterを生成する。
func NewRateLimiter(config RateLimiterConfig, jwtSecret string, collector metrics.MetricsCollector) *RateLimiter {
	return &RateLimiter{
		config:    config,
		collector: collector,
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
		buckets:   make(map[string]*clientBucket),
		lastPurge: time.Now(),
	}
}

// Check は指定キー・スコープのリクエストを許可するか判定する。
// 拒否時は再試行までの待ち時間を返す。
func (rl *RateLimiter) Check(key, scope string) (bool, time.Duration) {
	limiter := rl.getOrCreateBucket(key, scope)

	if limiter.Allow() {
		return true, 0
	}

	// 1トークンが補充されるまでの待ち時間を予約から取得し、
	// 予約自体はキャンセルしてトークンを消費しない
	reservation := limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()
	return false, delay
}

// Remaining は指定キー・スコープの残りトークン数の見積もりを返す。
func (rl *RateLimiter) Remaining(key, scope string) int {
	limiter := rl.getOrCreateBucket(key, scope)
	remaining := int(limiter.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// BucketCount は現在管理されているバケット数を返す。テストおよびメトリクス用。
func (rl *RateLimiter) BucketCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Middleware はレート制限ミドルウェアを返す。
// /healthと/metricsは適用対象外。認証パスには厳しいバケットを使う。
// 認証ミドルウェアより前段に置けるよう、キーの解決は失敗してもIPにフォールバックする。
func (rl *RateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			scope := ScopeAPI
			burst := rl.config.APIBurst
			if strings.HasPrefix(r.URL.Path, authPathPrefix) {
				scope = ScopeAuth
				burst = rl.config.AuthBurst
			}

			key := rl.clientKey(r)

			granted, retryAfter := rl.Check(key, scope)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining(key, scope)))

			if !granted {
				rl.collector.RecordRateLimitRejection(scope)

				retryAfterSec := int(math.Ceil(retryAfter.Seconds()))
				if retryAfterSec < 1 {
					retryAfterSec = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
				WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
					Code:     "RATE_LIMIT_EXCEEDED",
					Message:  "リクエストが多すぎます。",
					Category: "system",
					Action:   "指定された時間が経過してから再度お試しください。",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getOrCreateBucket はキー・スコープに対応するバケットを取得または作成する。
// 取得のたびに最終アクセス時刻を更新し、機会があればパージも行う。
func (rl *RateLimiter) getOrCreateBucket(key, scope string) *rate.Limiter {
	limit := rl.config.APIRate
	burst := rl.config.APIBurst
	if scope == ScopeAuth {
		limit = rl.config.AuthRate
		burst = rl.config.AuthBurst
	}

	mapKey := scope + ":" + key
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.purgeStaleLocked(now)

	if bucket, exists := rl.buckets[mapKey]; exists {
		bucket.lastAccess = now
		return bucket.limiter
	}

	limiter := rate.NewLimiter(limit, burst)
	rl.buckets[mapKey] = &clientBucket{
		limiter:    limiter,
		lastAccess: now,
	}
	return limiter
}

// purgeStaleLocked はIdleTTLを超えて使われていないバケットを削除する。
// 前回パージからPurgeInterval未満なら何もしない。呼び出し側でロック済みであること。
func (rl *RateLimiter) purgeStaleLocked(now time.Time) {
	if now.Sub(rl.lastPurge) < rl.config.PurgeInterval {
		return
	}
	rl.lastPurge = now

	for key, bucket := range rl.buckets {
		if now.Sub(bucket.lastAccess) >= rl.config.IdleTTL {
			delete(rl.buckets, key)
		}
	}
}

// clientKey はレート制限のキーを解決する。
// Bearerトークンのsubクレームを優先し、取れなければクライアントIPを使う。
// トークンの検証失敗はここではエラーにしない（認証ミドルウェアの仕事）。
func (rl *RateLimiter) clientKey(r *http.Request) string {
	if raw := bearerToken(r); raw != "" {
		token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return rl.jwtSecret, nil
		})
		if err == nil {
			if claims, ok := token.Claims.(*jwt.RegisteredClaims); ok && claims.Subject != "" {
				return "user:" + claims.Subject
			}
		}
	}
	return "ip:" + clientIP(r)
}

// clientIP はクライアントIPを解決する。
// X-Forwarded-Forの先頭ホップ、X-Real-IP、接続元アドレスの順で採用する。
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
