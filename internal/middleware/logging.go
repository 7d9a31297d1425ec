package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/starter/internal/model"
)

// HTTPMetrics はレスポンスのメトリクスを記録するインターフェース。
type HTTPMetrics interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、認証済みの場合はuser_idとaccount_idを含む。
// metricsがnilでない場合はステータスコードと処理時間も記録する。
func NewLoggingMiddleware(logger *slog.Logger, metrics HTTPMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// セッションミドルウェアは内側で主体を注入するため、ポインタ経由で受け取る
			var identity identityHolder
			next.ServeHTTP(rec, r.WithContext(withIdentityHolder(r.Context(), &identity)))

			duration := time.Since(start)
			if metrics != nil {
				metrics.RecordHTTPStatus(rec.statusCode)
				metrics.RecordRequestLatency(duration)
			}

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", float64(duration.Nanoseconds())/float64(time.Millisecond)),
			}
			if !identity.set {
				identity.id, identity.set = IdentityFromContext(r.Context())
			}
			if identity.set {
				args = append(args,
					slog.String("user_id", identity.id.UserID),
					slog.String("account_id", identity.id.AccountID),
				)
			}

			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}

// identityHolder はログ出力のために内側のセッションミドルウェアが解決した主体を受け取る。
type identityHolder struct {
	id  model.AuthenticatedIdentity
	set bool
}

var identityHolderContextKey = contextKey("identity_holder")

func withIdentityHolder(ctx context.Context, h *identityHolder) context.Context {
	return context.WithValue(ctx, identityHolderContextKey, h)
}

// recordIdentity はロギングミドルウェアが外側にある場合に主体を書き戻す。
func recordIdentity(ctx context.Context, id model.AuthenticatedIdentity) {
	if h, ok := ctx.Value(identityHolderContextKey).(*identityHolder); ok && h != nil {
		h.id = id
		h.set = true
	}
}
