// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/sheetdash/internal/auth"
	"github.com/hitoshi/sheetdash/internal/metrics"
	"github.com/hitoshi/sheetdash/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userContextKey        = contextKey("user")
	tokenContextKey       = contextKey("token")
	requestInfoContextKey = contextKey("request_info")
)

// Authenticator はベアラートークンの検証インターフェース。
// auth.Serviceが実装する。
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのベアラートークンを検証するミドルウェアを返す。
// 認証済みユーザーとトークンをリクエストコンテキストに注入する。
// トークン不正とセッション失効はどちらも同じ401応答とし、理由はログとメトリクスにのみ残す。
func NewAuthMiddleware(authenticator Authenticator, mc metrics.MetricsCollector) func(next http.Handler) http.Handler {
	mc = metrics.OrNop(mc)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				mc.RecordAuthFailure("missing_token")
				WriteUnauthorized(w)
				return
			}

			user, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				reason := authFailureReason(err)
				if reason == "" {
					slog.Error("failed to authenticate request",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
					WriteInternalServerError(w)
					return
				}
				mc.RecordAuthFailure(reason)
				slog.Warn("authentication rejected",
					slog.String("path", r.URL.Path),
					slog.String("reason", reason),
				)
				WriteUnauthorized(w)
				return
			}

			if info, ok := r.Context().Value(requestInfoContextKey).(*requestInfo); ok {
				info.userID = user.ID
			}

			ctx := ContextWithUser(r.Context(), user)
			ctx = context.WithValue(ctx, tokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewAdminMiddleware は管理者のみアクセスを許可するミドルウェアを返す。
// 管理者はメールアドレスがadminEmailsに含まれるユーザー。認証ミドルウェアの後に配置する。
func NewAdminMiddleware(adminEmails []string) func(next http.Handler) http.Handler {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				WriteUnauthorized(w)
				return
			}
			if _, ok := admins[strings.ToLower(user.Email)]; !ok {
				slog.Warn("admin access denied", slog.String("user_id", user.ID))
				WriteForbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func authFailureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, auth.ErrSessionExpiredOrRevoked):
		return "session_expired_or_revoked"
	default:
		return ""
	}
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok && user != nil
}

// TokenFromContext はリクエストコンテキストからベアラートークンを取得する。
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey).(string)
	return token, ok && token != ""
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	if user, ok := UserFromContext(ctx); ok && user.ID != "" {
		return user.ID, nil
	}
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok && info.userID != "" {
		return info.userID, nil
	}
	return "", fmt.Errorf("user ID not found in context")
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
