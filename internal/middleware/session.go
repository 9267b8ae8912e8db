// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
)

const sessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// bearerContextKey はBearerトークンで認証されたことを示すキー。
	bearerContextKey = contextKey("bearer_auth")
)

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// TokenVerifier はAPIトークンを検証し利用者IDを返すインターフェース。
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// NewSessionMiddleware はAuthorizationヘッダーのBearerトークン、
// またはHTTP Only Cookieのセッションを検証するミドルウェアを返す。
// 認証済みユーザーIDをリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
// tokensがnilの場合はCookieセッションのみを受け付ける。
func NewSessionMiddleware(sessionFinder SessionFinder, tokens TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Bearerトークンがあれば優先して検証
			if token, ok := bearerToken(r); ok {
				if tokens == nil {
					writeUnauthorized(w)
					return
				}
				userID, err := tokens.VerifyToken(r.Context(), token)
				if err != nil {
					slog.Warn("bearer token rejected",
						slog.String("error", err.Error()),
					)
					writeUnauthorized(w)
					return
				}
				recordUserID(r.Context(), userID)
				ctx := context.WithValue(r.Context(), userIDContextKey, userID)
				ctx = context.WithValue(ctx, bearerContextKey, true)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// 2. CookieからセッションIDを取得
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				writeUnauthorized(w)
				return
			}

			// 3. セッションの有効性を検証
			session, err := sessionFinder.FindByID(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to find session",
					slog.String("error", err.Error()),
				)
				writeUnauthorized(w)
				return
			}
			if session == nil {
				writeUnauthorized(w)
				return
			}

			recordUserID(r.Context(), session.UserID)
			ctx := context.WithValue(r.Context(), userIDContextKey, session.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "Autenticação necessária.",
		Category: "auth",
		Action:   "Faça login novamente.",
	})
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// IsBearerAuthenticated はBearerトークンで認証されたリクエストかどうかを返す。
func IsBearerAuthenticated(ctx context.Context) bool {
	v, _ := ctx.Value(bearerContextKey).(bool)
	return v
}
