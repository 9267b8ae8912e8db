package middleware

import (
	"net/http"
	"strings"
)

// apiContentSecurityPolicy はJSONしか返さないAPI向けのCSP。
const apiContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

// noStorePrefixes は利用者のCPFや延滞料を含むため、応答をキャッシュさせないパス。
var noStorePrefixes = []string{"/api/", "/auth/"}

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Content-Security-Policy", apiContentSecurityPolicy)
			for _, prefix := range noStorePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					h.Set("Cache-Control", "no-store")
					break
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
