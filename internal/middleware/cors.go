package middleware

import (
	"net/http"
	"slices"
)

// NewCORSMiddleware は許可されたオリジンからのクロスオリジンリクエストを受け付けるミドルウェアを返す。
//
// Originヘッダーが許可リストに含まれる場合のみ、そのオリジンをそのまま返す。
// Cookieセッションを使うためワイルドカード(*)は返さない。
// Originヘッダーが無い場合（同一オリジンやサーバー間呼び出し）は先頭のオリジンを返す。
// 許可されていないオリジンからのプリフライトは403で拒否する。
func NewCORSMiddleware(allowedOrigins []string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			allowed := origin != "" && slices.Contains(allowedOrigins, origin)
			if origin == "" && len(allowedOrigins) > 0 {
				origin, allowed = allowedOrigins[0], true
			}

			if allowed {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, "+csrfHeaderName)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				if !allowed {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
