package server

import (
	"net/http"
	"strings"
)

const corsAllowedMethods = "GET, HEAD, POST, PUT, PATCH, DELETE, OPTIONS"

// CORS answers cross-origin requests according to policy. Requested headers
// are reflected back verbatim, so any header is accepted; preflight requests
// are answered directly with 204.
func CORS(policy *OriginPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || !policy.Allowed(origin) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			if policy.AllowAll() {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}

			if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Methods", corsAllowedMethods)
			if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
				h.Set("Access-Control-Allow-Headers", strings.TrimSpace(requested))
			} else {
				h.Set("Access-Control-Allow-Headers", "*")
			}
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
