package middleware

import (
	"net/http"

	"github.com/CC-PatrickC/MyGovRemaster/internal/utils"

	"github.com/go-chi/chi/v5"
)

// RequireAuth blocks when no user is present in context (set by WithAuth).
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserID(r.Context()) == "" {
			utils.Error(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin allows only sessions carrying the administrator flag.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r.Context()) {
			utils.Error(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSelfOrAdmin allows if {id} == ctx user id OR the user is an admin.
func RequireSelfOrAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsAdmin(r.Context()) {
			next.ServeHTTP(w, r)
			return
		}
		uid := UserID(r.Context())
		if uid != "" && chi.URLParam(r, "id") == uid {
			next.ServeHTTP(w, r)
			return
		}
		utils.Error(w, http.StatusForbidden, "forbidden")
	})
}
