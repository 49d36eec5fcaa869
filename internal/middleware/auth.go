package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/CC-PatrickC/MyGovRemaster/internal/config"
	"github.com/CC-PatrickC/MyGovRemaster/internal/utils"

	"github.com/rs/zerolog"
)

type ctxKey string

const (
	CtxUserID ctxKey = "uid"
	CtxAdmin  ctxKey = "adm"
	CtxGroups ctxKey = "grp"
)

func WithAuth(log zerolog.Logger, cfg config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Read JWT from cookie "session" or Authorization: Bearer
			var tok string
			if c, err := r.Cookie("session"); err == nil {
				tok = c.Value
			} else if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				tok = strings.TrimPrefix(h, "Bearer ")
			}

			if tok == "" {
				next.ServeHTTP(w, r) // unauthenticated; handlers can decide
				return
			}

			claims, err := utils.ParseJWT(cfg.SessionSecret, tok)
			if err != nil {
				// Clear broken/expired cookie so it stops being sent.
				http.SetCookie(w, &http.Cookie{
					Name:     "session",
					Value:    "",
					Path:     "/",
					HttpOnly: true,
					MaxAge:   -1,
				})
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), CtxUserID, claims.UserID)
			ctx = context.WithValue(ctx, CtxAdmin, claims.Admin)
			ctx = context.WithValue(ctx, CtxGroups, claims.Groups)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated user's id, or "" when anonymous.
func UserID(ctx context.Context) string {
	s, _ := utils.GetString(ctx, CtxUserID)
	return s
}

// IsAdmin reports the administrator flag carried by the session.
func IsAdmin(ctx context.Context) bool {
	b, _ := ctx.Value(CtxAdmin).(bool)
	return b
}

// Groups returns the group memberships carried by the session.
func Groups(ctx context.Context) []string {
	g, _ := ctx.Value(CtxGroups).([]string)
	return g
}
