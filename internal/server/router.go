package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

// userIDKey carries the signed-in user's ID through the request context.
const userIDKey contextKey = "user_id"

// requestUserID returns the signed-in user's ID placed by the auth middleware.
func requestUserID(r *http.Request) string {
	if id, ok := r.Context().Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// Routes registers every route on the given router.
func (h *Handlers) Routes(r chi.Router) {
	r.Get("/welcome", h.Welcome)
	r.Get("/login", h.Login)
	r.Get("/logout", h.Logout)
	r.Get("/callback/google", h.GoogleCallback)

	// Pages redirect anonymous visitors to the landing page.
	r.Group(func(r chi.Router) {
		r.Use(h.requireUser(true))
		r.Get("/", h.Index)
		r.Get("/callback/spotify", h.SpotifyCallback)
		r.Get("/dashboards/{slug}", h.DashboardPage)
	})

	// Data endpoints answer 401 instead.
	r.Group(func(r chi.Router) {
		r.Use(h.requireUser(false))
		r.Get("/dashboards/{slug}/data", h.DashboardData)
		r.Get("/dashboards/{slug}/export", h.DashboardExport)
		r.Post("/dashboards/{slug}/upload", h.DashboardUpload)
		r.Post("/dashboards/{slug}/clear", h.DashboardClear)
		r.Get("/dashboards/notes/value", h.NoteValue)
		r.Post("/dashboards/notes/value", h.SetNoteValue)
	})
}

// requireUser gates a route on a signed-in session and stores the user ID in
// the request context. Pages redirect to /welcome; API routes return 401.
func (h *Handlers) requireUser(redirect bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := h.session(r)
			userID := sessionString(session, sessionKeyUserID)
			if userID == "" {
				if redirect {
					http.Redirect(w, r, "/welcome", http.StatusFound)
				} else {
					h.writeError(w, http.StatusUnauthorized, "sign in required")
				}
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger logs one line per request with method, path, status, and
// duration.
func RequestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start))
		})
	}
}
