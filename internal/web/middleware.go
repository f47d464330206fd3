package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"querydesk/internal/storage"
)

type ctxKey int

const userIDKey ctxKey = iota

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// requireSession redirects to the login page unless the request carries a
// live session for a user that still exists.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Current(r.Context(), w, r)
		if err != nil {
			s.logger.Error().Err(err).Msg("load session")
		}
		if sess == nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		if s.users != nil {
			if _, err := s.users.GetUserByID(r.Context(), sess.UserID); errors.Is(err, storage.ErrNotFound) {
				s.logger.Warn().Int64("user_id", sess.UserID).Msg("session for unknown user")
				if err := s.sessions.Destroy(r.Context(), w, r); err != nil {
					s.logger.Error().Err(err).Msg("destroy session")
				}
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			} else if err != nil {
				s.logger.Error().Err(err).Int64("user_id", sess.UserID).Msg("load session user")
				http.Error(w, "An error occurred. Please try again.", http.StatusInternalServerError)
				return
			}
		}
		ctx := context.WithValue(r.Context(), userIDKey, sess.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey).(int64)
	return id
}
