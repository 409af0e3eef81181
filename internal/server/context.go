package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/unfoldindia/unfold/internal/auth"
)

type ctxKey int

const ownerKey ctxKey = iota

// ownerFrom returns the authenticated owner ID set by requireOwner.
func ownerFrom(ctx context.Context) string {
	id, _ := ctx.Value(ownerKey).(string)
	return id
}

// requireOwner resolves the caller's identity from a bearer token and
// provisions the user on first sight. Requests without a valid identity
// stop here with 401.
func (s *Server) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.verifier == nil {
			writeError(w, http.StatusUnauthorized, "authentication not configured")
			return
		}
		token, err := auth.ExtractToken(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing or malformed bearer token")
			return
		}
		ownerID, err := s.verifier.Verify(token)
		if err != nil {
			s.log.WithError(err).Debug("rejected token")
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		if err := s.db.EnsureUser(r.Context(), ownerID); err != nil {
			s.log.WithError(err).WithField("owner_id", ownerID).Error("provision user")
			writeError(w, http.StatusInternalServerError, "could not load user")
			return
		}

		ctx := context.WithValue(r.Context(), ownerKey, ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		entry := s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(start).String(),
			"remote":   r.RemoteAddr,
		})
		switch {
		case ww.Status() >= 500:
			entry.Warn("request")
		case r.URL.Path == "/api/health" || r.URL.Path == "/metrics":
			entry.Debug("request")
		default:
			entry.Info("request")
		}
	})
}
