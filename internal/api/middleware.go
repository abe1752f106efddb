package api

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"fleet-dashboard/pkg/auth"
	"fleet-dashboard/pkg/logger"
)

// recoverer logs a panicking handler and answers a generic 500.
func recoverer(log logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.WithFields(logger.LogFields{
					"method": r.Method,
					"path":   r.URL.Path,
					"stack":  string(debug.Stack()),
				}).Error("handler_panic", fmt.Errorf("panic: %v", rec))
				writeError(w, http.StatusInternalServerError, "Something went wrong")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func adminOnly(log logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetClaims(r.Context())
		if !ok {
			log.Error("admin_middleware", errors.New("could not retrieve claims from context"))
			writeError(w, http.StatusInternalServerError, "Error processing request")
			return
		}

		if claims.Role != auth.RoleAdmin {
			log.Error("admin_middleware", fmt.Errorf("unauthorized access attempt: email=%s role=%s", claims.Email, claims.Role))
			writeError(w, http.StatusUnauthorized, "You do not have permission to access this resource")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// currentSession rejects tokens that are valid JWTs but no longer the store's
// session, so logging out revokes the token.
func (s *Server) currentSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("Authorization"))
		token = token[strings.IndexByte(token, ' ')+1:]
		if sess := s.store.Session(); !sess.Authenticated() || sess.Token != token {
			writeError(w, http.StatusUnauthorized, "Session has ended")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// protected chains JWT verification, the admin role check and the session check.
func (s *Server) protected(h http.HandlerFunc) http.Handler {
	return s.jwt.AuthMiddleware(adminOnly(s.log, s.currentSession(h)))
}
