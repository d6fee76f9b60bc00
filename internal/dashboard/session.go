// Package dashboard is the client core of the operations dashboard: an explicit session,
// an API client and the list/detail controllers the screens are built on.
package dashboard

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"busops/internal/models"
)

var ErrAccessDenied = errors.New("access denied")

// publicPaths render without a session.
var publicPaths = []string{"/login", "/signup", "/forgot-password"}

// IsPublicPath reports whether path is reachable without signing in.
func IsPublicPath(path string) bool {
	path = strings.TrimRight(path, "/")
	for _, p := range publicPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Session holds the signed-in principal and its token. It is passed explicitly to the
// client rather than living in a package global.
type Session struct {
	mu    sync.RWMutex
	token string
	user  models.User
}

func NewSession(token string, user models.User) *Session {
	return &Session{token: token, user: user}
}

// Set replaces the principal, typically after login.
func (s *Session) Set(token string, user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.user = token, user
}

// Clear forgets the principal; used on logout and when the API answers 401.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.user = "", models.User{}
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) User() models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// HomePath is the dashboard section for the principal's role, /login when signed out.
func (s *Session) HomePath() string {
	if !s.Authenticated() {
		return "/login"
	}
	switch s.User().Role {
	case models.RoleSuperAdmin:
		return "/dashboard/super-admin"
	case models.RoleBusOwner:
		return "/dashboard/bus-owner"
	case models.RoleManager:
		return "/dashboard/manager"
	}
	return "/login"
}

// Require returns ErrAccessDenied unless the principal holds one of roles.
func (s *Session) Require(roles ...string) error {
	if !s.Authenticated() {
		return ErrAccessDenied
	}
	role := s.User().Role
	for _, r := range roles {
		if r == role {
			return nil
		}
	}
	return ErrAccessDenied
}

// Authorize adds the bearer token to req.
func (s *Session) Authorize(req *http.Request) {
	if t := s.Token(); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}
}
