package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"busops/internal/session"
)

// AuthCookie is the cookie the dashboard stores its token in.
const AuthCookie = "auth-token"

const (
	ctxUserID    = "user_id"
	ctxRole      = "role"
	ctxTokenID   = "token_id"
	ctxTokenExp  = "token_exp"
	defaultTTL   = 72 * time.Hour
	signingAlgHS = "HS256"
)

var (
	secret   = []byte("supersecret")
	tokenTTL = defaultTTL

	revoker session.Revoker = session.NewMemoryRevoker()
)

// Configure sets the signing secret, token lifetime and revocation store.
func Configure(jwtSecret string, ttl time.Duration, r session.Revoker) {
	secret = []byte(jwtSecret)
	if ttl > 0 {
		tokenTTL = ttl
	}
	if r != nil {
		revoker = r
	}
}

// Principal is the current state of the account behind a token.
type Principal struct {
	Role   string
	Active bool
}

// PrincipalLookup loads the account for userID. found is false once the account is deleted.
type PrincipalLookup func(ctx context.Context, userID uint) (p Principal, found bool, err error)

var lookupPrincipal PrincipalLookup

// SetPrincipalLookup makes every authenticated request re-check the account, so deactivation,
// deletion and role changes apply to tokens already issued. Nil disables the check.
func SetPrincipalLookup(fn PrincipalLookup) {
	lookupPrincipal = fn
}

// Revoker returns the store used to invalidate tokens on logout.
func Revoker() session.Revoker {
	return revoker
}

func GenerateToken(userID uint, role string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"jti":     uuid.NewString(),
		"exp":     time.Now().Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ValidateToken(tokenStr string) (*jwt.Token, error) {
	return jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{signingAlgHS}))
}

// tokenFromRequest reads the bearer header first, then the auth cookie, then ?token= on
// websocket upgrades.
func tokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := c.Cookie(AuthCookie); err == nil {
		return cookie
	}
	// browsers cannot set headers on a websocket handshake
	if c.IsWebsocket() {
		return c.Query("token")
	}
	return ""
}

// RequireAuth ensures a valid, unrevoked JWT is present
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if authenticate(c) {
			c.Next()
		}
	}
}

// authenticate validates the request token and stores its claims in the context.
// It aborts and returns false when the request is not authenticated.
func authenticate(c *gin.Context) bool {
	tokenString := tokenFromRequest(c)
	if tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
		return false
	}

	token, err := ValidateToken(tokenString)
	if err != nil || !token.Valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
		return false
	}
	userID, role, jti, exp, err := readClaims(claims)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
		return false
	}

	revoked, err := revoker.IsRevoked(c.Request.Context(), jti)
	if err != nil {
		logrus.WithError(err).Error("RequireAuth: revocation lookup failed")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Session store unavailable"})
		return false
	}
	if revoked {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session has been logged out"})
		return false
	}

	if lookupPrincipal != nil {
		p, found, err := lookupPrincipal(c.Request.Context(), userID)
		if err != nil {
			logrus.WithError(err).Error("RequireAuth: account lookup failed")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Account store unavailable"})
			return false
		}
		if !found || !p.Active {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Account is no longer active"})
			return false
		}
		role = p.Role
	}

	// Store claims in context for downstream handlers
	c.Set(ctxUserID, userID)
	c.Set(ctxRole, role)
	c.Set(ctxTokenID, jti)
	c.Set(ctxTokenExp, exp)
	return true
}

func readClaims(claims jwt.MapClaims) (uint, string, string, time.Time, error) {
	id, ok := claims["user_id"].(float64)
	if !ok || id <= 0 {
		return 0, "", "", time.Time{}, errors.New("user_id claim missing")
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return 0, "", "", time.Time{}, errors.New("role claim missing")
	}
	jti, _ := claims["jti"].(string)
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, "", "", time.Time{}, errors.New("exp claim missing")
	}
	return uint(id), role, jti, exp.Time, nil
}

// RequireRoles ensures the JWT is valid and the user has one of the allowed roles.
func RequireRoles(allowedRoles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		// First ensure basic auth
		if _, seen := c.Get(ctxUserID); !seen && !authenticate(c) {
			return
		}

		if _, ok := allowed[CurrentRole(c)]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}

// CurrentUserID returns the authenticated user id, zero when unauthenticated.
func CurrentUserID(c *gin.Context) uint {
	if v, ok := c.Get(ctxUserID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

func CurrentRole(c *gin.Context) string {
	return c.GetString(ctxRole)
}

// CurrentToken returns the id and expiry of the token that authenticated the request.
func CurrentToken(c *gin.Context) (string, time.Time) {
	exp, _ := c.Get(ctxTokenExp)
	t, _ := exp.(time.Time)
	return c.GetString(ctxTokenID), t
}
