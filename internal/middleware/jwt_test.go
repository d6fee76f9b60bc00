package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busops/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": CurrentUserID(c), "role": CurrentRole(c)})
	})
	r.GET("/x", handlers...)
	return r
}

func get(r http.Handler, header, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: AuthCookie, Value: cookie})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireRoles(t *testing.T) {
	Configure("unit-secret", time.Hour, session.NewMemoryRevoker())
	r := newRouter(RequireRoles("super-admin", "bus-owner"))

	owner, err := GenerateToken(4, "bus-owner")
	require.NoError(t, err)
	manager, err := GenerateToken(5, "manager")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		cookie string
		code   int
	}{
		{"allowed role", "Bearer " + owner, "", http.StatusOK},
		{"cookie", "", owner, http.StatusOK},
		{"other role", "Bearer " + manager, "", http.StatusForbidden},
		{"missing token", "", "", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-token", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, get(r, tt.header, tt.cookie).Code)
		})
	}
}

func TestRequireRoles_AfterRequireAuth(t *testing.T) {
	Configure("unit-secret", time.Hour, session.NewMemoryRevoker())
	r := newRouter(RequireAuth(), RequireRoles("manager"))

	tok, err := GenerateToken(5, "manager")
	require.NoError(t, err)
	w := get(r, "Bearer "+tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":5,"role":"manager"}`, w.Body.String())
}

func TestRequireAuth_RejectsRevokedAndForeignTokens(t *testing.T) {
	rev := session.NewMemoryRevoker()
	Configure("unit-secret", time.Hour, rev)
	r := newRouter(RequireAuth())

	tok, err := GenerateToken(1, "super-admin")
	require.NoError(t, err)
	parsed, err := ValidateToken(tok)
	require.NoError(t, err)
	jti := parsed.Claims.(jwt.MapClaims)["jti"].(string)

	require.NoError(t, rev.Revoke(context.Background(), jti, time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer "+tok, "").Code)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1, "role": "super-admin", "exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := foreign.SignedString([]byte("another-secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer "+signed, "").Code)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1, "role": "super-admin", "exp": time.Now().Add(-time.Minute).Unix(),
	})
	signed, err = expired.SignedString([]byte("unit-secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer "+signed, "").Code)
}

func TestRequireAuth_ChecksCurrentAccount(t *testing.T) {
	Configure("unit-secret", time.Hour, session.NewMemoryRevoker())
	accounts := map[uint]Principal{
		1: {Role: "bus-owner", Active: true},
		2: {Role: "manager", Active: false},
		3: {Role: "manager", Active: true},
	}
	SetPrincipalLookup(func(_ context.Context, id uint) (Principal, bool, error) {
		if id == 99 {
			return Principal{}, false, errors.New("connection refused")
		}
		p, ok := accounts[id]
		return p, ok, nil
	})
	t.Cleanup(func() { SetPrincipalLookup(nil) })

	tests := []struct {
		name     string
		userID   uint
		claimed  string
		code     int
		wantRole string
	}{
		{"active account", 1, "bus-owner", http.StatusOK, "bus-owner"},
		{"deactivated account", 2, "manager", http.StatusUnauthorized, ""},
		{"deleted account", 7, "bus-owner", http.StatusUnauthorized, ""},
		{"stored role wins over the claim", 3, "super-admin", http.StatusOK, "manager"},
		{"store failure", 99, "bus-owner", http.StatusServiceUnavailable, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := GenerateToken(tt.userID, tt.claimed)
			require.NoError(t, err)
			w := get(newRouter(RequireAuth()), "Bearer "+tok, "")
			require.Equal(t, tt.code, w.Code, w.Body.String())
			if tt.code != http.StatusOK {
				return
			}
			var body struct {
				Role string `json:"role"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantRole, body.Role)
		})
	}

	tok, err := GenerateToken(3, "super-admin")
	require.NoError(t, err)
	w := get(newRouter(RequireRoles("super-admin")), "Bearer "+tok, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequestID(), func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
