package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"studioflow/config"
	"studioflow/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id": c.GetString(ContextUserID),
		"role":    c.GetString(ContextStudioRole),
	})
}

func serve(r *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ── JWTAuth ──

func TestJWTAuth(t *testing.T) {
	mgr := jwt.NewManager(&config.AuthConfig{JWTSecret: "test-secret-key-for-unit-testing"})
	token, err := mgr.Issue("user-1", "u1@example.com", time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", JWTAuth(mgr), okHandler)

	w := serve(r, "GET", "/me", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"user-1"`)

	w = serve(r, "GET", "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, "GET", "/me", map[string]string{"Authorization": "Token " + token})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, "GET", "/me", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ── PlatformAdminKey ──

func TestPlatformAdminKey(t *testing.T) {
	r := gin.New()
	r.POST("/admin", PlatformAdminKey("platform-secret"), okHandler)

	w := serve(r, "POST", "/admin", map[string]string{"Authorization": "Bearer platform-secret"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, "POST", "/admin", map[string]string{"Authorization": "Bearer platform-secreT"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	for _, header := range []string{"", "platform-secret", "Basic platform-secret", "Bearer "} {
		var headers map[string]string
		if header != "" {
			headers = map[string]string{"Authorization": header}
		}
		w = serve(r, "POST", "/admin", headers)
		assert.Equal(t, http.StatusForbidden, w.Code, "header=%q", header)
		assert.Contains(t, w.Body.String(), "10003")
	}
}

func TestPlatformAdminKey_EmptyKeyRejectsAll(t *testing.T) {
	r := gin.New()
	r.POST("/admin", PlatformAdminKey(""), okHandler)

	w := serve(r, "POST", "/admin", map[string]string{"Authorization": "Bearer x"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// ── StudioRole ──

type fakeResolver struct {
	roles map[string]string
	err   error
}

func (f *fakeResolver) GetMemberRole(_ context.Context, studioID, userID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if role, ok := f.roles[studioID+"|"+userID]; ok {
		return role, nil
	}
	return "", gorm.ErrRecordNotFound
}

func studioRouter(resolver RoleResolver, userID string, roles ...string) *gin.Engine {
	r := gin.New()
	r.GET("/studios/:studioId/x", func(c *gin.Context) {
		if userID != "" {
			c.Set(ContextUserID, userID)
		}
	}, StudioRole(resolver, zap.NewNop(), roles...), okHandler)
	return r
}

func TestStudioRole(t *testing.T) {
	resolver := &fakeResolver{roles: map[string]string{
		"s1|owner": "owner",
		"s1|mem":   "member",
	}}

	tests := []struct {
		name   string
		userID string
		studio string
		want   int
	}{
		{"角色匹配", "owner", "s1", http.StatusOK},
		{"角色不足", "mem", "s1", http.StatusForbidden},
		{"非成员", "owner", "s2", http.StatusForbidden},
		{"未认证", "", "s1", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := studioRouter(resolver, tt.userID, "owner", "admin")
			w := serve(r, "GET", "/studios/"+tt.studio+"/x", nil)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestStudioRole_SetsRole(t *testing.T) {
	resolver := &fakeResolver{roles: map[string]string{"s1|u": "teacher"}}
	w := serve(studioRouter(resolver, "u", "owner", "admin", "teacher"), "GET", "/studios/s1/x", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"teacher"`)
}

func TestStudioRole_StoreError(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("db down")}
	w := serve(studioRouter(resolver, "u", "owner"), "GET", "/studios/s1/x", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// ── 其它中间件 ──

func TestRateLimit_NilRedisPassesThrough(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimit(nil, 1, time.Minute), okHandler)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(r, "GET", "/x", nil).Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequestID(), okHandler)

	w := serve(r, "GET", "/x", map[string]string{"X-Request-ID": "abc"})
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))

	w = serve(r, "GET", "/x", map[string]string{"X-Request-ID": strings.Repeat("a", 100)})
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:3000/"}))
	r.GET("/x", okHandler)

	w := serve(r, "GET", "/x", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, "GET", "/x", map[string]string{"Origin": "http://evil.example"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, "OPTIONS", "/x", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.POST("/x", BodyLimit(8), okHandler)

	req := httptest.NewRequest("POST", "/x", strings.NewReader(strings.Repeat("x", 32)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.GET("/x", SecurityHeaders(), okHandler)

	w := serve(r, "GET", "/x", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
