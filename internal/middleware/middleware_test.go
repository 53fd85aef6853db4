// internal/middleware/middleware_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/gitsubas/blingblingstore-sub000/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestResolveLanguage(t *testing.T) {
	cases := map[string]string{
		"":                           "en",
		"zh-TW,zh;q=0.9,en;q=0.8":    "zh_TW",
		"zh_TW":                      "zh_TW",
		"zh-Hant":                    "zh_TW",
		"en-US,en;q=0.9":             "en",
		"fr-FR,fr;q=0.9":             "en",
		"fr-FR,zh-TW;q=0.8,en;q=0.5": "zh_TW",
	}
	for header, want := range cases {
		assert.Equal(t, want, resolveLanguage(header), header)
	}
}

func TestBearerToken(t *testing.T) {
	token, ok := bearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", token)

	token, ok = bearerToken("bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	for _, header := range []string{"", "Bearer", "Bearer ", "Basic abc", "abc"} {
		_, ok := bearerToken(header)
		assert.False(t, ok, header)
	}
}

func newAuthRouter() *gin.Engine {
	r := gin.New()
	r.Use(I18nMiddleware())
	r.GET("/me", AuthRequired(), func(c *gin.Context) {
		userID, _ := utils.GetUserIDFromContext(c)
		c.String(http.StatusOK, userID)
	})
	r.GET("/admin", AuthRequired(), AdminRequired(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/public", OptionalAuth(), func(c *gin.Context) {
		userID, _ := utils.GetUserIDFromContext(c)
		c.String(http.StatusOK, userID)
	})
	return r
}

func serve(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	utils.SetJWTSecret("middleware-secret")
	r := newAuthRouter()

	customerID := uuid.New()
	customerToken, err := utils.GenerateJWT(customerID, "customer", "customer", 1)
	require.NoError(t, err)
	adminToken, err := utils.GenerateJWT(uuid.New(), "admin", "admin", 1)
	require.NoError(t, err)

	w := serve(r, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, "/me", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, "/me", customerToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, customerID.String(), w.Body.String())

	w = serve(r, "/admin", customerToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(r, "/admin", adminToken)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(r, "/public", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	w = serve(r, "/public", customerToken)
	assert.Equal(t, customerID.String(), w.Body.String())
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	utils.SetJWTSecret("middleware-secret")
	r := newAuthRouter()

	refresh, err := utils.GenerateRefreshToken(uuid.New(), 1)
	require.NoError(t, err)

	w := serve(r, "/me", refresh)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(rate.Every(time.Hour), 2)
	r := gin.New()
	r.GET("/", limiter.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(r, "/", "").Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterKeysByUser(t *testing.T) {
	limiter := NewRateLimiter(rate.Every(time.Hour), 1)
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		if user := c.Query("user"); user != "" {
			c.Set("user_id", user)
		}
		c.Next()
	}, limiter.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serve(r, "/?user=a", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, "/?user=b", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, "/", "").Code)

	w := serve(r, "/?user=a", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRedact(t *testing.T) {
	values := redact([]byte(`{"email":"a@example.com","password":"secret","payment_token":"tok"}`))

	assert.Equal(t, "a@example.com", values["email"])
	assert.Equal(t, "[REDACTED]", values["password"])
	assert.Equal(t, "[REDACTED]", values["payment_token"])

	assert.Nil(t, redact(nil))
	assert.Nil(t, redact([]byte("not json")))
}

func TestExtractResource(t *testing.T) {
	id := uuid.New()

	assert.Equal(t, "orders", extractResourceType("/api/v1/orders/"+id.String()+"/cancel"))
	assert.Equal(t, "users", extractResourceType("/api/v1/admin/users/"+id.String()+"/status"))
	assert.Equal(t, "health", extractResourceType("/health"))
	assert.Equal(t, id.String(), extractResourceID("/api/v1/orders/"+id.String()+"/cancel"))
	assert.Empty(t, extractResourceID("/api/v1/orders/my-orders"))
}
