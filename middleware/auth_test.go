package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"grc-portal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func sign(t *testing.T, key []byte, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(id uuid.UUID, role models.UserRole) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"user_id": id.String(),
		"name":    "Tester",
		"role":    string(role),
		"exp":     now.Add(time.Hour).Unix(),
		"iat":     now.Unix(),
	}
}

func newRouter(guard ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthMiddleware(secret)}, guard...)
	handlers = append(handlers, func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": actor.ID.String(), "role": actor.Role})
	})
	r.GET("/", handlers...)
	return r
}

func get(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareSetsActor(t *testing.T) {
	id := uuid.New()
	w := get(newRouter(), "Bearer "+sign(t, secret, validClaims(id, models.RoleEditor)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"`+id.String()+`","role":"editor"}`, w.Body.String())
}

func TestAuthMiddlewareRejects(t *testing.T) {
	expired := validClaims(uuid.New(), models.RoleEditor)
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	badID := validClaims(uuid.New(), models.RoleEditor)
	badID["user_id"] = "42"

	cases := map[string]string{
		"missing header":  "",
		"not bearer":      "Basic abc",
		"garbage":         "Bearer not-a-token",
		"wrong secret":    "Bearer " + sign(t, []byte("other"), validClaims(uuid.New(), models.RoleEditor)),
		"expired":         "Bearer " + sign(t, secret, expired),
		"non-uuid userid": "Bearer " + sign(t, secret, badID),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			w := get(newRouter(), header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), `"code_type":"unAuthorized"`)
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := newRouter(RequireRole(models.ApproveRoles...))

	w := get(r, "Bearer "+sign(t, secret, validClaims(uuid.New(), models.RoleApprover)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(r, "Bearer "+sign(t, secret, validClaims(uuid.New(), models.RoleAdmin)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(r, "Bearer "+sign(t, secret, validClaims(uuid.New(), models.RoleReviewer)))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"code_type":"forbidden"`)
}

func TestRequireRoleWithoutAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", RequireRole(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := get(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
