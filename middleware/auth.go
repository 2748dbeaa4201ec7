package middleware

import (
	"strings"

	"grc-portal/helper"
	"grc-portal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var HTTPHelper = helper.NewHTTPHelper()

const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			HTTPHelper.SendUnauthorizedError(c, "Authorization header required", HTTPHelper.EmptyJsonMap())
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			HTTPHelper.SendUnauthorizedError(c, "Bearer token required", HTTPHelper.EmptyJsonMap())
			c.Abort()
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return secret, nil
		})
		if err != nil {
			HTTPHelper.SendUnauthorizedError(c, "Invalid token: "+err.Error(), HTTPHelper.EmptyJsonMap())
			c.Abort()
			return
		}
		if !token.Valid {
			HTTPHelper.SendUnauthorizedError(c, "Token is not valid", HTTPHelper.EmptyJsonMap())
			c.Abort()
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			HTTPHelper.SendUnauthorizedError(c, "Token carries no valid user id", HTTPHelper.EmptyJsonMap())
			c.Abort()
			return
		}

		c.Set(ContextUserID, userID)
		c.Set("name", claims.Name)
		c.Set(ContextRole, models.UserRole(claims.Role))

		c.Next()
	}
}

// RequireRole lets the request through only when the authenticated
// user's role is one of roles.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ContextRole)
		if !exists {
			HTTPHelper.SendUnauthorizedError(c, "User role not found", HTTPHelper.EmptyJsonMap())
			c.Abort()
			return
		}

		userRole, _ := value.(models.UserRole)
		for _, role := range roles {
			if userRole == role {
				c.Next()
				return
			}
		}

		HTTPHelper.SendForbiddenError(c, "Insufficient permissions", HTTPHelper.EmptyJsonMap())
		c.Abort()
	}
}

// ActorFromContext returns the identity AuthMiddleware stored.
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	value, ok := c.Get(ContextUserID)
	if !ok {
		return models.Actor{}, false
	}
	id, ok := value.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return models.Actor{}, false
	}
	role, _ := c.Get(ContextRole)
	userRole, _ := role.(models.UserRole)
	return models.Actor{ID: id, Role: userRole}, true
}
