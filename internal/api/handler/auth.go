package handler

import (
	"batchchat/backend/internal/models"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"

	issuer = "batchchat-service"
)

// Identity roles allowed to edit rosters.
var StaffRoles = []string{"admin", "coordinator", "teacher"}

// Claims is the payload of an access token.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Auth issues and checks HS256 access tokens.
type Auth struct {
	secret []byte
	ttl    time.Duration
}

// NewAuth Constructor
func NewAuth(secret string, ttl time.Duration) *Auth {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Auth{secret: []byte(secret), ttl: ttl}
}

// IssueToken signs a token for userID with the given identity role.
func (a *Auth) IssueToken(userID, role string) (string, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return "", fmt.Errorf("%w: user id %q is not a uuid", models.ErrValidation, userID)
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseToken validates a token and returns its claims.
func (a *Auth) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, errors.New("token carries no valid user_id")
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's identity in the gin context.
func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
			return
		}
		claims, err := a.ParseToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
			return
		}
		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// RequireRole lets the request through only for callers holding one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ctxRole)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		respondError(c, fmt.Errorf("%w: role %q may not do this", models.ErrUnauthorized, role))
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
