package api

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	userIDKey    = "userId"
	requestIDKey = "requestId"
)

// RequestID attaches a request id to the context and the response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set("X-Request-Id", id)
		c.Next()
	}
}

// Logging logs one line per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("%s %s -> %d (%s) request_id=%s user=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond),
			c.GetString(requestIDKey), c.GetString(userIDKey))
	}
}

// Auth verifies an HS256 bearer token and stores its subject as the user id.
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(strings.TrimSpace(c.GetHeader("Authorization")), "Bearer ")
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}

		userID, err := verifyToken(raw, secret)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func verifyToken(raw string, secret []byte) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// SignToken issues a token for userID. It is used by tests and local tooling;
// production tokens come from the identity provider.
func SignToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func userIDFromContext(c *gin.Context) string {
	return c.GetString(userIDKey)
}
