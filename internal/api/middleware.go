package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/logger"
	"alcyxob/stride-planner/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Constants for context keys
const (
	ContextRunnerIDKey = "runnerID"
)

// jwtClaims is the payload issued by the identity service. Only the
// subject id is used here.
type jwtClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// AuthMiddleware creates a Gin middleware for JWT authentication. Time-based
// claims are checked against clk.
func AuthMiddleware(jwtSecret string, clk clock.Clock) gin.HandlerFunc {
	parser := &jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}, SkipClaimsValidation: true}
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header is missing")
			return
		}

		// Expecting "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}
		tokenString := parts[1]

		claims := &jwtClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, fmt.Sprintf("Invalid token: %v", err))
			return
		}

		if !token.Valid || claims.UserID == "" {
			abortWithError(c, http.StatusUnauthorized, "Invalid token or missing claims")
			return
		}
		now := clk.Now()
		if !claims.VerifyExpiresAt(now, true) {
			abortWithError(c, http.StatusUnauthorized, "Token has expired")
			return
		}
		if !claims.VerifyNotBefore(now, false) {
			abortWithError(c, http.StatusUnauthorized, "Token is not valid yet")
			return
		}
		runnerID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "Invalid runner ID format in token")
			return
		}

		c.Set(ContextRunnerIDKey, runnerID)
		c.Next()
	}
}

// RequestLogger logs one line per request through the service logger.
func RequestLogger(log *logger.Logger, clk clock.Clock) gin.HandlerFunc {
	log = log.With("component", "HTTP")
	return func(c *gin.Context) {
		start := clk.Now()
		c.Next()
		status := c.Writer.Status()
		kv := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration_ms", clk.Now().Sub(start).Milliseconds(),
		}
		if status >= http.StatusInternalServerError {
			log.Error("request failed", kv...)
			return
		}
		log.Debug("request handled", kv...)
	}
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// abortWithServiceError maps the service error taxonomy to HTTP statuses.
// Unexpected errors are logged and hidden behind fallback.
func abortWithServiceError(c *gin.Context, log *logger.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		abortWithError(c, http.StatusConflict, err.Error())
	default:
		log.Error(fallback, "path", c.FullPath(), "error", err)
		abortWithError(c, http.StatusInternalServerError, fallback)
	}
}

// Helper function to get the runner ID from context (used by handlers)
func getRunnerIDFromContext(c *gin.Context) (primitive.ObjectID, error) {
	idRaw, exists := c.Get(ContextRunnerIDKey)
	if !exists {
		return primitive.NilObjectID, errors.New("runner ID not found in context")
	}
	id, ok := idRaw.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("invalid runner ID type in context")
	}
	return id, nil
}

// objectIDParam parses a hex ObjectID path parameter, aborting with 400 on
// malformed input.
func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid %s format.", name))
		return primitive.NilObjectID, false
	}
	return id, true
}

// runnerAndParam resolves the authenticated runner and one path ID.
func runnerAndParam(c *gin.Context, name string) (primitive.ObjectID, primitive.ObjectID, bool) {
	runnerID, err := getRunnerIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify runner from token.")
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	id, ok := objectIDParam(c, name)
	return runnerID, id, ok
}
