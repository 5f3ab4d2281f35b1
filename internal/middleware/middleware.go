package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdminRole bypasses role checks.
const AdminRole = "hr_admin"

// Context keys set by the middleware in this package.
const (
	KeyRequestID   = "request_id"
	KeyUserID      = "user_id"
	KeyUserName    = "user_name"
	KeyRoles       = "roles"
	KeyDepartments = "departments"
	KeyClaims      = "claims"
)

// abort ends the request with the standard error envelope.
func abort(c *gin.Context, status, code int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "message": message})
}

// Logger writes one access line per request: info for 2xx/3xx, warn for
// 4xx, error for 5xx.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String(KeyRequestID, c.GetString(KeyRequestID)),
		}
		if raw := c.Request.URL.RawQuery; raw != "" {
			fields = append(fields, zap.String("query", raw))
		}
		if uid := c.GetString(KeyUserID); uid != "" {
			fields = append(fields, zap.String("employee_id", uid))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request failed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request rejected", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// CORS answers preflight requests and allows browser clients from any origin.
func CORS() gin.HandlerFunc {
	const allowHeaders = "Authorization, Content-Type, Accept, Accept-Encoding, Cache-Control, X-Request-ID, X-Requested-With"
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestID reuses the caller's X-Request-ID or assigns a new uuid.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(KeyRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// JWTClaims is the identity issued by the company SSO: the employee id,
// the hr roles (employee, pm, dm, gm, hr_admin) and the departments the
// employee manages.
type JWTClaims struct {
	UserID      string   `json:"uid"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Departments []string `json:"depts"`
	jwt.RegisteredClaims
}

// bearerToken reads the Authorization header, falling back to ?token= for
// EventSource clients that cannot set headers.
func bearerToken(c *gin.Context) string {
	if scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return c.Query("token")
}

// JWTAuth verifies an HS256 token and stores the caller on the context.
func JWTAuth(secret, issuer string) gin.HandlerFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }

	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			abort(c, http.StatusUnauthorized, 40100, "Authorization is required")
			return
		}

		claims := &JWTClaims{}
		if _, err := jwt.ParseWithClaims(raw, claims, keyFunc, opts...); err != nil {
			abort(c, http.StatusUnauthorized, 40102, "Invalid or expired token")
			return
		}
		if claims.UserID == "" {
			abort(c, http.StatusUnauthorized, 40103, "Token carries no employee id")
			return
		}

		c.Set(KeyUserID, claims.UserID)
		c.Set(KeyUserName, claims.Name)
		c.Set(KeyRoles, claims.Roles)
		c.Set(KeyDepartments, claims.Departments)
		c.Set(KeyClaims, claims)
		c.Next()
	}
}

// RequireRole admits callers holding any of roles. AdminRole is always admitted.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles)+1)
	for _, r := range roles {
		allowed[r] = true
	}
	allowed[AdminRole] = true

	return func(c *gin.Context) {
		held, ok := c.Get(KeyRoles)
		if !ok {
			abort(c, http.StatusForbidden, 40310, "No roles found")
			return
		}
		userRoles, ok := held.([]string)
		if !ok {
			abort(c, http.StatusForbidden, 40311, "Invalid roles format")
			return
		}
		for _, r := range userRoles {
			if allowed[r] {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, 40312, "Role required: "+strings.Join(roles, " or "))
	}
}
