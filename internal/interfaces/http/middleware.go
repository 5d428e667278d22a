package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-desk/internal/domain/entity"
)

const identityKey = "identity"

// loggingMiddleware logs every request with its latency and status
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// recoveryMiddleware turns a handler panic into the internal error envelope
func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		s.logger.Error("Handler panic recovered",
			"path", c.Request.URL.Path,
			"panic", recovered,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   &ErrorBody{Code: CodeInternal, Message: "internal server error"},
		})
	})
}

// corsMiddleware answers preflight requests and sets the allow headers for
// the configured origins. "*" allows any origin.
func (s *Server) corsMiddleware() gin.HandlerFunc {
	allowed := make(map[string]bool, len(s.config.AllowedOrigins))
	for _, origin := range s.config.AllowedOrigins {
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowed["*"] || allowed[origin]) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Origin,Content-Type,Accept,Authorization")
			h.Set("Access-Control-Max-Age", "600")
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// authMiddleware resolves the bearer token to the caller's identity
func (h *Handlers) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			h.respondError(c, entity.ErrUnauthenticated)
			return
		}

		identity, err := h.services.Auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			h.respondError(c, err)
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// caller returns the identity set by authMiddleware
func caller(c *gin.Context) entity.Identity {
	v, _ := c.Get(identityKey)
	identity, _ := v.(entity.Identity)
	return identity
}
