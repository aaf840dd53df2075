package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	hosterrors "github.com/panelforge/hostd/src/common/errors"
	"github.com/gin-gonic/gin"
)

// authRequired compares the request's bearer token against the configured
// static token. It is the realisation of the Non-goal "no authentication
// beyond opaque token passthrough": there is no login flow, no user store,
// and no per-request claims beyond the fact the token matched.
func (a *API) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.cfg.AuthToken == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || subtle.ConstantTimeCompare([]byte(token), []byte(a.cfg.AuthToken)) != 1 {
			writeError(c, hosterrors.New(hosterrors.DomainWorkspace, hosterrors.CodeUnauthorized, http.StatusUnauthorized, "missing or invalid bearer token"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func ginLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		if log == nil {
			return
		}
		log.Debug("http request",
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", path,
			"latency", time.Since(start),
		)
	}
}

// writeError writes err as a JSON error envelope with the error's mapped
// HTTP status, or 500 for an unrecognised error type.
func writeError(c *gin.Context, err error) {
	c.JSON(hosterrors.GetHTTPStatus(err), hosterrors.NewResponse(err))
}
