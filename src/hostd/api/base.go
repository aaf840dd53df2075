package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *API) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":  "hostd",
		"links": gin.H{"health": "/healthz", "version": "/v1/version"},
	})
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *API) handleVersion(c *gin.Context) {
	if versionInfo == nil {
		c.JSON(http.StatusOK, gin.H{"version": "dev"})
		return
	}
	c.JSON(http.StatusOK, versionInfo.Map())
}
