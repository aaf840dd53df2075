package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	hosterrors "github.com/panelforge/hostd/src/common/errors"
	"github.com/panelforge/hostd/src/hostd/nsurl"
)

type nsParseRequest struct {
	URL string `json:"url"`
}

func (a *API) handleNSParse(c *gin.Context) {
	var req nsParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, hosterrors.New(hosterrors.DomainValidation, hosterrors.CodeInvalidRequest, http.StatusBadRequest, err.Error()))
		return
	}
	source, opts, err := nsurl.Parse(req.URL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": source, "options": opts})
}

type nsBuildRequest struct {
	Source  string        `json:"source"`
	Options nsurl.Options `json:"options"`
}

func (a *API) handleNSBuild(c *gin.Context) {
	var req nsBuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, hosterrors.New(hosterrors.DomainValidation, hosterrors.CodeInvalidRequest, http.StatusBadRequest, err.Error()))
		return
	}
	url, err := nsurl.Emit(req.Source, req.Options)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
