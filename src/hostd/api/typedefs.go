package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	hosterrors "github.com/panelforge/hostd/src/common/errors"
)

type typedefsRequest struct {
	ConsumerPath string   `json:"consumerPath"`
	Packages     []string `json:"packages"`
}

func (a *API) handleGetPackageTypes(c *gin.Context) {
	e, err := a.registry.open(c.Param("workspaceID"))
	if err != nil {
		writeError(c, err)
		return
	}
	var req typedefsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, hosterrors.New(hosterrors.DomainValidation, hosterrors.CodeInvalidRequest, http.StatusBadRequest, err.Error()))
		return
	}
	results := e.Typedefs.GetPackageTypes(c.Request.Context(), req.ConsumerPath, req.Packages)
	c.JSON(http.StatusOK, results)
}
