package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	hosterrors "github.com/panelforge/hostd/src/common/errors"
	"github.com/panelforge/hostd/src/hostd/build"
	"github.com/panelforge/hostd/src/hostd/engine"
)

type buildRequest struct {
	Root       string `json:"root"`
	SourcePath string `json:"sourcePath"`
	Version    string `json:"version"`
}

// streamBuild writes one JSON line per progress state to the response,
// flushing after each line, then writes a final line carrying the build
// Result. Grounded on the teacher's progress-callback plumbing through to
// an SSE-equivalent chunked transfer.
func (a *API) streamBuild(c *gin.Context, e *engine.Engine, req buildRequest, kind build.Kind) {
	c.Header("Content-Type", "application/x-ndjson")
	c.Status(http.StatusOK)
	flusher, canFlush := c.Writer.(http.Flusher)

	writeLine := func(v interface{}) {
		data, err := json.Marshal(v)
		if err != nil {
			return
		}
		c.Writer.Write(data)
		c.Writer.Write([]byte("\n"))
		if canFlush {
			flusher.Flush()
		}
	}

	progress := func(state string) {
		writeLine(gin.H{"state": state})
	}

	var result build.Result
	switch kind {
	case build.KindWorker:
		result = e.Pipeline.BuildWorker(c.Request.Context(), req.Root, req.SourcePath, req.Version, progress)
	default:
		result = e.Pipeline.BuildPanel(c.Request.Context(), req.Root, req.SourcePath, req.Version, progress)
	}
	writeLine(gin.H{"result": result})
}

func (a *API) handleBuildPanel(c *gin.Context) {
	e, err := a.registry.open(c.Param("workspaceID"))
	if err != nil {
		writeError(c, err)
		return
	}
	var req buildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, hosterrors.New(hosterrors.DomainValidation, hosterrors.CodeInvalidRequest, http.StatusBadRequest, err.Error()))
		return
	}
	a.streamBuild(c, e, req, build.KindPanel)
}

func (a *API) handleBuildWorker(c *gin.Context) {
	e, err := a.registry.open(c.Param("workspaceID"))
	if err != nil {
		writeError(c, err)
		return
	}
	var req buildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, hosterrors.New(hosterrors.DomainValidation, hosterrors.CodeInvalidRequest, http.StatusBadRequest, err.Error()))
		return
	}
	a.streamBuild(c, e, req, build.KindWorker)
}
