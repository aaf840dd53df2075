package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	hosterrors "github.com/panelforge/hostd/src/common/errors"
	"github.com/panelforge/hostd/src/hostd/tree"
)

func (a *API) engineFor(c *gin.Context) (*tree.Store, bool) {
	workspaceID := c.Param("workspaceID")
	e, err := a.registry.open(workspaceID)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return e.Tree, true
}

type createPanelRequest struct {
	ParentID *string       `json:"parentId"`
	Title    string        `json:"title"`
	Snapshot tree.Snapshot `json:"snapshot"`
}

func (a *API) handleCreatePanel(c *gin.Context) {
	store, ok := a.engineFor(c)
	if !ok {
		return
	}
	var req createPanelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, hosterrors.New(hosterrors.DomainValidation, hosterrors.CodeInvalidRequest, http.StatusBadRequest, err.Error()))
		return
	}

	workspaceID := c.Param("workspaceID")
	panel, err := store.Create(workspaceID, uuid.NewString(), req.ParentID, req.Title, req.Snapshot)
	if err != nil {
		writeError(c, err)
		return
	}
	store.AppendEvent(workspaceID, panel.ID, tree.EventCreated, nil)
	c.JSON(http.StatusCreated, panel)
}

func (a *API) handleGetPanel(c *gin.Context) {
	store, ok := a.engineFor(c)
	if !ok {
		return
	}
	panel, err := store.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, panel)
}

type updatePanelRequest struct {
	Title     *string `json:"title"`
	Collapsed *bool   `json:"collapsed"`
}

func (a *API) handleUpdatePanel(c *gin.Context) {
	store, ok := a.engineFor(c)
	if !ok {
		return
	}
	var req updatePanelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, hosterrors.New(hosterrors.DomainValidation, hosterrors.CodeInvalidRequest, http.StatusBadRequest, err.Error()))
		return
	}
	if err := store.Update(c.Param("id"), tree.UpdatePanelInput{Title: req.Title, Collapsed: req.Collapsed}); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleArchivePanel(c *gin.Context) {
	store, ok := a.engineFor(c)
	if !ok {
		return
	}
	if err := store.Archive(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleUnarchivePanel(c *gin.Context) {
	store, ok := a.engineFor(c)
	if !ok {
		return
	}
	if err := store.Unarchive(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type collapsePanelRequest struct {
	Collapsed bool `json:"collapsed"`
}

func (a *API) handleCollapsePanel(c *gin.Context) {
	store, ok := a.engineFor(c)
	if !ok {
		return
	}
	var req collapsePanelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, hosterrors.New(hosterrors.DomainValidation, hosterrors.CodeInvalidRequest, http.StatusBadRequest, err.Error()))
		return
	}
	if err := store.SetCollapsed(c.Param("id"), req.Collapsed); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type movePanelRequest struct {
	NewParentID *string `json:"newParentId"`
	Position    int     `json:"position"`
}

func (a *API) handleMovePanel(c *gin.Context) {
	store, ok := a.engineFor(c)
	if !ok {
		return
	}
	var req movePanelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, hosterrors.New(hosterrors.DomainValidation, hosterrors.CodeInvalidRequest, http.StatusBadRequest, err.Error()))
		return
	}
	if err := store.Move(c.Param("id"), req.NewParentID, req.Position); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type selectPanelRequest struct {
	ChildID *string `json:"childId"`
}

func (a *API) handleSelectPanel(c *gin.Context) {
	store, ok := a.engineFor(c)
	if !ok {
		return
	}
	var req selectPanelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, hosterrors.New(hosterrors.DomainValidation, hosterrors.CodeInvalidRequest, http.StatusBadRequest, err.Error()))
		return
	}
	if err := store.SetSelectedChild(c.Param("id"), req.ChildID); err != nil {
		writeError(c, err)
		return
	}
	workspaceID := c.Param("workspaceID")
	if req.ChildID != nil {
		store.AppendEvent(workspaceID, *req.ChildID, tree.EventFocused, nil)
	}
	c.Status(http.StatusNoContent)
}

type replaceHistoryRequest struct {
	History []tree.Snapshot `json:"history"`
	Index   int             `json:"index"`
}

func (a *API) handleReplaceHistory(c *gin.Context) {
	store, ok := a.engineFor(c)
	if !ok {
		return
	}
	var req replaceHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, hosterrors.New(hosterrors.DomainValidation, hosterrors.CodeInvalidRequest, http.StatusBadRequest, err.Error()))
		return
	}
	if err := store.ReplaceHistory(c.Param("id"), req.History, req.Index); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleTree(c *gin.Context) {
	store, ok := a.engineFor(c)
	if !ok {
		return
	}
	forest, err := store.Tree(c.Param("workspaceID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, forest)
}

func (a *API) handleRoots(c *gin.Context) {
	store, ok := a.engineFor(c)
	if !ok {
		return
	}
	roots, err := store.Roots(c.Param("workspaceID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, roots)
}

func (a *API) handleChildren(c *gin.Context) {
	store, ok := a.engineFor(c)
	if !ok {
		return
	}
	children, err := store.Children(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, children)
}

func (a *API) handleAncestors(c *gin.Context) {
	store, ok := a.engineFor(c)
	if !ok {
		return
	}
	ancestors, err := store.Ancestors(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ancestors)
}
