package api

import "github.com/gin-gonic/gin"

// RegisterRoutes configures every route on router, grounded on the
// teacher's route-grouping-with-middleware shape (public discovery,
// health and ns:// codec routes; an authenticated group for every
// workspace-scoped route, reads and writes alike).
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/", a.handleRoot)
	router.GET("/healthz", a.handleHealth)

	v1 := router.Group("/v1")
	{
		v1.GET("/version", a.handleVersion)
		v1.POST("/ns/parse", a.handleNSParse)
		v1.POST("/ns/build", a.handleNSBuild)

		workspaces := v1.Group("/workspaces/:workspaceID")
		workspaces.Use(a.authRequired())
		{
			panels := workspaces.Group("/panels")
			{
				panels.POST("", a.handleCreatePanel)
				panels.GET("", a.handleRoots)
				panels.GET("/tree", a.handleTree)
				panels.GET("/:id", a.handleGetPanel)
				panels.PUT("/:id", a.handleUpdatePanel)
				panels.GET("/:id/children", a.handleChildren)
				panels.GET("/:id/ancestors", a.handleAncestors)
				panels.PUT("/:id/history", a.handleReplaceHistory)
				panels.POST("/:id/archive", a.handleArchivePanel)
				panels.POST("/:id/unarchive", a.handleUnarchivePanel)
				panels.PUT("/:id/collapse", a.handleCollapsePanel)
				panels.PUT("/:id/move", a.handleMovePanel)
				panels.PUT("/:id/select", a.handleSelectPanel)
			}

			build := workspaces.Group("/build")
			{
				build.POST("/panel", a.handleBuildPanel)
				build.POST("/worker", a.handleBuildWorker)
			}

			workspaces.POST("/typedefs", a.handleGetPackageTypes)
		}
	}
}
