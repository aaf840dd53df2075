package core

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/panelforge/hostd/src/common/paths"
	"github.com/panelforge/hostd/src/hostd/api"
	_ "github.com/panelforge/hostd/src/hostd/docs"
	"github.com/panelforge/hostd/src/hostd/engine"
	"github.com/panelforge/hostd/src/hostd/storage"
	"github.com/panelforge/hostd/src/hostd/tree/migrations"
	_ "github.com/mattn/go-sqlite3"
)

// Server holds the HTTP server instance and the workspace-scoped API.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	api        *api.API
}

// NewServer creates a new Server instance, wiring loggers into the engine
// and api packages and constructing the workspace API registry.
func NewServer() *Server {
	if viper.GetString("log.level") == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(ginLogger())

	engine.SetLogger(log)
	api.SetLogger(log)
	api.SetVersionInfo(VersionInfo)

	apiInstance := api.New(api.Config{
		WorkspaceRoot: paths.Expand(viper.GetString("workspace.root")),
		CacheBackend:  viper.GetString("cache.backend"),
		S3: storage.S3Config{
			Endpoint:        viper.GetString("cache.s3.endpoint"),
			Region:          viper.GetString("cache.s3.region"),
			Bucket:          viper.GetString("cache.s3.bucket"),
			AccessKeyID:     viper.GetString("cache.s3.access_key"),
			SecretAccessKey: viper.GetString("cache.s3.secret_key"),
		},
		BuildWorkers:    viper.GetInt("build.workers"),
		BuildQueueDepth: viper.GetInt("build.queue_depth"),
		DevCache:        viper.GetBool("cache.dev"),
		AuthToken:       viper.GetString("auth.token"),
	})

	apiInstance.RegisterRoutes(router)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return &Server{router: router, api: apiInstance}
}

// Run starts the HTTP server and blocks until an interrupt signal or a
// listener error.
func (s *Server) Run() error {
	bind := viper.GetString("server.bind")
	port := viper.GetInt("server.port")
	addr := fmt.Sprintf("%s:%d", bind, port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // build/progress streaming holds the connection open
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("starting hostd server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Info("received signal, shutting down", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

// Shutdown closes every open workspace Engine and the HTTP server.
func (s *Server) Shutdown() error {
	if s.api != nil {
		s.api.Shutdown()
	}
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error("http server shutdown error", "error", err)
			return err
		}
	}
	return nil
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if c.Request.Method == "OPTIONS" {
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
		query := c.Request.URL.RawQuery
		c.Next()
		if query != "" {
			path = path + "?" + query
		}
		log.Debug("http request",
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", path,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// runServer is called by the root command to start the server.
func runServer() error {
	log.Info("hostd starting",
		"version", VersionInfo.Version,
		"build_date", VersionInfo.BuildDate,
	)

	server := NewServer()
	err := server.Run()

	if shutdownErr := server.Shutdown(); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}

// runMigrate opens dbPath directly (not the shared in-memory handle the
// running server uses) and applies every pending panel schema migration,
// for operators preparing a workspace database offline.
func runMigrate(dbPath string) error {
	dbPath = paths.Expand(dbPath)
	migrations.SetLogger(log)

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer db.Close()

	runner := migrations.NewRunner(db)
	if err := runner.Run(); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, err := runner.CurrentVersion()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	log.Info("migrations applied", "path", dbPath, "schema_version", version)
	return nil
}
