package server

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"perfreview/internal/api"
	"perfreview/internal/config"
	"perfreview/internal/importer"
	"perfreview/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Server HTTP服务器
type Server struct {
	router  *gin.Engine
	store   store.Store
	handler *api.Handler
	log     *zap.Logger
}

// NewServer 创建服务器；store 由调用方打开和关闭
func NewServer(cfg *config.AppConfig, st store.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// 上传临时目录不可用时退回系统临时目录
	uploadDir := ""
	if dataDir, err := config.EnsureDataDir(cfg); err != nil {
		log.Warn("ensure data dir failed", zap.Error(err))
	} else {
		uploadDir = filepath.Join(dataDir, "uploads")
	}

	coordinator := importer.NewCoordinator(st, log)
	handler := api.NewHandler(st, coordinator, api.Options{
		MaxUploadBytes: cfg.MaxUploadBytes(),
		ImportTimeout:  cfg.ImportTimeout(),
		DefaultSheet:   cfg.Import.Sheet,
		UploadDir:      uploadDir,
	}, log)

	s := &Server{
		router:  gin.New(),
		store:   st,
		handler: handler,
		log:     log,
	}
	s.setupRoutes()
	return s
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	s.router.Use(recovery(s.log), requestLogger(s.log), cors())

	group := s.router.Group("/api")
	{
		s.handler.RegisterRoutes(group)
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, api.Response{
			Code:    api.CodeNotFound,
			Message: "接口不存在: " + c.Request.URL.Path,
		})
	})
}

// Handler 返回 http.Handler（用于测试）
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 启动服务器，ctx 结束后优雅关闭
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
