package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"perfreview/internal/importer"
	"perfreview/internal/store"
)

// Options 上传导入限制
type Options struct {
	MaxUploadBytes int64
	ImportTimeout  time.Duration
	DefaultSheet   string
	UploadDir      string // 临时文件目录，为空时使用系统临时目录
}

// Handler 绩效导入 API 处理器
type Handler struct {
	store       store.Store
	coordinator *importer.Coordinator
	opts        Options
	log         *zap.Logger
}

// NewHandler 创建处理器
func NewHandler(st store.Store, coordinator *importer.Coordinator, opts Options, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.ImportTimeout <= 0 {
		opts.ImportTimeout = time.Minute
	}
	return &Handler{
		store:       st,
		coordinator: coordinator,
		opts:        opts,
		log:         log,
	}
}

// RegisterRoutes 注册路由（挂在 /api 下）
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 系统状态
	router.GET("/status", h.GetStatus)

	imports := router.Group("/import")
	{
		// 数据导入
		imports.POST("/excel", h.ImportExcel)
		imports.GET("/history", h.ListHistory)

		// 记录查询与修改
		imports.GET("/performance", h.ListRecords)
		imports.GET("/performance/export", h.ExportRecords)
		imports.PUT("/performance/:id", h.UpdateRecord)
		imports.DELETE("/performance/:id", h.DeleteRecord)

		imports.PUT("/employees/:name", h.UpdateEmployee)
		imports.DELETE("/employees/:name", h.DeleteEmployee)
	}
}
