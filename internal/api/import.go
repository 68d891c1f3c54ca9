package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"perfreview/internal/importer"
)

// multipart 表单自身的开销
const formOverhead = 1 << 20

// ImportExcel 上传并导入绩效考评表
// POST /api/import/excel  (multipart: file, sheet)
func (h *Handler) ImportExcel(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes+formOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorResponse(c, http.StatusRequestEntityTooLarge, CodeFileTooLarge, h.tooLargeMessage())
			return
		}
		errorResponse(c, http.StatusBadRequest, CodeNoFile, "请上传文件")
		return
	}

	if header.Size > h.opts.MaxUploadBytes {
		errorResponse(c, http.StatusRequestEntityTooLarge, CodeFileTooLarge, h.tooLargeMessage())
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".xlsx" && ext != ".xls" {
		errorResponse(c, http.StatusBadRequest, CodeBadFile, "仅支持 .xlsx 和 .xls 格式")
		return
	}

	tmp, err := os.CreateTemp(h.opts.UploadDir, "perfreview_import_*"+ext)
	if err != nil {
		h.log.Error("create temp file failed", zap.Error(err))
		errorResponse(c, http.StatusInternalServerError, CodeInternal, "保存文件失败")
		return
	}
	tempFilePath := tmp.Name()
	tmp.Close()

	// 清理临时文件
	defer os.Remove(tempFilePath)

	if err := c.SaveUploadedFile(header, tempFilePath); err != nil {
		h.log.Error("save upload failed", zap.Error(err))
		errorResponse(c, http.StatusInternalServerError, CodeInternal, "保存文件失败")
		return
	}

	sheet := strings.TrimSpace(c.PostForm("sheet"))
	if sheet == "" {
		sheet = h.opts.DefaultSheet
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.ImportTimeout)
	defer cancel()

	report, err := h.coordinator.Import(ctx, importer.Options{
		FilePath:         tempFilePath,
		OriginalFilename: header.Filename,
		SheetName:        sheet,
		OnProgress: func(evt importer.ProgressEvent) {
			h.log.Debug("import progress",
				zap.String("filename", header.Filename),
				zap.String("type", evt.Type),
				zap.String("message", evt.Message),
			)
		},
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Code:    CodeOK,
		Message: fmt.Sprintf("成功导入 %d 条记录", report.TotalRecords),
		Data:    report,
	})
}

func (h *Handler) tooLargeMessage() string {
	return fmt.Sprintf("文件过大，最大支持%dMB", h.opts.MaxUploadBytes>>20)
}
