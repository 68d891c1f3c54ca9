package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"perfreview/internal/model"
	"perfreview/internal/parser"
	"perfreview/internal/store"
	"perfreview/internal/workbook"
)

// 业务错误码
const (
	CodeOK             = 0
	CodeNoFile         = 1001
	CodeBadFile        = 1002
	CodeFileTooLarge   = 1003
	CodeImportTimeout  = 1004
	CodeInvalidRequest = 1005
	CodeNotFound       = 1404
	CodeInternal       = 1500
)

// Response 通用响应
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeOK,
		Message: "success",
		Data:    data,
	})
}

func errorResponse(c *gin.Context, status, code int, message string) {
	c.AbortWithStatusJSON(status, Response{
		Code:    code,
		Message: message,
	})
}

// writeError 按错误类型选择 HTTP 状态与错误码
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		errorResponse(c, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, model.ErrInvalidPatch):
		errorResponse(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
	case errors.Is(err, workbook.ErrUnsupportedFormat):
		errorResponse(c, http.StatusBadRequest, CodeBadFile, "仅支持 .xlsx 和 .xls 格式")
	case errors.Is(err, workbook.ErrInvalidWorkbook):
		errorResponse(c, http.StatusBadRequest, CodeBadFile, "文件解析失败: "+err.Error())
	case errors.Is(err, workbook.ErrNoSheet):
		errorResponse(c, http.StatusBadRequest, CodeBadFile, "工作表不存在: "+err.Error())
	case errors.Is(err, parser.ErrEmptySheet):
		errorResponse(c, http.StatusBadRequest, CodeBadFile, "工作表为空")
	case errors.Is(err, parser.ErrTooFewRows):
		errorResponse(c, http.StatusBadRequest, CodeBadFile, "工作表至少需要表头行和一行数据")
	case errors.Is(err, parser.ErrNoHeader):
		errorResponse(c, http.StatusBadRequest, CodeBadFile, "未找到包含指标名称的表头行")
	case errors.Is(err, context.DeadlineExceeded):
		errorResponse(c, http.StatusGatewayTimeout, CodeImportTimeout, "导入超时")
	default:
		errorResponse(c, http.StatusInternalServerError, CodeInternal, err.Error())
	}
}
