package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"perfreview/internal/exporter"
	"perfreview/internal/model"
	"perfreview/internal/parser"
)

// RecordsResponse 记录列表
type RecordsResponse struct {
	Total   int                      `json:"total"`
	Records []parser.IndicatorRecord `json:"records"`
}

// ListRecords 合并后的全部记录，可按员工/周期/部门过滤
// GET /api/import/performance?employee=&period=&department=
func (h *Handler) ListRecords(c *gin.Context) {
	records, err := h.store.Records(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	records = filterRecords(records, c.Query("employee"), c.Query("period"), c.Query("department"))
	success(c, RecordsResponse{Total: len(records), Records: records})
}

func filterRecords(records []parser.IndicatorRecord, employee, period, department string) []parser.IndicatorRecord {
	employee = strings.TrimSpace(employee)
	period = strings.TrimSpace(period)
	department = strings.TrimSpace(department)
	if employee == "" && period == "" && department == "" {
		return records
	}
	out := make([]parser.IndicatorRecord, 0, len(records))
	for _, rec := range records {
		if employee != "" && rec.EmployeeName != employee {
			continue
		}
		if period != "" && rec.EvaluationPeriod != period {
			continue
		}
		if department != "" && rec.Department != department {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// ListHistory 导入历史
// GET /api/import/history
func (h *Handler) ListHistory(c *gin.Context) {
	history, err := h.store.ListHistory(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, history)
}

// ExportRecords 导出合并后的记录
// GET /api/import/performance/export
func (h *Handler) ExportRecords(c *gin.Context) {
	records, err := h.store.Records(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	records = filterRecords(records, c.Query("employee"), c.Query("period"), c.Query("department"))

	buf, err := exporter.ExportRecords(records)
	if err != nil {
		h.log.Error("export failed", zap.Error(err))
		writeError(c, err)
		return
	}

	filename := fmt.Sprintf("绩效记录_%s.xlsx", time.Now().Format("20060102150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(filename)))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// UpdateRecord 修改单条记录
// PUT /api/import/performance/:id
func (h *Handler) UpdateRecord(c *gin.Context) {
	var patch model.RecordPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		errorResponse(c, http.StatusBadRequest, CodeInvalidRequest, "请求格式错误: "+err.Error())
		return
	}
	if err := patch.Validate(); err != nil {
		writeError(c, err)
		return
	}

	rec, err := h.store.UpdateRecord(c.Request.Context(), c.Param("id"), &patch)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, rec)
}

// DeleteRecord 删除单条记录
// DELETE /api/import/performance/:id
func (h *Handler) DeleteRecord(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.DeleteRecord(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	success(c, gin.H{"id": id})
}

// UpdateEmployee 修改某员工全部记录的身份字段
// PUT /api/import/employees/:name
func (h *Handler) UpdateEmployee(c *gin.Context) {
	var patch model.EmployeePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		errorResponse(c, http.StatusBadRequest, CodeInvalidRequest, "请求格式错误: "+err.Error())
		return
	}
	if err := patch.Validate(); err != nil {
		writeError(c, err)
		return
	}

	n, err := h.store.UpdateEmployee(c.Request.Context(), c.Param("name"), &patch)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, gin.H{"updated": n})
}

// DeleteEmployee 删除某员工全部记录
// DELETE /api/import/employees/:name
func (h *Handler) DeleteEmployee(c *gin.Context) {
	n, err := h.store.DeleteEmployee(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, gin.H{"deleted": n})
}
