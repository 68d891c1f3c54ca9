package api

import (
	"github.com/gin-gonic/gin"
)

// GetStatus 获取存储概况
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.store.Status(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, status)
}
