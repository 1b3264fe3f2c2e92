package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sujith-eag/timetable-builder/internal/service"
	"github.com/sujith-eag/timetable-builder/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportRun 导出运行结果为 Excel
// GET /api/v1/runs/:id/export
func (h *ExportHandler) ExportRun(c *gin.Context) {
	buf, filename, err := h.exportSvc.ExportRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleExportError(c, err)
		return
	}
	response.Attachment(c, xlsxContentType, filename, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRunNotFound):
		response.NotFound(c, 16101, "运行记录不存在")
	case errors.Is(err, service.ErrExportNoEntries):
		response.BadRequest(c, 16102, "运行记录中无落位")
	case errors.Is(err, service.ErrRunCorrupted):
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, 12006, "运行记录数据损坏")
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
