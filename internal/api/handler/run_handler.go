package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sujith-eag/timetable-builder/internal/dto"
	"github.com/sujith-eag/timetable-builder/internal/service"
	"github.com/sujith-eag/timetable-builder/pkg/response"
)

// RunHandler 运行记录查询 Handler
type RunHandler struct {
	svc service.TimetableService
}

// NewRunHandler 创建 RunHandler 实例
func NewRunHandler(svc service.TimetableService) *RunHandler {
	return &RunHandler{svc: svc}
}

// ListRuns 分页查询运行记录
// GET /api/v1/runs?kind=&status=&validation=&page=&page_size=
func (h *RunHandler) ListRuns(c *gin.Context) {
	var req dto.RunListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", err.Error())
		return
	}

	list, total, err := h.svc.ListRuns(c.Request.Context(), &req)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GetRun 运行记录详情
// GET /api/v1/runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	resp, err := h.svc.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}
