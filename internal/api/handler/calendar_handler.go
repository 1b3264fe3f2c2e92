package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sujith-eag/timetable-builder/internal/dto"
	"github.com/sujith-eag/timetable-builder/internal/service"
	"github.com/sujith-eag/timetable-builder/pkg/response"
)

const icsContentType = "text/calendar; charset=utf-8"

// CalendarHandler 日历导入导出 Handler
type CalendarHandler struct {
	svc service.CalendarService
}

// NewCalendarHandler 创建 CalendarHandler 实例
func NewCalendarHandler(svc service.CalendarService) *CalendarHandler {
	return &CalendarHandler{svc: svc}
}

// ImportAvailability 从 ICS 导入资源不可用节次
// POST /api/v1/availability/import
//
// body: {"resource_id", "calendar" | "url", "periods", "week_start", "weeks"}
// 返回的 blocked 可直接写入问题数据中对应资源的 blocked 字段
func (h *CalendarHandler) ImportAvailability(c *gin.Context) {
	var req dto.ImportAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", err.Error())
		return
	}

	resp, err := h.svc.ImportAvailability(c.Request.Context(), &req)
	if err != nil {
		handleCalendarError(c, err)
		return
	}
	response.OK(c, resp)
}

// ExportResourceCalendar 导出资源课表为 ICS
// GET /api/v1/runs/:id/calendar/:resource_id
func (h *CalendarHandler) ExportResourceCalendar(c *gin.Context) {
	buf, filename, err := h.svc.ExportResourceCalendar(c.Request.Context(), c.Param("id"), c.Param("resource_id"))
	if err != nil {
		handleCalendarError(c, err)
		return
	}
	response.Attachment(c, icsContentType, filename, buf.Bytes())
}

// handleCalendarError 统一日历模块错误映射
func handleCalendarError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCalendarParseFailed):
		response.ErrorWithDetails(c, http.StatusBadRequest, 15006, "ICS 文件解析失败", err.Error())
	case errors.Is(err, service.ErrCalendarEmpty):
		response.ErrorWithDetails(c, http.StatusBadRequest, 15007, "ICS 文件中无有效事件", err.Error())
	case errors.Is(err, service.ErrCalendarFetchFailed):
		response.ErrorWithDetails(c, http.StatusBadGateway, 15001, "ICS URL 获取失败", err.Error())
	case errors.Is(err, service.ErrCalendarInvalidPeriods):
		response.ErrorWithDetails(c, http.StatusBadRequest, 15002, "节次时钟标签不合法", err.Error())
	case errors.Is(err, service.ErrCalendarNoPeriods):
		response.ErrorWithDetails(c, http.StatusBadRequest, 15003, "问题数据缺少节次时钟标签", err.Error())
	case errors.Is(err, service.ErrCalendarResourceNotFound):
		response.NotFound(c, 15004, "运行记录中不存在该资源")
	case errors.Is(err, service.ErrRunNotFound):
		response.NotFound(c, 12005, "运行记录不存在")
	case errors.Is(err, service.ErrRunCorrupted):
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, 12006, "运行记录数据损坏")
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
