package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sujith-eag/timetable-builder/internal/dto"
	"github.com/sujith-eag/timetable-builder/internal/service"
	pkgerrors "github.com/sujith-eag/timetable-builder/pkg/errors"
	"github.com/sujith-eag/timetable-builder/pkg/response"
)

// TimetableHandler 排课模块 Handler
type TimetableHandler struct {
	svc service.TimetableService
}

// NewTimetableHandler 创建 TimetableHandler 实例
func NewTimetableHandler(svc service.TimetableService) *TimetableHandler {
	return &TimetableHandler{svc: svc}
}

// Solve 求解
// POST /api/v1/timetables/solve
func (h *TimetableHandler) Solve(c *gin.Context) {
	var req dto.SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", err.Error())
		return
	}

	resp, err := h.svc.Solve(c.Request.Context(), &req, CallerSubject(c))
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.Created(c, resp)
}

// Validate 校验外部课表
// POST /api/v1/timetables/validate
func (h *TimetableHandler) Validate(c *gin.Context) {
	var req dto.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", err.Error())
		return
	}

	resp, err := h.svc.Validate(c.Request.Context(), &req, CallerSubject(c))
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.Created(c, resp)
}

// Enrich 校验并富化外部课表（不保存）
// POST /api/v1/timetables/enrich
func (h *TimetableHandler) Enrich(c *gin.Context) {
	var req dto.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", err.Error())
		return
	}

	resp, err := h.svc.Enrich(c.Request.Context(), &req)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// handleTimetableError 统一排课模块错误映射
func handleTimetableError(c *gin.Context, err error) {
	var mie *pkgerrors.MalformedInputError
	var pre *pkgerrors.PreconditionError
	switch {
	case errors.As(err, &mie):
		response.ErrorWithDetails(c, http.StatusBadRequest, 12001, "输入数据不合法", dto.ErrorDetail{
			ErrorType: "MalformedInputError",
			Field:     mie.Field,
			Value:     mie.Value,
			Message:   mie.Message,
		})
	case errors.Is(err, pkgerrors.ErrMalformedInput):
		response.ErrorWithDetails(c, http.StatusBadRequest, 12001, "输入数据不合法", err.Error())
	case errors.As(err, &pre):
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, 12002, "课表未通过校验，无法富化", dto.ErrorDetail{
			ErrorType: "PreconditionError",
			Field:     pre.Op,
			Message:   pre.Message,
		})
	case errors.Is(err, service.ErrUnknownSoftWeightKey):
		response.ErrorWithDetails(c, http.StatusBadRequest, 12003, "未知的软约束权重", err.Error())
	case errors.Is(err, service.ErrInvalidSolveOptions):
		response.ErrorWithDetails(c, http.StatusBadRequest, 12004, "求解参数不合法", err.Error())
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
