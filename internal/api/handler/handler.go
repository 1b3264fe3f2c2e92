package handler

import "github.com/sujith-eag/timetable-builder/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth      *AuthHandler
	Timetable *TimetableHandler
	Run       *RunHandler
	Export    *ExportHandler
	Calendar  *CalendarHandler
}

// NewHandler 创建 Handler 聚合
// revoker 为 nil 时 Token 吊销接口不可用
func NewHandler(svc *service.Service, revoker TokenRevoker) *Handler {
	return &Handler{
		Auth:      NewAuthHandler(revoker),
		Timetable: NewTimetableHandler(svc.Timetable),
		Run:       NewRunHandler(svc.Timetable),
		Export:    NewExportHandler(svc.Export),
		Calendar:  NewCalendarHandler(svc.Calendar),
	}
}
