package service

import (
	"go.uber.org/zap"

	"github.com/sujith-eag/timetable-builder/config"
	"github.com/sujith-eag/timetable-builder/internal/repository"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Timetable TimetableService
	Export    ExportService
	Calendar  CalendarService
}

// NewService 创建 Service 聚合
// cache 为 nil 时不使用求解结果缓存
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	cache ResultCache,
	logger *zap.Logger,
) *Service {
	return &Service{
		Timetable: NewTimetableService(cfg, repo, cache, logger),
		Export:    NewExportService(repo, logger),
		Calendar:  NewCalendarService(&cfg.Calendar, repo, logger),
	}
}
