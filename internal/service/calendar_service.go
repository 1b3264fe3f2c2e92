package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/sujith-eag/timetable-builder/config"
	"github.com/sujith-eag/timetable-builder/internal/dto"
	"github.com/sujith-eag/timetable-builder/internal/model"
	"github.com/sujith-eag/timetable-builder/internal/repository"
)

// ── 日历模块业务错误 ──

var (
	ErrCalendarParseFailed      = errors.New("ICS 文件解析失败")
	ErrCalendarEmpty            = errors.New("ICS 文件中未发现有效的忙碌事件")
	ErrCalendarFetchFailed      = errors.New("获取远程 ICS 失败")
	ErrCalendarInvalidPeriods   = errors.New("节次时钟标签不合法")
	ErrCalendarNoPeriods        = errors.New("问题数据缺少节次时钟标签，无法生成日历")
	ErrCalendarResourceNotFound = errors.New("运行记录中不存在该资源")
)

// CalendarService 日历业务接口
//
//   - ImportAvailability：ICS 忙碌事件 → 资源不可用节次（供 Resource.Blocked 使用）
//   - ExportResourceCalendar：运行结果中某教室 / 教师 / 学生群体的课表 → ICS（每周重复）
type CalendarService interface {
	ImportAvailability(ctx context.Context, req *dto.ImportAvailabilityRequest) (*dto.ImportAvailabilityResponse, error)
	ExportResourceCalendar(ctx context.Context, runID, resourceID string) (*bytes.Buffer, string, error)
}

type calendarService struct {
	cfg    *config.CalendarConfig
	repo   *repository.Repository
	fetch  func(rawURL string) (io.ReadCloser, error)
	logger *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(cfg *config.CalendarConfig, repo *repository.Repository, logger *zap.Logger) CalendarService {
	return &calendarService{cfg: cfg, repo: repo, fetch: FetchICSContent, logger: logger}
}

// ════════════════════════════════════════════════════════════
// ImportAvailability — ICS 导入不可用时间
// ════════════════════════════════════════════════════════════

func (s *calendarService) ImportAvailability(_ context.Context, req *dto.ImportAvailabilityRequest) (*dto.ImportAvailabilityResponse, error) {
	loc, err := s.location()
	if err != nil {
		return nil, err
	}
	for _, p := range req.Periods {
		if err := checkPeriodLabel(p); err != nil {
			return nil, err
		}
	}

	// 1. 读取 ICS
	var reader io.Reader
	if req.Calendar != "" {
		reader = strings.NewReader(req.Calendar)
	} else {
		rc, err := s.fetch(req.URL)
		if err != nil {
			s.logger.Warn("获取远程 ICS 失败", zap.String("url", req.URL), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrCalendarFetchFailed, err)
		}
		defer rc.Close()
		reader = rc
	}

	// 2. 导入窗口
	window := icsWindow{Weeks: s.cfg.Weeks}
	if req.Weeks > 0 {
		window.Weeks = req.Weeks
	}
	weekStart := s.cfg.WeekStart
	if req.WeekStart != "" {
		weekStart = req.WeekStart
	}
	if weekStart != "" {
		window.Start, err = time.ParseInLocation("2006-01-02", weekStart, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: week_start", ErrCalendarParseFailed)
		}
	}

	// 3. 解析 + 映射到节次
	events, skipped, err := parseBusyEvents(reader, window, loc)
	if err != nil {
		s.logger.Warn("ICS 解析失败", zap.String("resource_id", req.ResourceID), zap.Error(err))
		return nil, ErrCalendarParseFailed
	}
	if len(events) == 0 {
		return nil, ErrCalendarEmpty
	}
	blocked, missed := blockedSlots(events, req.Periods)

	return &dto.ImportAvailabilityResponse{
		ResourceID: req.ResourceID,
		Events:     len(events),
		Skipped:    skipped + missed,
		Blocked:    blocked,
	}, nil
}

// ════════════════════════════════════════════════════════════
// ExportResourceCalendar — 导出资源课表为 ICS
// ════════════════════════════════════════════════════════════
//
// 每个落位生成一个 VEVENT：DTSTART 为参考周对应星期的首节开始时间，
// DTEND 为末节结束时间，RRULE 按配置的周数每周重复。

func (s *calendarService) ExportResourceCalendar(ctx context.Context, runID, resourceID string) (*bytes.Buffer, string, error) {
	loc, err := s.location()
	if err != nil {
		return nil, "", err
	}

	run, err := s.repo.Run.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			return nil, "", ErrRunNotFound
		}
		s.logger.Error("查询运行记录失败", zap.Error(err))
		return nil, "", err
	}
	in, err := decodeProblem(run)
	if err != nil {
		return nil, "", err
	}
	name, ok := resourceName(in, resourceID)
	if !ok {
		return nil, "", ErrCalendarResourceNotFound
	}
	clock := periodClock(in)

	weekStart, err := s.weekStart(run.CreatedAt, loc)
	if err != nil {
		return nil, "", err
	}
	weeks := s.cfg.Weeks
	if weeks < 1 {
		weeks = 1
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//timetable-builder//" + name + "//CN")

	for _, e := range run.Entries {
		if e.RoomID != resourceID && e.InstructorID != resourceID && !containsID(e.GroupIDs, resourceID) {
			continue
		}
		if len(e.Periods) == 0 {
			continue
		}
		first, okFirst := clock[e.Periods[0]]
		last, okLast := clock[e.Periods[len(e.Periods)-1]]
		if !okFirst || !okLast {
			return nil, "", ErrCalendarNoPeriods
		}
		date := weekStart.AddDate(0, 0, e.Day-1)
		start, err := atClock(date, first.Start, loc)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrCalendarInvalidPeriods, err)
		}
		end, err := atClock(date, last.End, loc)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrCalendarInvalidPeriods, err)
		}

		event := cal.AddEvent(fmt.Sprintf("%s-%s@timetable-builder", run.RunID, e.SessionID))
		event.SetDtStampTime(run.CreatedAt)
		event.SetStartAt(start)
		event.SetEndAt(end)
		event.SetSummary(strings.TrimSpace(e.CourseID + " " + e.Title))
		event.SetLocation(e.RoomID)
		event.SetDescription(fmt.Sprintf("教师: %s; 学生群体: %s", e.InstructorID, strings.Join(e.GroupIDs, ", ")))
		event.AddRrule(fmt.Sprintf("FREQ=WEEKLY;COUNT=%d", weeks))
	}

	buf := bytes.NewBufferString(cal.Serialize())
	filename := fmt.Sprintf("课表_%s_%s.ics", resourceID, shortID(run.RunID))
	return buf, filename, nil
}

// ── 辅助函数 ──

func (s *calendarService) location() (*time.Location, error) {
	tz := s.cfg.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("calendar.time_zone 无效: %w", err)
	}
	return loc, nil
}

// weekStart 参考周的周一：优先配置，否则取运行创建时间所在周
func (s *calendarService) weekStart(createdAt time.Time, loc *time.Location) (time.Time, error) {
	if s.cfg.WeekStart != "" {
		return time.ParseInLocation("2006-01-02", s.cfg.WeekStart, loc)
	}
	t := createdAt.In(loc)
	monday := t.AddDate(0, 0, -(goWeekdayToISO(t.Weekday()) - 1))
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, loc), nil
}

func atClock(date time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}

func checkPeriodLabel(p model.PeriodLabel) error {
	start, err := time.Parse("15:04", p.Start)
	if err != nil {
		return fmt.Errorf("%w: 第 %d 节开始时间 %q", ErrCalendarInvalidPeriods, p.Index, p.Start)
	}
	end, err := time.Parse("15:04", p.End)
	if err != nil {
		return fmt.Errorf("%w: 第 %d 节结束时间 %q", ErrCalendarInvalidPeriods, p.Index, p.End)
	}
	if p.Index < 1 || !end.After(start) {
		return fmt.Errorf("%w: 第 %d 节", ErrCalendarInvalidPeriods, p.Index)
	}
	return nil
}

func resourceName(in model.Input, id string) (string, bool) {
	for _, r := range in.Resources {
		if r.ID == id {
			if r.Name != "" {
				return r.Name, true
			}
			return r.ID, true
		}
	}
	for _, g := range in.Groups {
		if g.ID == id {
			if g.Name != "" {
				return g.Name, true
			}
			return g.ID, true
		}
	}
	return "", false
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
