package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/sujith-eag/timetable-builder/internal/model"
	"github.com/sujith-eag/timetable-builder/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoEntries    = errors.New("运行记录中无落位")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
//   - Excel 格式："概览" Sheet + 教室 / 教师 / 学生群体三个视图 Sheet
//   - 视图 Sheet 以 (资源, 节次) 为行、星期为列
type ExportService interface {
	// ExportRun 导出运行结果为 Excel
	ExportRun(ctx context.Context, runID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

var dayNames = map[int]string{1: "周一", 2: "周二", 3: "周三", 4: "周四", 5: "周五", 6: "周六", 7: "周日"}

// gridView 视图 Sheet 定义：name 为 Sheet 名，keys 给出一个落位归属的资源
type gridView struct {
	name string
	ids  []string
	keys func(e model.RunEntry) []string
}

// ═══════════════════════════════════════════════════════════
// ExportRun — 导出运行结果为 Excel
// ═══════════════════════════════════════════════════════════
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportRun(ctx context.Context, runID string) (*bytes.Buffer, string, error) {
	// 1. 查询运行记录
	run, err := s.repo.Run.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			return nil, "", ErrRunNotFound
		}
		s.logger.Error("查询运行记录失败", zap.Error(err))
		return nil, "", err
	}
	if len(run.Entries) == 0 {
		return nil, "", ErrExportNoEntries
	}
	in, err := decodeProblem(run)
	if err != nil {
		return nil, "", err
	}
	clock := periodClock(in)

	// 2. 时间段全集：星期列 + 节次行
	daySet, periodSet := make(map[int]bool), make(map[int]bool)
	for _, ts := range in.TimeSlots {
		daySet[ts.Day] = true
		periodSet[ts.Period] = true
	}
	days, periods := sortedKeys(daySet), sortedKeys(periodSet)

	// 3. 单元格索引: "视图|资源|星期|节次" → 文本
	cells := make(map[string][]string)
	views := []gridView{
		{name: "教室", ids: resourceIDs(in, model.ResourceRoom), keys: func(e model.RunEntry) []string { return []string{e.RoomID} }},
		{name: "教师", ids: resourceIDs(in, model.ResourceInstructor), keys: func(e model.RunEntry) []string { return []string{e.InstructorID} }},
		{name: "学生群体", ids: groupIDs(in), keys: func(e model.RunEntry) []string { return e.GroupIDs }},
	}
	for _, e := range run.Entries {
		text := entryText(e)
		for _, v := range views {
			for _, id := range v.keys(e) {
				for _, p := range e.Periods {
					key := fmt.Sprintf("%s|%s|%d|%d", v.name, id, e.Day, p)
					cells[key] = append(cells[key], text)
				}
			}
		}
	}

	// 4. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	wrapStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})

	idx, _ := f.NewSheet("概览")
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")
	s.writeSummary(f, run, headerStyle)

	for _, v := range views {
		if len(v.ids) == 0 {
			continue
		}
		f.NewSheet(v.name)
		f.SetColWidth(v.name, "A", "A", 16)
		f.SetColWidth(v.name, "B", "B", 8)
		f.SetColWidth(v.name, "C", "C", 14)
		for i := range days {
			col := colName(3 + i)
			f.SetColWidth(v.name, col, col, 26)
		}

		// 表头
		f.SetCellValue(v.name, "A1", "资源")
		f.SetCellValue(v.name, "B1", "节次")
		f.SetCellValue(v.name, "C1", "时间")
		for i, d := range days {
			f.SetCellValue(v.name, cell(colName(3+i), 1), dayName(d))
		}
		f.SetCellStyle(v.name, "A1", cell(colName(2+len(days)), 1), headerStyle)

		// 数据行
		row := 2
		for _, id := range v.ids {
			for _, p := range periods {
				f.SetCellValue(v.name, cell("A", row), id)
				f.SetCellValue(v.name, cell("B", row), p)
				if label, ok := clock[p]; ok {
					f.SetCellValue(v.name, cell("C", row), fmt.Sprintf("%s-%s", label.Start, label.End))
				}
				for i, d := range days {
					text := "-"
					if items, ok := cells[fmt.Sprintf("%s|%s|%d|%d", v.name, id, d, p)]; ok {
						text = strings.Join(items, "\n")
					}
					f.SetCellValue(v.name, cell(colName(3+i), row), text)
				}
				row++
			}
		}
		f.SetCellStyle(v.name, "D2", cell(colName(2+len(days)), row-1), wrapStyle)
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("课表_%s.xlsx", shortID(run.RunID))
	return buf, filename, nil
}

// writeSummary 概览 Sheet：运行统计 + 硬约束违反列表
func (s *exportService) writeSummary(f *excelize.File, run *model.ScheduleRun, headerStyle int) {
	const sheet = "概览"
	f.SetColWidth(sheet, "A", "A", 18)
	f.SetColWidth(sheet, "B", "B", 40)
	f.SetColWidth(sheet, "C", "C", 40)

	rows := [][2]interface{}{
		{"运行 ID", run.RunID},
		{"类型", string(run.Kind)},
		{"求解状态", run.Status},
		{"校验状态", run.Validation},
		{"排课单元", run.Sessions},
		{"已落位", run.Placed},
		{"软约束惩罚", run.Penalty},
		{"回溯次数", run.Backtracks},
		{"耗时 (ms)", run.ElapsedMS},
		{"说明", run.Reason},
	}
	for i, r := range rows {
		f.SetCellValue(sheet, cell("A", i+1), r[0])
		f.SetCellValue(sheet, cell("B", i+1), r[1])
	}

	row := len(rows) + 2
	f.SetCellValue(sheet, cell("A", row), "违反约束")
	f.SetCellValue(sheet, cell("B", row), "排课单元")
	f.SetCellValue(sheet, cell("C", row), "说明")
	f.SetCellStyle(sheet, cell("A", row), cell("C", row), headerStyle)
	for _, v := range run.Violations {
		row++
		f.SetCellValue(sheet, cell("A", row), v.ConstraintID)
		f.SetCellValue(sheet, cell("B", row), strings.Join(v.SessionIDs, ", "))
		f.SetCellValue(sheet, cell("C", row), v.Message)
	}
}

// ── 辅助函数 ──

func entryText(e model.RunEntry) string {
	name := e.CourseID
	if e.Title != "" {
		name += " " + e.Title
	}
	return fmt.Sprintf("%s @%s / %s", name, e.RoomID, e.InstructorID)
}

func resourceIDs(in model.Input, kind model.ResourceKind) []string {
	var ids []string
	for _, r := range in.Resources {
		if r.Kind == kind {
			ids = append(ids, r.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func groupIDs(in model.Input) []string {
	ids := make([]string, 0, len(in.Groups))
	for _, g := range in.Groups {
		ids = append(ids, g.ID)
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func dayName(d int) string {
	if n, ok := dayNames[d]; ok {
		return n
	}
	return fmt.Sprintf("第%d天", d)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
