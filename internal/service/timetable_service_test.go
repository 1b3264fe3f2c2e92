package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/sujith-eag/timetable-builder/config"
	"github.com/sujith-eag/timetable-builder/internal/constraint"
	"github.com/sujith-eag/timetable-builder/internal/dto"
	"github.com/sujith-eag/timetable-builder/internal/model"
	"github.com/sujith-eag/timetable-builder/internal/repository"
	pkgerrors "github.com/sujith-eag/timetable-builder/pkg/errors"
)

// ── 测试辅助 ──

func testConfig() *config.Config {
	return &config.Config{
		Solver: config.SolverConfig{
			MaxBacktracks:  1000,
			WallClockLimit: 10 * time.Second,
			Improve:        true,
			Attempts:       1,
			Strategy:       "best",
		},
		Cache:    config.CacheConfig{Enabled: true, TTL: time.Hour},
		Calendar: config.CalendarConfig{TimeZone: "UTC", Weeks: 2},
	}
}

// testProblem 2 天 × 3 节，2 间教室，2 位教师，3 个排课单元
func testProblem() model.Input {
	var ts []model.TimeSlot
	for d := 1; d <= 2; d++ {
		for p := 1; p <= 3; p++ {
			ts = append(ts, model.TimeSlot{Day: d, Period: p})
		}
	}
	return model.Input{
		TimeSlots: ts,
		Periods: []model.PeriodLabel{
			{Index: 1, Start: "08:00", End: "08:50"},
			{Index: 2, Start: "09:00", End: "09:50"},
			{Index: 3, Start: "10:00", End: "10:50"},
		},
		Resources: []model.Resource{
			{ID: "r1", Name: "A101", Kind: model.ResourceRoom, Capacity: 40},
			{ID: "r2", Name: "A102", Kind: model.ResourceRoom, Capacity: 30},
			{ID: "i1", Name: "Rao", Kind: model.ResourceInstructor},
			{ID: "i2", Name: "Iyer", Kind: model.ResourceInstructor},
		},
		Groups: []model.StudentGroup{
			{ID: "g1", Name: "CSE-A", Size: 30},
			{ID: "g2", Name: "CSE-B", Size: 25},
		},
		Sessions: []model.Session{
			{ID: "s1", CourseID: "c1", Title: "Algorithms", Duration: 1, InstructorIDs: []string{"i1"}, GroupIDs: []string{"g1"}},
			{ID: "s2", CourseID: "c2", Title: "Networks Lab", Duration: 2, InstructorIDs: []string{"i2"}, GroupIDs: []string{"g1"}},
			{ID: "s3", CourseID: "c3", Title: "Databases", Duration: 1, InstructorIDs: []string{"i1"}, GroupIDs: []string{"g2"}},
		},
	}
}

// pigeonholeProblem 3 个排课单元 / 2 个节次 / 1 间教室，必然无解
func pigeonholeProblem() model.Input {
	return model.Input{
		TimeSlots: []model.TimeSlot{{Day: 1, Period: 1}, {Day: 1, Period: 2}},
		Resources: []model.Resource{
			{ID: "r1", Kind: model.ResourceRoom},
			{ID: "i1", Kind: model.ResourceInstructor},
			{ID: "i2", Kind: model.ResourceInstructor},
			{ID: "i3", Kind: model.ResourceInstructor},
		},
		Sessions: []model.Session{
			{ID: "s1", CourseID: "c1", Duration: 1, InstructorIDs: []string{"i1"}},
			{ID: "s2", CourseID: "c2", Duration: 1, InstructorIDs: []string{"i2"}},
			{ID: "s3", CourseID: "c3", Duration: 1, InstructorIDs: []string{"i3"}},
		},
	}
}

// validPlacements testProblem 的一个无冲突课表
func validPlacements() []model.Placement {
	return []model.Placement{
		{SessionID: "s1", Start: model.TimeSlot{Day: 1, Period: 1}, RoomID: "r1", InstructorID: "i1"},
		{SessionID: "s2", Start: model.TimeSlot{Day: 2, Period: 1}, RoomID: "r1", InstructorID: "i2"},
		{SessionID: "s3", Start: model.TimeSlot{Day: 1, Period: 2}, RoomID: "r2", InstructorID: "i1"},
	}
}

func setupTestTimetableService() (*timetableService, *mockRunRepo, *mockCache) {
	runRepo := newMockRunRepo()
	cache := newMockCache()
	repo := &repository.Repository{Run: runRepo}
	svc := NewTimetableService(testConfig(), repo, cache, zap.NewNop()).(*timetableService)
	return svc, runRepo, cache
}

func intPtr(v int) *int { return &v }

// ════════════════════════════════════════════════════════════
// Solve
// ════════════════════════════════════════════════════════════

func TestTimetableService_Solve_Complete(t *testing.T) {
	svc, runRepo, cache := setupTestTimetableService()

	resp, err := svc.Solve(context.Background(), &dto.SolveRequest{Problem: testProblem()}, "registrar")
	if err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	if resp.Status != "complete" || resp.Validation != "valid" {
		t.Fatalf("期望 complete/valid，实际 %s/%s", resp.Status, resp.Validation)
	}
	if resp.Placed != 3 || len(resp.Entries) != 3 {
		t.Fatalf("期望 3 个落位，实际 placed=%d entries=%d", resp.Placed, len(resp.Entries))
	}
	if len(resp.Violations) != 0 {
		t.Errorf("完整课表不应有违反: %+v", resp.Violations)
	}
	if resp.Enrichment == nil || resp.Enrichment.Summary.Sessions != 3 {
		t.Errorf("期望附带富化结果，实际: %+v", resp.Enrichment)
	}
	if resp.CreatedBy != "registrar" || resp.Cached {
		t.Errorf("CreatedBy/Cached 不符: %q %v", resp.CreatedBy, resp.Cached)
	}
	for _, e := range resp.Entries {
		if e.StartTime == "" || e.EndTime == "" {
			t.Errorf("落位 %s 缺少时钟时间", e.SessionID)
		}
		if e.SessionID == "s2" && len(e.Periods) != 2 {
			t.Errorf("s2 应占用 2 节，实际 %v", e.Periods)
		}
	}
	if runRepo.count() != 1 {
		t.Errorf("期望保存 1 条运行记录，实际 %d", runRepo.count())
	}
	if cache.sets != 1 {
		t.Errorf("期望写入缓存 1 次，实际 %d", cache.sets)
	}
}

func TestTimetableService_Solve_CacheHit(t *testing.T) {
	svc, runRepo, _ := setupTestTimetableService()
	ctx := context.Background()

	first, err := svc.Solve(ctx, &dto.SolveRequest{Problem: testProblem()}, "registrar")
	if err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	second, err := svc.Solve(ctx, &dto.SolveRequest{Problem: testProblem()}, "registrar")
	if err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}

	if !second.Cached {
		t.Fatal("期望第二次命中缓存")
	}
	if second.RunID != first.RunID {
		t.Errorf("缓存结果 RunID 不一致: %s vs %s", second.RunID, first.RunID)
	}
	second.Cached = false
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("缓存结果与原结果不一致 (-want +got):\n%s", diff)
	}
	if runRepo.count() != 1 {
		t.Errorf("命中缓存不应新增运行记录，实际 %d", runRepo.count())
	}
}

func TestTimetableService_Solve_FingerprintIncludesOptions(t *testing.T) {
	svc, runRepo, _ := setupTestTimetableService()
	ctx := context.Background()

	if _, err := svc.Solve(ctx, &dto.SolveRequest{Problem: testProblem()}, ""); err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	seed := int64(7)
	resp, err := svc.Solve(ctx, &dto.SolveRequest{Problem: testProblem(), Options: &dto.SolveOptions{RandomSeed: &seed}}, "")
	if err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	if resp.Cached {
		t.Error("不同种子不应命中缓存")
	}
	if resp.Seed != 7 {
		t.Errorf("期望 seed=7，实际 %d", resp.Seed)
	}
	if runRepo.count() != 2 {
		t.Errorf("期望 2 条运行记录，实际 %d", runRepo.count())
	}
}

func TestTimetableService_Solve_NoCache(t *testing.T) {
	svc, runRepo, cache := setupTestTimetableService()
	ctx := context.Background()
	req := &dto.SolveRequest{Problem: testProblem(), Options: &dto.SolveOptions{NoCache: true}}

	for i := 0; i < 2; i++ {
		resp, err := svc.Solve(ctx, req, "")
		if err != nil {
			t.Fatalf("Solve 失败: %v", err)
		}
		if resp.Cached {
			t.Fatal("no_cache 时不应命中缓存")
		}
	}
	if cache.gets != 0 || cache.sets != 0 {
		t.Errorf("no_cache 时不应访问缓存: gets=%d sets=%d", cache.gets, cache.sets)
	}
	if runRepo.count() != 2 {
		t.Errorf("期望 2 条运行记录，实际 %d", runRepo.count())
	}
}

func TestTimetableService_Solve_CacheFailureIgnored(t *testing.T) {
	svc, _, cache := setupTestTimetableService()
	cache.failGet = true

	resp, err := svc.Solve(context.Background(), &dto.SolveRequest{Problem: testProblem()}, "")
	if err != nil {
		t.Fatalf("缓存故障不应导致求解失败: %v", err)
	}
	if resp.Status != "complete" {
		t.Errorf("期望 complete，实际 %s", resp.Status)
	}
}

func TestTimetableService_Solve_Infeasible(t *testing.T) {
	svc, runRepo, cache := setupTestTimetableService()

	resp, err := svc.Solve(context.Background(), &dto.SolveRequest{Problem: pigeonholeProblem()}, "")
	if err != nil {
		t.Fatalf("无解不应返回错误: %v", err)
	}
	if resp.Status != "infeasible" || resp.Validation != "invalid" {
		t.Fatalf("期望 infeasible/invalid，实际 %s/%s", resp.Status, resp.Validation)
	}
	if resp.Placed != 2 || len(resp.Unplaced) != 1 {
		t.Fatalf("期望保留 2 个落位的部分解与 1 个未落位诊断，实际 placed=%d unplaced=%d", resp.Placed, len(resp.Unplaced))
	}
	if len(resp.Unplaced[0].Conflicts) == 0 || len(resp.Unplaced[0].BlockedBy) == 0 {
		t.Errorf("未落位诊断缺少冲突信息: %+v", resp.Unplaced[0])
	}
	if len(resp.Violations) == 0 || resp.Violations[len(resp.Violations)-1].ConstraintID != "Completeness" {
		t.Errorf("部分解应报告 Completeness 违反: %+v", resp.Violations)
	}
	if resp.Enrichment != nil {
		t.Error("不合法课表不应富化")
	}
	if runRepo.count() != 1 {
		t.Errorf("无解也应保存运行记录")
	}
	if cache.sets != 1 {
		t.Errorf("无解结果应写入缓存，实际 sets=%d", cache.sets)
	}
}

func TestTimetableService_Solve_TimeoutNotCached(t *testing.T) {
	svc, _, cache := setupTestTimetableService()

	req := &dto.SolveRequest{Problem: pigeonholeProblem(), Options: &dto.SolveOptions{MaxBacktracks: intPtr(0)}}
	resp, err := svc.Solve(context.Background(), req, "")
	if err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	if resp.Status != "timeout" {
		t.Fatalf("期望 timeout，实际 %s", resp.Status)
	}
	if cache.sets != 0 {
		t.Errorf("超时结果不应写入缓存，实际 sets=%d", cache.sets)
	}
}

func TestTimetableService_Solve_Portfolio(t *testing.T) {
	svc, _, _ := setupTestTimetableService()

	req := &dto.SolveRequest{Problem: testProblem(), Options: &dto.SolveOptions{Attempts: 3, Strategy: "first"}}
	resp, err := svc.Solve(context.Background(), req, "")
	if err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	if resp.Status != "complete" || resp.Validation != "valid" {
		t.Errorf("期望 complete/valid，实际 %s/%s", resp.Status, resp.Validation)
	}
}

func TestTimetableService_Solve_MalformedInput(t *testing.T) {
	svc, runRepo, _ := setupTestTimetableService()

	problem := testProblem()
	problem.Sessions[0].InstructorIDs = []string{"ghost"}
	_, err := svc.Solve(context.Background(), &dto.SolveRequest{Problem: problem}, "")
	if !errors.Is(err, pkgerrors.ErrMalformedInput) {
		t.Fatalf("期望 ErrMalformedInput，实际: %v", err)
	}
	var mie *pkgerrors.MalformedInputError
	if !errors.As(err, &mie) || mie.Value != "ghost" {
		t.Errorf("错误详情应指向 ghost: %+v", mie)
	}
	if runRepo.count() != 0 {
		t.Error("非法输入不应保存运行记录")
	}
}

func TestTimetableService_Solve_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts *dto.SolveOptions
		want error
	}{
		{"未知软约束", &dto.SolveOptions{SoftWeights: map[string]float64{"Nope": 1}}, ErrUnknownSoftWeightKey},
		{"负权重", &dto.SolveOptions{SoftWeights: map[string]float64{constraint.PreferredRoomID: -1}}, ErrInvalidSolveOptions},
		{"未知策略", &dto.SolveOptions{Attempts: 2, Strategy: "fastest"}, ErrInvalidSolveOptions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := setupTestTimetableService()
			_, err := svc.Solve(context.Background(), &dto.SolveRequest{Problem: testProblem(), Options: tt.opts}, "")
			if !errors.Is(err, tt.want) {
				t.Errorf("期望 %v，实际: %v", tt.want, err)
			}
		})
	}
}

func TestTimetableService_Solve_PersistFailure(t *testing.T) {
	svc, runRepo, cache := setupTestTimetableService()
	runRepo.failErr = errors.New("db down")

	if _, err := svc.Solve(context.Background(), &dto.SolveRequest{Problem: testProblem()}, ""); err == nil {
		t.Fatal("保存失败应返回错误")
	}
	if cache.sets != 0 {
		t.Error("保存失败时不应写缓存")
	}
}

// ════════════════════════════════════════════════════════════
// Validate / Enrich
// ════════════════════════════════════════════════════════════

func TestTimetableService_Validate_InstructorOverlap(t *testing.T) {
	svc, runRepo, _ := setupTestTimetableService()

	placements := validPlacements()
	placements[2].Start = model.TimeSlot{Day: 1, Period: 1} // s3 与 s1 同一教师同一节次
	resp, err := svc.Validate(context.Background(), &dto.ScheduleRequest{Problem: testProblem(), Placements: placements}, "auditor")
	if err != nil {
		t.Fatalf("Validate 失败: %v", err)
	}
	if resp.Kind != "validate" || resp.Validation != "invalid" {
		t.Fatalf("期望 validate/invalid，实际 %s/%s", resp.Kind, resp.Validation)
	}
	want := []model.Violation{{
		ConstraintID: constraint.InstructorOverlapID,
		SessionIDs:   []string{"s1", "s3"},
		Slot:         &model.TimeSlot{Day: 1, Period: 1},
	}}
	if diff := cmp.Diff(want, resp.Violations, ignoreMessage()); diff != "" {
		t.Errorf("违反列表不符 (-want +got):\n%s", diff)
	}
	if resp.Enrichment != nil {
		t.Error("不合法课表不应富化")
	}
	if runRepo.count() != 1 {
		t.Errorf("期望保存 1 条校验记录")
	}
}

func TestTimetableService_Validate_Valid(t *testing.T) {
	svc, _, _ := setupTestTimetableService()

	resp, err := svc.Validate(context.Background(), &dto.ScheduleRequest{Problem: testProblem(), Placements: validPlacements()}, "")
	if err != nil {
		t.Fatalf("Validate 失败: %v", err)
	}
	if resp.Validation != "valid" || len(resp.Violations) != 0 {
		t.Fatalf("期望合法，实际 %s %+v", resp.Validation, resp.Violations)
	}
	if resp.Enrichment == nil {
		t.Error("合法课表应附带富化结果")
	}
	if resp.Status != "" {
		t.Errorf("校验运行不应有求解状态，实际 %q", resp.Status)
	}
}

func TestTimetableService_Validate_UnknownSession(t *testing.T) {
	svc, _, _ := setupTestTimetableService()

	placements := append(validPlacements(), model.Placement{SessionID: "s9", Start: model.TimeSlot{Day: 1, Period: 1}, RoomID: "r1", InstructorID: "i1"})
	_, err := svc.Validate(context.Background(), &dto.ScheduleRequest{Problem: testProblem(), Placements: placements}, "")
	if !errors.Is(err, pkgerrors.ErrMalformedInput) {
		t.Fatalf("期望 ErrMalformedInput，实际: %v", err)
	}
}

func TestTimetableService_Enrich(t *testing.T) {
	svc, runRepo, _ := setupTestTimetableService()

	resp, err := svc.Enrich(context.Background(), &dto.ScheduleRequest{Problem: testProblem(), Placements: validPlacements()})
	if err != nil {
		t.Fatalf("Enrich 失败: %v", err)
	}
	if resp.Validation != "valid" || resp.Enrichment == nil {
		t.Fatalf("期望合法并附带富化结果: %+v", resp)
	}
	s := resp.Enrichment.Summary
	if s.Sessions != 3 || s.SlotsUsed != 4 || s.DaysUsed != 2 {
		t.Errorf("概览不符: %+v", s)
	}
	if runRepo.count() != 0 {
		t.Error("富化不应保存运行记录")
	}
}

func TestTimetableService_Enrich_InvalidPrecondition(t *testing.T) {
	svc, _, _ := setupTestTimetableService()

	_, err := svc.Enrich(context.Background(), &dto.ScheduleRequest{Problem: testProblem(), Placements: validPlacements()[:2]})
	if !errors.Is(err, pkgerrors.ErrPrecondition) {
		t.Fatalf("不完整课表富化应返回 ErrPrecondition，实际: %v", err)
	}
}

// ════════════════════════════════════════════════════════════
// 运行记录查询
// ════════════════════════════════════════════════════════════

func TestTimetableService_GetRun(t *testing.T) {
	svc, _, _ := setupTestTimetableService()
	ctx := context.Background()

	solved, err := svc.Solve(ctx, &dto.SolveRequest{Problem: testProblem()}, "registrar")
	if err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	got, err := svc.GetRun(ctx, solved.RunID)
	if err != nil {
		t.Fatalf("GetRun 失败: %v", err)
	}
	if diff := cmp.Diff(solved, got); diff != "" {
		t.Errorf("查询结果与求解结果不一致 (-want +got):\n%s", diff)
	}

	if _, err := svc.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("期望 ErrRunNotFound，实际: %v", err)
	}
}

func TestTimetableService_ListRuns(t *testing.T) {
	svc, _, _ := setupTestTimetableService()
	ctx := context.Background()

	if _, err := svc.Solve(ctx, &dto.SolveRequest{Problem: testProblem()}, ""); err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	if _, err := svc.Validate(ctx, &dto.ScheduleRequest{Problem: testProblem(), Placements: validPlacements()}, ""); err != nil {
		t.Fatalf("Validate 失败: %v", err)
	}

	list, total, err := svc.ListRuns(ctx, &dto.RunListRequest{Kind: "validate"})
	if err != nil {
		t.Fatalf("ListRuns 失败: %v", err)
	}
	if total != 1 || len(list) != 1 || list[0].Kind != "validate" {
		t.Fatalf("按类型筛选失败: total=%d list=%+v", total, list)
	}

	all, total, err := svc.ListRuns(ctx, &dto.RunListRequest{PaginationRequest: dto.PaginationRequest{Page: 1, PageSize: 1}})
	if err != nil {
		t.Fatalf("ListRuns 失败: %v", err)
	}
	if total != 2 || len(all) != 1 {
		t.Errorf("分页失败: total=%d len=%d", total, len(all))
	}
}

func ignoreMessage() cmp.Option {
	return cmp.FilterPath(func(p cmp.Path) bool {
		return p.Last().String() == ".Message"
	}, cmp.Ignore())
}
