package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/sujith-eag/timetable-builder/internal/constraint"
	"github.com/sujith-eag/timetable-builder/internal/model"
)

// ── 测试辅助 ──

func slots(days, periods int) []model.TimeSlot {
	var out []model.TimeSlot
	for d := 1; d <= days; d++ {
		for p := 1; p <= periods; p++ {
			out = append(out, model.TimeSlot{Day: d, Period: p})
		}
	}
	return out
}

func mustInstance(t *testing.T, in model.Input) *model.Instance {
	t.Helper()
	inst, err := model.NewInstance(in)
	if err != nil {
		t.Fatalf("构建实例失败: %v", err)
	}
	return inst
}

// feasibleInput 2 天 × 3 节，2 间教室，3 位教师，6 个排课单元
func feasibleInput() model.Input {
	return model.Input{
		TimeSlots: slots(2, 3),
		Resources: []model.Resource{
			{ID: "r1", Kind: model.ResourceRoom, Capacity: 60},
			{ID: "r2", Kind: model.ResourceRoom, Capacity: 60, Capabilities: []string{"lab"}},
			{ID: "i1", Kind: model.ResourceInstructor},
			{ID: "i2", Kind: model.ResourceInstructor},
			{ID: "i3", Kind: model.ResourceInstructor},
		},
		Groups: []model.StudentGroup{
			{ID: "g1", Size: 30},
			{ID: "g2", Size: 30},
		},
		Sessions: []model.Session{
			{ID: "s1", CourseID: "c1", Duration: 1, InstructorIDs: []string{"i1"}, GroupIDs: []string{"g1"}, PreferredRoomIDs: []string{"r2"}},
			{ID: "s2", CourseID: "c1", Duration: 1, InstructorIDs: []string{"i1"}, GroupIDs: []string{"g1"}},
			{ID: "s3", CourseID: "c2", Duration: 2, InstructorIDs: []string{"i2"}, GroupIDs: []string{"g2"}, RequiredCapabilities: []string{"lab"}},
			{ID: "s4", CourseID: "c3", Duration: 1, InstructorIDs: []string{"i3"}, GroupIDs: []string{"g1", "g2"}},
			{ID: "s5", CourseID: "c4", Duration: 1, InstructorIDs: []string{"i1", "i2"}, GroupIDs: []string{"g2"}},
			{ID: "s6", CourseID: "c5", Duration: 1, InstructorIDs: []string{"i3"}, GroupIDs: []string{"g1"}, FixedDay: 2, FixedPeriod: 3},
		},
	}
}

// pigeonholeInput 3 个排课单元、2 个时间段、1 间教室
func pigeonholeInput() model.Input {
	return model.Input{
		TimeSlots: slots(1, 2),
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

func unlimited() Config {
	return Config{MaxBacktracks: -1, Improve: true}
}

func assertSound(t *testing.T, inst *model.Instance, reg *constraint.Registry, s *model.Schedule) {
	t.Helper()
	if !s.Complete() {
		t.Fatalf("课表不完整: %d/%d", len(s.Placements()), len(inst.Sessions()))
	}
	a := s.Assignment()
	for _, h := range reg.HardConstraints() {
		if vs := h.Evaluate(inst, a); len(vs) != 0 {
			t.Errorf("硬约束 %s 被违反: %+v", h.ID(), vs)
		}
	}
}

// recordingTracer 检查撤销严格按放置的逆序发生
type recordingTracer struct {
	t       *testing.T
	open    []model.Placement
	places  int
	undos   int
	maxOpen int
}

func (r *recordingTracer) OnPlace(depth int, p model.Placement) {
	r.places++
	r.open = append(r.open, p)
	if depth != len(r.open) {
		r.t.Errorf("放置深度 %d 与未撤销放置数 %d 不一致", depth, len(r.open))
	}
	if len(r.open) > r.maxOpen {
		r.maxOpen = len(r.open)
	}
}

func (r *recordingTracer) OnUndo(depth int, p model.Placement) {
	r.undos++
	if len(r.open) == 0 {
		r.t.Fatalf("撤销 %s 时没有未撤销的放置", p.SessionID)
	}
	last := r.open[len(r.open)-1]
	if last != p {
		r.t.Errorf("撤销顺序错误: 期望 %+v，实际 %+v", last, p)
	}
	if depth != len(r.open) {
		r.t.Errorf("撤销深度 %d 与未撤销放置数 %d 不一致", depth, len(r.open))
	}
	r.open = r.open[:len(r.open)-1]
}

// ════════════════════════════════════════════════════════════
// Solve 测试
// ════════════════════════════════════════════════════════════

func TestSolve_Soundness(t *testing.T) {
	inst := mustInstance(t, feasibleInput())
	reg := constraint.DefaultRegistry()

	res, err := Solve(context.Background(), inst, reg, unlimited())
	if err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	if res.Status != StatusComplete {
		t.Fatalf("期望 complete，实际 %s（%s）", res.Status, res.Reason)
	}
	assertSound(t, inst, reg, res.Schedule)

	s6, _ := res.Schedule.Placement("s6")
	if s6.Start != (model.TimeSlot{Day: 2, Period: 3}) {
		t.Errorf("s6 应排在固定时间 D2P3，实际 %s", s6.Start)
	}
	s3, _ := res.Schedule.Placement("s3")
	if s3.RoomID != "r2" {
		t.Errorf("s3 需要 lab，应排在 r2，实际 %s", s3.RoomID)
	}
}

func TestSolve_SoundnessAcrossSeeds(t *testing.T) {
	inst := mustInstance(t, feasibleInput())
	reg := constraint.DefaultRegistry()
	for seed := int64(0); seed < 5; seed++ {
		cfg := unlimited()
		cfg.RandomSeed = seed
		res, err := Solve(context.Background(), inst, reg, cfg)
		if err != nil {
			t.Fatalf("seed %d: Solve 失败: %v", seed, err)
		}
		if res.Status != StatusComplete {
			t.Fatalf("seed %d: 期望 complete，实际 %s", seed, res.Status)
		}
		assertSound(t, inst, reg, res.Schedule)
		if res.Stats.Seed != seed {
			t.Errorf("Stats.Seed 应为 %d，实际 %d", seed, res.Stats.Seed)
		}
	}
}

type snapshot struct {
	Status     Status
	Placements []model.Placement
	Penalty    float64
	Reason     string
	Unplaced   []Unplaced
	Stats      Stats
}

func snap(r *Result) snapshot {
	s := snapshot{Status: r.Status, Placements: r.Best().Placements(), Penalty: r.Penalty, Reason: r.Reason, Unplaced: r.Unplaced, Stats: r.Stats}
	s.Stats.Elapsed = 0
	return s
}

func TestSolve_Deterministic(t *testing.T) {
	for _, in := range []model.Input{feasibleInput(), pigeonholeInput()} {
		for _, seed := range []int64{0, 42} {
			cfg := unlimited()
			cfg.RandomSeed = seed

			first, err := Solve(context.Background(), mustInstance(t, in), constraint.DefaultRegistry(), cfg)
			if err != nil {
				t.Fatalf("Solve 失败: %v", err)
			}
			second, err := Solve(context.Background(), mustInstance(t, in), constraint.DefaultRegistry(), cfg)
			if err != nil {
				t.Fatalf("Solve 失败: %v", err)
			}
			if diff := cmp.Diff(snap(first), snap(second)); diff != "" {
				t.Errorf("seed %d: 同一输入两次求解结果不同 (-first +second):\n%s", seed, diff)
			}
		}
	}
}

func TestSolve_PigeonholeInfeasible(t *testing.T) {
	inst := mustInstance(t, pigeonholeInput())
	tracer := &recordingTracer{t: t}
	cfg := unlimited()
	cfg.Tracer = tracer

	res, err := Solve(context.Background(), inst, constraint.DefaultRegistry(), cfg)
	if err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	if res.Status != StatusInfeasible {
		t.Fatalf("期望 infeasible，实际 %s", res.Status)
	}
	if res.Schedule != nil {
		t.Error("无解时不应返回完整课表")
	}
	if got := len(res.Partial.Placements()); got != 2 {
		t.Errorf("部分解应保留 2 个落位，实际 %d", got)
	}

	want := []Unplaced{{
		SessionID: "s3",
		Conflicts: []Conflict{{ConstraintID: constraint.RoomOverlapID, Candidates: 2}},
		BlockedBy: []string{"s1", "s2"},
	}}
	if diff := cmp.Diff(want, res.Unplaced); diff != "" {
		t.Errorf("诊断不符 (-want +got):\n%s", diff)
	}

	// 回溯正确性：全部放置都被逆序撤销
	if len(tracer.open) != 0 {
		t.Errorf("穷尽搜索后仍有 %d 个未撤销的放置", len(tracer.open))
	}
	if tracer.undos != res.Stats.Backtracks {
		t.Errorf("撤销次数 %d 与 Stats.Backtracks %d 不一致", tracer.undos, res.Stats.Backtracks)
	}
	if tracer.places != res.Stats.Placements || res.Stats.Placements != 4 {
		t.Errorf("期望 4 次放置，tracer %d，stats %d", tracer.places, res.Stats.Placements)
	}
	if tracer.maxOpen != 2 {
		t.Errorf("最大决策深度应为 2，实际 %d", tracer.maxOpen)
	}
}

func TestSolve_TracerOnComplete(t *testing.T) {
	inst := mustInstance(t, feasibleInput())
	tracer := &recordingTracer{t: t}
	cfg := unlimited()
	cfg.Improve = false
	cfg.Tracer = tracer

	res, err := Solve(context.Background(), inst, constraint.DefaultRegistry(), cfg)
	if err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	if res.Status != StatusComplete {
		t.Fatalf("期望 complete，实际 %s", res.Status)
	}
	// 未撤销的放置恰好构成返回的课表
	got := model.AssignmentOf(tracer.open...).Placements()
	if diff := cmp.Diff(res.Schedule.Placements(), got); diff != "" {
		t.Errorf("决策栈与课表不一致 (-schedule +stack):\n%s", diff)
	}
}

func TestSolve_ZeroBacktracksSingleSession(t *testing.T) {
	inst := mustInstance(t, model.Input{
		TimeSlots: slots(1, 2),
		Resources: []model.Resource{
			{ID: "r1", Kind: model.ResourceRoom},
			{ID: "i1", Kind: model.ResourceInstructor},
		},
		Sessions: []model.Session{
			{ID: "s1", CourseID: "c1", Duration: 1, InstructorIDs: []string{"i1"}},
		},
	})
	res, err := Solve(context.Background(), inst, constraint.DefaultRegistry(), Config{MaxBacktracks: 0, Improve: true})
	if err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	if res.Status != StatusComplete {
		t.Fatalf("期望 complete，实际 %s（%s）", res.Status, res.Reason)
	}
	if res.Stats.Backtracks != 0 {
		t.Errorf("不应发生回溯，实际 %d", res.Stats.Backtracks)
	}
}

func TestSolve_BacktrackBudgetTimeout(t *testing.T) {
	inst := mustInstance(t, pigeonholeInput())
	res, err := Solve(context.Background(), inst, constraint.DefaultRegistry(), Config{MaxBacktracks: 0})
	if err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	if res.Status != StatusTimeout {
		t.Fatalf("期望 timeout，实际 %s", res.Status)
	}
	if got := len(res.Partial.Placements()); got != 2 {
		t.Errorf("超时也应保留最佳部分解，期望 2 个落位，实际 %d", got)
	}
	if len(res.Unplaced) != 1 || res.Unplaced[0].SessionID != "s3" {
		t.Errorf("诊断应指出 s3 未落位: %+v", res.Unplaced)
	}
}

func TestSolve_Cancelled(t *testing.T) {
	inst := mustInstance(t, feasibleInput())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Solve(ctx, inst, constraint.DefaultRegistry(), unlimited())
	if err != nil {
		t.Fatalf("取消不应作为错误返回: %v", err)
	}
	if res.Status != StatusTimeout {
		t.Fatalf("期望 timeout，实际 %s", res.Status)
	}
	if len(res.Unplaced) != len(inst.Sessions()) {
		t.Errorf("全部排课单元都应在诊断中，实际 %d", len(res.Unplaced))
	}
}

func TestSolve_WallClockLimit(t *testing.T) {
	inst := mustInstance(t, feasibleInput())
	cfg := unlimited()
	cfg.WallClockLimit = time.Nanosecond

	res, err := Solve(context.Background(), inst, constraint.DefaultRegistry(), cfg)
	if err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	if res.Status != StatusTimeout {
		t.Fatalf("期望 timeout，实际 %s", res.Status)
	}
}

func TestSolve_DeadSessionKeepsPartial(t *testing.T) {
	in := feasibleInput()
	in.Sessions = append(in.Sessions, model.Session{
		ID: "s7", CourseID: "c7", Duration: 1, InstructorIDs: []string{"i2"}, RequiredCapabilities: []string{"studio"},
	})
	inst := mustInstance(t, in)

	res, err := Solve(context.Background(), inst, constraint.DefaultRegistry(), unlimited())
	if err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	if res.Status != StatusInfeasible {
		t.Fatalf("期望 infeasible，实际 %s", res.Status)
	}
	if got := len(res.Partial.Placements()); got != 6 {
		t.Errorf("其余 6 个排课单元应全部落位，实际 %d", got)
	}
	if len(res.Unplaced) != 1 || res.Unplaced[0].SessionID != "s7" {
		t.Fatalf("诊断应只包含 s7: %+v", res.Unplaced)
	}
	// 2 天 × 3 节 × 2 间教室 × 1 位教师
	want := Conflict{ConstraintID: constraint.RoomCapabilityID, Candidates: 12}
	found := false
	for _, c := range res.Unplaced[0].Conflicts {
		if c == want {
			found = true
		}
	}
	if !found {
		t.Errorf("应记录 %+v，实际 %+v", want, res.Unplaced[0].Conflicts)
	}
}

func TestSolve_DailyLoadFallback(t *testing.T) {
	inst := mustInstance(t, model.Input{
		TimeSlots: slots(2, 2),
		Resources: []model.Resource{
			{ID: "r1", Kind: model.ResourceRoom},
			{ID: "i1", Kind: model.ResourceInstructor, MaxDailyLoad: 1},
		},
		Sessions: []model.Session{
			{ID: "s1", CourseID: "c1", Duration: 1, InstructorIDs: []string{"i1"}},
			{ID: "s2", CourseID: "c2", Duration: 1, InstructorIDs: []string{"i1"}},
		},
	})
	reg := constraint.DefaultRegistry()
	res, err := Solve(context.Background(), inst, reg, unlimited())
	if err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	if res.Status != StatusComplete {
		t.Fatalf("期望 complete，实际 %s", res.Status)
	}
	assertSound(t, inst, reg, res.Schedule)
	p1, _ := res.Schedule.Placement("s1")
	p2, _ := res.Schedule.Placement("s2")
	if p1.Start.Day == p2.Start.Day {
		t.Errorf("i1 每天最多 1 节，两次课应在不同天: %s %s", p1.Start, p2.Start)
	}
}

func TestSolve_SoftWeights(t *testing.T) {
	in := model.Input{
		TimeSlots: slots(1, 1),
		Resources: []model.Resource{
			{ID: "r1", Kind: model.ResourceRoom},
			{ID: "r2", Kind: model.ResourceRoom},
			{ID: "i1", Kind: model.ResourceInstructor},
		},
		Sessions: []model.Session{
			{ID: "s1", CourseID: "c1", Duration: 1, InstructorIDs: []string{"i1"}, PreferredRoomIDs: []string{"r2"}},
		},
	}

	res, err := Solve(context.Background(), mustInstance(t, in), constraint.DefaultRegistry(), unlimited())
	if err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	if p, _ := res.Schedule.Placement("s1"); p.RoomID != "r2" || res.Penalty != 0 {
		t.Errorf("应排在偏好教室 r2 且零惩罚，实际 %s / %v", p.RoomID, res.Penalty)
	}

	cfg := unlimited()
	cfg.SoftConstraintWeight = map[string]float64{constraint.PreferredRoomID: 0}
	res, err = Solve(context.Background(), mustInstance(t, in), constraint.DefaultRegistry(), cfg)
	if err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	if p, _ := res.Schedule.Placement("s1"); p.RoomID != "r1" {
		t.Errorf("停用偏好后应按基础顺序排在 r1，实际 %s", p.RoomID)
	}
}

func TestSolve_ImproveNeverWorse(t *testing.T) {
	in := feasibleInput()

	cfg := unlimited()
	cfg.Improve = false
	first, err := Solve(context.Background(), mustInstance(t, in), constraint.DefaultRegistry(), cfg)
	if err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	improved, err := Solve(context.Background(), mustInstance(t, in), constraint.DefaultRegistry(), unlimited())
	if err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	if first.Stats.Solutions != 1 {
		t.Errorf("不改进时应在第一个完整解停止，实际 %d", first.Stats.Solutions)
	}
	if improved.Penalty > first.Penalty {
		t.Errorf("改进后惩罚分 %v 不应高于首解 %v", improved.Penalty, first.Penalty)
	}
}

func TestSolve_EmptyInstance(t *testing.T) {
	inst := mustInstance(t, model.Input{
		TimeSlots: slots(1, 1),
		Resources: []model.Resource{{ID: "r1", Kind: model.ResourceRoom}},
	})
	res, err := Solve(context.Background(), inst, constraint.DefaultRegistry(), DefaultConfig())
	if err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	if res.Status != StatusComplete || len(res.Schedule.Placements()) != 0 {
		t.Errorf("无排课单元时应返回空的完整课表，实际 %s", res.Status)
	}
}

func TestSolve_InvalidArguments(t *testing.T) {
	reg := constraint.DefaultRegistry()
	if _, err := Solve(context.Background(), nil, reg, DefaultConfig()); !errors.Is(err, ErrNilInstance) {
		t.Errorf("期望 ErrNilInstance，实际 %v", err)
	}

	inst := mustInstance(t, feasibleInput())
	cfg := DefaultConfig()
	cfg.SoftConstraintWeight = map[string]float64{constraint.PreferredRoomID: -1}
	if _, err := Solve(context.Background(), inst, reg, cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("负权重应返回 ErrInvalidConfig，实际 %v", err)
	}
}

func TestSolve_SealsRegistry(t *testing.T) {
	reg := constraint.DefaultRegistry()
	if _, err := Solve(context.Background(), mustInstance(t, pigeonholeInput()), reg, DefaultConfig()); err != nil {
		t.Fatalf("Solve 失败: %v", err)
	}
	if err := reg.Register(constraint.RoomOverlap{}); !errors.Is(err, constraint.ErrRegistrySealed) {
		t.Errorf("求解后注册表应只读，实际 %v", err)
	}
}

func TestLogTracer(t *testing.T) {
	cfg := unlimited()
	cfg.Tracer = NewLogTracer(zap.NewNop())
	cfg.Logger = zap.NewNop()
	res, err := Solve(context.Background(), mustInstance(t, feasibleInput()), constraint.DefaultRegistry(), cfg)
	if err != nil || res.Status != StatusComplete {
		t.Fatalf("带日志 Tracer 求解失败: %v / %v", err, res)
	}
}

// ════════════════════════════════════════════════════════════
// SolvePortfolio 测试
// ════════════════════════════════════════════════════════════

func TestSolvePortfolio_Best(t *testing.T) {
	inst := mustInstance(t, feasibleInput())
	reg := constraint.DefaultRegistry()

	res, err := SolvePortfolio(context.Background(), inst, reg, unlimited(), PortfolioConfig{Attempts: 4, Strategy: StrategyBest})
	if err != nil {
		t.Fatalf("SolvePortfolio 失败: %v", err)
	}
	if res.Status != StatusComplete {
		t.Fatalf("期望 complete，实际 %s", res.Status)
	}
	assertSound(t, inst, reg, res.Schedule)

	for i := 0; i < 4; i++ {
		cfg := unlimited()
		cfg.RandomSeed = int64(i)
		single, err := Solve(context.Background(), inst, reg, cfg)
		if err != nil {
			t.Fatalf("Solve 失败: %v", err)
		}
		if single.Penalty < res.Penalty {
			t.Errorf("尝试 %d 的惩罚分 %v 低于组合结果 %v", i, single.Penalty, res.Penalty)
		}
	}
}

func TestSolvePortfolio_First(t *testing.T) {
	inst := mustInstance(t, feasibleInput())
	reg := constraint.DefaultRegistry()
	res, err := SolvePortfolio(context.Background(), inst, reg, unlimited(), PortfolioConfig{Attempts: 3, Strategy: StrategyFirst})
	if err != nil {
		t.Fatalf("SolvePortfolio 失败: %v", err)
	}
	if res.Status != StatusComplete {
		t.Fatalf("期望 complete，实际 %s", res.Status)
	}
	assertSound(t, inst, reg, res.Schedule)
	if res.Attempt < 0 || res.Attempt >= 3 {
		t.Errorf("尝试序号越界: %d", res.Attempt)
	}
}

func TestSolvePortfolio_Infeasible(t *testing.T) {
	res, err := SolvePortfolio(context.Background(), mustInstance(t, pigeonholeInput()), constraint.DefaultRegistry(), unlimited(), PortfolioConfig{Attempts: 3})
	if err != nil {
		t.Fatalf("SolvePortfolio 失败: %v", err)
	}
	if res.Status != StatusInfeasible {
		t.Errorf("期望 infeasible，实际 %s", res.Status)
	}
}

func TestSolvePortfolio_UnknownStrategy(t *testing.T) {
	_, err := SolvePortfolio(context.Background(), mustInstance(t, pigeonholeInput()), constraint.DefaultRegistry(), unlimited(), PortfolioConfig{Attempts: 2, Strategy: "fastest"})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("期望 ErrInvalidConfig，实际 %v", err)
	}
}

func TestPickBest_ExhaustedAttemptDecides(t *testing.T) {
	inst := mustInstance(t, pigeonholeInput())
	partial := func(placements ...model.Placement) *model.Schedule {
		s, err := model.NewSchedule(inst, placements)
		if err != nil {
			t.Fatalf("构建部分解失败: %v", err)
		}
		return s
	}
	p1 := model.Placement{SessionID: "s1", Start: model.TimeSlot{Day: 1, Period: 1}, RoomID: "r1", InstructorID: "i1"}
	p2 := model.Placement{SessionID: "s2", Start: model.TimeSlot{Day: 1, Period: 2}, RoomID: "r1", InstructorID: "i2"}

	t.Run("超时尝试落位更多", func(t *testing.T) {
		timeout := &Result{Status: StatusTimeout, Reason: "超过时间上限 1s", Partial: partial(p1, p2), Attempt: 0}
		exhausted := &Result{Status: StatusInfeasible, Reason: "已穷尽搜索空间", Partial: partial(p1), Attempt: 1}

		got := pickBest([]*Result{timeout, exhausted})
		if got.Status != StatusInfeasible {
			t.Errorf("期望 infeasible，实际 %s", got.Status)
		}
		if got.Reason != exhausted.Reason {
			t.Errorf("原因应取自穷尽的尝试，实际 %q", got.Reason)
		}
		if got.Placed() != 2 || got.Attempt != 0 {
			t.Errorf("应保留落位最多的部分解: placed=%d attempt=%d", got.Placed(), got.Attempt)
		}
		if timeout.Status != StatusTimeout || timeout.Reason != "超过时间上限 1s" {
			t.Error("不应修改原尝试结果")
		}
	})

	t.Run("落位数相同", func(t *testing.T) {
		timeout := &Result{Status: StatusTimeout, Reason: "回溯次数超过上限 0", Partial: partial(p1, p2)}
		exhausted := &Result{Status: StatusInfeasible, Reason: "已穷尽搜索空间", Partial: partial(p1, p2), Attempt: 1}

		if got := pickBest([]*Result{timeout, exhausted}); got != exhausted {
			t.Errorf("落位数相同时应返回穷尽的尝试，实际 attempt=%d status=%s", got.Attempt, got.Status)
		}
	})

	t.Run("无穷尽尝试", func(t *testing.T) {
		a := &Result{Status: StatusTimeout, Reason: "超过时间上限 1s", Partial: partial(p1)}
		b := &Result{Status: StatusTimeout, Reason: "超过时间上限 1s", Partial: partial(p1, p2), Attempt: 1}
		if got := pickBest([]*Result{a, b}); got != b || got.Status != StatusTimeout {
			t.Errorf("应返回落位最多的超时结果，实际 attempt=%d status=%s", got.Attempt, got.Status)
		}
	})
}
