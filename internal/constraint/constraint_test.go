package constraint

import (
	"errors"
	"testing"

	"github.com/sujith-eag/timetable-builder/internal/model"
)

// ── 测试辅助 ──

func weekSlots(days, periods int) []model.TimeSlot {
	var out []model.TimeSlot
	for d := 1; d <= days; d++ {
		for p := 1; p <= periods; p++ {
			out = append(out, model.TimeSlot{Day: d, Period: p})
		}
	}
	return out
}

func newTestInstance(t *testing.T) *model.Instance {
	t.Helper()
	slots := weekSlots(2, 4)
	// 周一第 3 节为午休
	var open []model.TimeSlot
	for _, ts := range slots {
		if ts.Day == 1 && ts.Period == 3 {
			continue
		}
		open = append(open, ts)
	}
	inst, err := model.NewInstance(model.Input{
		TimeSlots: open,
		Resources: []model.Resource{
			{ID: "r1", Kind: model.ResourceRoom, Capacity: 30},
			{ID: "r2", Kind: model.ResourceRoom, Capacity: 60, Capabilities: []string{"lab"}},
			{ID: "i1", Kind: model.ResourceInstructor, MaxDailyLoad: 2, Blocked: []model.TimeSlot{{Day: 2, Period: 4}}},
			{ID: "i2", Kind: model.ResourceInstructor},
		},
		Groups: []model.StudentGroup{
			{ID: "g1", Size: 40},
			{ID: "g2", Size: 20, ConflictsWith: []string{"g3"}},
			{ID: "g3", Size: 20},
		},
		Sessions: []model.Session{
			{ID: "s1", CourseID: "c1", Duration: 1, InstructorIDs: []string{"i1", "i2"}, GroupIDs: []string{"g1"}, PreferredRoomIDs: []string{"r2"}},
			{ID: "s2", CourseID: "c1", Duration: 1, InstructorIDs: []string{"i1"}, GroupIDs: []string{"g1"}},
			{ID: "s3", CourseID: "c2", Duration: 2, InstructorIDs: []string{"i2"}, GroupIDs: []string{"g2"}, RequiredCapabilities: []string{"lab"}},
			{ID: "s4", CourseID: "c3", Duration: 1, InstructorIDs: []string{"i2"}, GroupIDs: []string{"g3"}, FixedDay: 2, FixedPeriod: 1, RequiredRoomID: "r1"},
		},
	})
	if err != nil {
		t.Fatalf("构建测试实例失败: %v", err)
	}
	return inst
}

func at(session string, day, period int, room, instructor string) model.Placement {
	return model.Placement{SessionID: session, Start: model.TimeSlot{Day: day, Period: period}, RoomID: room, InstructorID: instructor}
}

// ════════════════════════════════════════════════════════════
// Registry 测试
// ════════════════════════════════════════════════════════════

func TestRegistry_DuplicateID(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(RoomOverlap{}); err != nil {
		t.Fatalf("首次注册不应失败: %v", err)
	}
	if err := r.Register(RoomOverlap{}); !errors.Is(err, ErrDuplicateConstraint) {
		t.Errorf("期望 ErrDuplicateConstraint，实际 %v", err)
	}
}

func TestRegistry_Sealed(t *testing.T) {
	r := NewRegistry()
	r.Seal()
	if err := r.Register(RoomOverlap{}); !errors.Is(err, ErrRegistrySealed) {
		t.Errorf("期望 ErrRegistrySealed，实际 %v", err)
	}
}

type bothKinds struct{}

func (bothKinds) ID() string { return "Both" }
func (bothKinds) Evaluate(*model.Instance, *model.Assignment) model.ViolationSet {
	return nil
}
func (bothKinds) Score(*model.Instance, *model.Assignment) float64 { return 0 }

func TestRegistry_AmbiguousKind(t *testing.T) {
	if err := NewRegistry().Register(bothKinds{}); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("同时实现 Hard 和 Soft 应被拒绝，实际 %v", err)
	}
}

func TestDefaultRegistry_Order(t *testing.T) {
	r := DefaultRegistry()
	hard := r.HardConstraints()
	if len(hard) != 11 {
		t.Fatalf("期望 11 个硬约束，实际 %d", len(hard))
	}
	if hard[0].ID() != InstructorOverlapID || hard[len(hard)-1].ID() != InstructorDailyLoadID {
		t.Errorf("硬约束应保持注册顺序，实际首 %s 尾 %s", hard[0].ID(), hard[len(hard)-1].ID())
	}
	if len(r.SoftConstraints()) != 4 {
		t.Errorf("期望 4 个软约束，实际 %d", len(r.SoftConstraints()))
	}
	if !r.Has(CourseSameDayID) {
		t.Error("CourseSameDay 应已注册")
	}
}

// ════════════════════════════════════════════════════════════
// 硬约束测试
// ════════════════════════════════════════════════════════════

func TestInstructorOverlap_SinglePairViolation(t *testing.T) {
	inst := newTestInstance(t)
	a := model.AssignmentOf(
		at("s1", 1, 1, "r1", "i1"),
		at("s2", 1, 1, "r2", "i1"),
	)
	vs := InstructorOverlap{}.Evaluate(inst, a)
	if len(vs) != 1 {
		t.Fatalf("期望 1 条违反，实际 %d", len(vs))
	}
	v := vs[0]
	if v.ConstraintID != InstructorOverlapID {
		t.Errorf("约束 ID 错误: %s", v.ConstraintID)
	}
	if len(v.SessionIDs) != 2 || v.SessionIDs[0] != "s1" || v.SessionIDs[1] != "s2" {
		t.Errorf("涉及的排课单元错误: %v", v.SessionIDs)
	}
	if v.Slot == nil || *v.Slot != (model.TimeSlot{Day: 1, Period: 1}) {
		t.Errorf("冲突节次错误: %v", v.Slot)
	}
}

func TestRoomOverlap_MultiSlotRun(t *testing.T) {
	inst := newTestInstance(t)
	// s3 占用周二 1-2 节，s4 在周二第 2 节同一教室
	p3 := at("s3", 2, 1, "r2", "i2")
	p4 := at("s4", 2, 2, "r2", "i1")
	if (RoomOverlap{}).Compatible(inst, p3, p4) {
		t.Error("连续占用的第二节与他课同教室应冲突")
	}
	p4.Start.Period = 3
	if !(RoomOverlap{}).Compatible(inst, p3, p4) {
		t.Error("占用结束后的节次不应冲突")
	}
}

func TestGroupOverlap_ConflictingGroups(t *testing.T) {
	inst := newTestInstance(t)
	// g2 与 g3 互斥
	p3 := at("s3", 2, 1, "r2", "i2")
	p4 := at("s4", 2, 1, "r1", "i1")
	if (GroupOverlap{}).Compatible(inst, p3, p4) {
		t.Error("互斥群体同时上课应冲突")
	}
	p1 := at("s1", 2, 1, "r1", "i1")
	if !(GroupOverlap{}).Compatible(inst, p3, p1) {
		t.Error("无关群体同时上课不应冲突")
	}
}

func TestOperatingHours(t *testing.T) {
	inst := newTestInstance(t)
	tests := []struct {
		name  string
		p     model.Placement
		allow bool
	}{
		{"普通节次", at("s3", 2, 1, "r2", "i2"), true},
		{"跨越午休", at("s3", 1, 2, "r2", "i2"), false},
		{"超出当天最后一节", at("s3", 2, 4, "r2", "i2"), false},
		{"单节次落在午休", at("s1", 1, 3, "r1", "i1"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (OperatingHours{}).Allows(inst, tt.p); got != tt.allow {
				t.Errorf("期望 %v，实际 %v", tt.allow, got)
			}
		})
	}
}

func TestUnaryConstraints(t *testing.T) {
	inst := newTestInstance(t)
	tests := []struct {
		name  string
		c     Unary
		p     model.Placement
		allow bool
	}{
		{"教师不可用", ResourceAvailability{}, at("s1", 2, 4, "r1", "i1"), false},
		{"教师可用", ResourceAvailability{}, at("s1", 2, 3, "r1", "i1"), true},
		{"教室缺少 lab", RoomCapability{}, at("s3", 2, 1, "r1", "i2"), false},
		{"教室具备 lab", RoomCapability{}, at("s3", 2, 1, "r2", "i2"), true},
		{"容量不足", RoomCapacity{}, at("s1", 1, 1, "r1", "i1"), false},
		{"容量充足", RoomCapacity{}, at("s1", 1, 1, "r2", "i1"), true},
		{"非候选教师", InstructorEligibility{}, at("s2", 1, 1, "r1", "i2"), false},
		{"固定时间不符", FixedTime{}, at("s4", 2, 2, "r1", "i2"), false},
		{"固定时间相符", FixedTime{}, at("s4", 2, 1, "r1", "i2"), true},
		{"必须教室不符", RequiredRoom{}, at("s4", 2, 1, "r2", "i2"), false},
		{"无必须教室", RequiredRoom{}, at("s1", 2, 1, "r2", "i2"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Allows(inst, tt.p); got != tt.allow {
				t.Errorf("期望 %v，实际 %v", tt.allow, got)
			}
		})
	}
}

func TestInstructorDailyLoad(t *testing.T) {
	inst := newTestInstance(t)
	a := model.AssignmentOf(
		at("s1", 2, 1, "r2", "i1"),
		at("s2", 2, 2, "r1", "i1"),
	)
	if vs := (InstructorDailyLoad{}).Evaluate(inst, a); len(vs) != 0 {
		t.Fatalf("未超过上限不应有违反: %v", vs)
	}
	// i1 上限 2 节；把 s4 也交给 i1（资格由其他约束判断）
	a.Set(at("s4", 2, 3, "r1", "i1"))
	vs := (InstructorDailyLoad{}).Evaluate(inst, a)
	if len(vs) != 1 {
		t.Fatalf("期望 1 条违反，实际 %d", len(vs))
	}
	if len(vs[0].SessionIDs) != 3 {
		t.Errorf("违反应包含当天全部排课单元，实际 %v", vs[0].SessionIDs)
	}
}

// ════════════════════════════════════════════════════════════
// 软约束测试
// ════════════════════════════════════════════════════════════

func TestPreferredRoom(t *testing.T) {
	inst := newTestInstance(t)
	a := model.AssignmentOf(at("s1", 1, 1, "r1", "i1"), at("s2", 1, 2, "r1", "i1"))
	if got := (PreferredRoom{}).Score(inst, a); got != 1 {
		t.Errorf("期望 1 分（s2 无偏好不计分），实际 %v", got)
	}
	if !IsMonotone(PreferredRoom{}) {
		t.Error("PreferredRoom 应声明单调")
	}
}

func TestIdleGap_CostMatchesScoreDelta(t *testing.T) {
	inst := newTestInstance(t)
	base := model.AssignmentOf(at("s1", 2, 1, "r2", "i1"))
	p := at("s2", 2, 4, "r1", "i1")

	for _, c := range []interface {
		Soft
		Coster
	}{GroupIdleGap{}, InstructorIdleGap{}} {
		want := c.Score(inst, base.With(p)) - c.Score(inst, base)
		if got := c.Cost(inst, base, p); got != want {
			t.Errorf("%s: 边际代价 %v 与得分差 %v 不一致", c.ID(), got, want)
		}
		if want != 2 {
			t.Errorf("%s: 周二 1、4 节之间应有 2 个空闲节次，实际 %v", c.ID(), want)
		}
	}

	// 填补空闲反而降低得分
	filled := base.With(p)
	q := at("s4", 2, 2, "r1", "i1")
	if got := (InstructorIdleGap{}).Cost(inst, filled, q); got != -1 {
		t.Errorf("填补空闲的边际代价应为 -1，实际 %v", got)
	}
	if IsMonotone(InstructorIdleGap{}) {
		t.Error("空闲节次约束不是单调的")
	}
}

func TestIdleGap_ClosedPeriodNotCounted(t *testing.T) {
	inst := newTestInstance(t)
	// 周一 2、4 节之间只隔着午休，不算空闲
	a := model.AssignmentOf(at("s1", 1, 2, "r2", "i1"), at("s2", 1, 4, "r1", "i1"))
	if got := (InstructorIdleGap{}).Score(inst, a); got != 0 {
		t.Errorf("午休不应计为空闲，实际 %v", got)
	}
}

func TestCourseSameDay(t *testing.T) {
	inst := newTestInstance(t)
	a := model.AssignmentOf(at("s1", 1, 1, "r2", "i2"))
	same := at("s2", 1, 2, "r1", "i1")
	other := at("s2", 2, 2, "r1", "i1")
	if got := (CourseSameDay{}).Cost(inst, a, same); got != 1 {
		t.Errorf("同课程同群体同一天应记 1 分，实际 %v", got)
	}
	if got := (CourseSameDay{}).Cost(inst, a, other); got != 0 {
		t.Errorf("不同天不应计分，实际 %v", got)
	}
	if got := (CourseSameDay{}).Score(inst, a.With(same)); got != 1 {
		t.Errorf("Score 应为 1，实际 %v", got)
	}
}
