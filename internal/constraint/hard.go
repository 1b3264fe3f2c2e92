package constraint

import (
	"fmt"
	"sort"

	"github.com/sujith-eag/timetable-builder/internal/model"
)

// ── 内置硬约束 ID ──

const (
	InstructorOverlapID     = "InstructorOverlap"
	RoomOverlapID           = "RoomOverlap"
	GroupOverlapID          = "GroupOverlap"
	OperatingHoursID        = "OperatingHours"
	ResourceAvailabilityID  = "ResourceAvailability"
	RoomCapabilityID        = "RoomCapability"
	RoomCapacityID          = "RoomCapacity"
	InstructorEligibilityID = "InstructorEligibility"
	FixedTimeID             = "FixedTime"
	RequiredRoomID          = "RequiredRoom"
	InstructorDailyLoadID   = "InstructorDailyLoad"
)

// ════════════════════════════════════════════════════════════
// 两两冲突类
// ════════════════════════════════════════════════════════════

// InstructorOverlap 同一教师同一时间只能上一门课
type InstructorOverlap struct{}

func (InstructorOverlap) ID() string { return InstructorOverlapID }

func (InstructorOverlap) Compatible(inst *model.Instance, p, q model.Placement) bool {
	if p.InstructorID != q.InstructorID {
		return true
	}
	return !overlapping(inst, p, q)
}

func (c InstructorOverlap) Evaluate(inst *model.Instance, a *model.Assignment) model.ViolationSet {
	return evaluatePairs(c.ID(), inst, a,
		func(p, q model.Placement) bool { return c.Compatible(inst, p, q) },
		func(p, _ model.Placement) string { return fmt.Sprintf("教师 %s 时间冲突", p.InstructorID) })
}

// RoomOverlap 同一教室同一时间只能安排一门课
type RoomOverlap struct{}

func (RoomOverlap) ID() string { return RoomOverlapID }

func (RoomOverlap) Compatible(inst *model.Instance, p, q model.Placement) bool {
	if p.RoomID != q.RoomID {
		return true
	}
	return !overlapping(inst, p, q)
}

func (c RoomOverlap) Evaluate(inst *model.Instance, a *model.Assignment) model.ViolationSet {
	return evaluatePairs(c.ID(), inst, a,
		func(p, q model.Placement) bool { return c.Compatible(inst, p, q) },
		func(p, _ model.Placement) string { return fmt.Sprintf("教室 %s 时间冲突", p.RoomID) })
}

// GroupOverlap 同一学生群体（或互斥群体）同一时间只能上一门课
type GroupOverlap struct{}

func (GroupOverlap) ID() string { return GroupOverlapID }

func (GroupOverlap) Compatible(inst *model.Instance, p, q model.Placement) bool {
	sp, ok1 := inst.Session(p.SessionID)
	sq, ok2 := inst.Session(q.SessionID)
	if !ok1 || !ok2 || !inst.GroupsClash(sp.GroupIDs, sq.GroupIDs) {
		return true
	}
	return !overlapping(inst, p, q)
}

func (c GroupOverlap) Evaluate(inst *model.Instance, a *model.Assignment) model.ViolationSet {
	return evaluatePairs(c.ID(), inst, a,
		func(p, q model.Placement) bool { return c.Compatible(inst, p, q) },
		func(_, _ model.Placement) string { return "学生群体时间冲突" })
}

func overlapping(inst *model.Instance, p, q model.Placement) bool {
	_, rp, ok1 := runOf(inst, p)
	_, rq, ok2 := runOf(inst, q)
	return ok1 && ok2 && rp.Overlaps(rq)
}

// ════════════════════════════════════════════════════════════
// 单落位类
// ════════════════════════════════════════════════════════════

// OperatingHours 连续占用必须完整落在作息时间内（不跨天、不跨关闭节次）
type OperatingHours struct{}

func (OperatingHours) ID() string { return OperatingHoursID }

func (OperatingHours) Allows(inst *model.Instance, p model.Placement) bool {
	_, run, ok := runOf(inst, p)
	return ok && inst.WithinHours(run)
}

func (c OperatingHours) Evaluate(inst *model.Instance, a *model.Assignment) model.ViolationSet {
	return evaluateUnary(c.ID(), inst, a,
		func(p model.Placement) bool { return c.Allows(inst, p) },
		func(p model.Placement) string { return fmt.Sprintf("从 %s 起的连续节次超出作息时间", p.Start) })
}

// ResourceAvailability 占用节次不得落在教室、教师、学生群体的不可用时间
type ResourceAvailability struct{}

func (ResourceAvailability) ID() string { return ResourceAvailabilityID }

func (ResourceAvailability) Allows(inst *model.Instance, p model.Placement) bool {
	s, run, ok := runOf(inst, p)
	if !ok {
		return false
	}
	for _, ts := range run.Slots() {
		if inst.ResourceBlocked(p.RoomID, ts) || inst.ResourceBlocked(p.InstructorID, ts) {
			return false
		}
		for _, g := range s.GroupIDs {
			if inst.GroupBlocked(g, ts) {
				return false
			}
		}
	}
	return true
}

func (c ResourceAvailability) Evaluate(inst *model.Instance, a *model.Assignment) model.ViolationSet {
	return evaluateUnary(c.ID(), inst, a,
		func(p model.Placement) bool { return c.Allows(inst, p) },
		func(p model.Placement) string { return fmt.Sprintf("占用了不可用时间（教室 %s / 教师 %s）", p.RoomID, p.InstructorID) })
}

// RoomCapability 教室必须具备课程要求的全部能力标签（如 lab）
type RoomCapability struct{}

func (RoomCapability) ID() string { return RoomCapabilityID }

func (RoomCapability) Allows(inst *model.Instance, p model.Placement) bool {
	s, ok := inst.Session(p.SessionID)
	if !ok {
		return false
	}
	room, ok := inst.Room(p.RoomID)
	return ok && room.HasCapabilities(s.RequiredCapabilities)
}

func (c RoomCapability) Evaluate(inst *model.Instance, a *model.Assignment) model.ViolationSet {
	return evaluateUnary(c.ID(), inst, a,
		func(p model.Placement) bool { return c.Allows(inst, p) },
		func(p model.Placement) string { return fmt.Sprintf("教室 %s 不满足能力要求", p.RoomID) })
}

// RoomCapacity 教室容量不得小于上课学生总数
type RoomCapacity struct{}

func (RoomCapacity) ID() string { return RoomCapacityID }

func (RoomCapacity) Allows(inst *model.Instance, p model.Placement) bool {
	s, ok := inst.Session(p.SessionID)
	if !ok {
		return false
	}
	room, ok := inst.Room(p.RoomID)
	if !ok {
		return false
	}
	return room.Capacity == 0 || inst.Headcount(s.GroupIDs) <= room.Capacity
}

func (c RoomCapacity) Evaluate(inst *model.Instance, a *model.Assignment) model.ViolationSet {
	return evaluateUnary(c.ID(), inst, a,
		func(p model.Placement) bool { return c.Allows(inst, p) },
		func(p model.Placement) string { return fmt.Sprintf("教室 %s 容量不足", p.RoomID) })
}

// InstructorEligibility 教师必须属于该课的候选教师集合
type InstructorEligibility struct{}

func (InstructorEligibility) ID() string { return InstructorEligibilityID }

func (InstructorEligibility) Allows(inst *model.Instance, p model.Placement) bool {
	s, ok := inst.Session(p.SessionID)
	return ok && s.Teaches(p.InstructorID)
}

func (c InstructorEligibility) Evaluate(inst *model.Instance, a *model.Assignment) model.ViolationSet {
	return evaluateUnary(c.ID(), inst, a,
		func(p model.Placement) bool { return c.Allows(inst, p) },
		func(p model.Placement) string { return fmt.Sprintf("教师 %s 不在候选集合中", p.InstructorID) })
}

// FixedTime 指定了固定星期/节次的课必须排在该时间
type FixedTime struct{}

func (FixedTime) ID() string { return FixedTimeID }

func (FixedTime) Allows(inst *model.Instance, p model.Placement) bool {
	s, ok := inst.Session(p.SessionID)
	if !ok {
		return false
	}
	if s.FixedDay > 0 && p.Start.Day != s.FixedDay {
		return false
	}
	return s.FixedPeriod == 0 || p.Start.Period == s.FixedPeriod
}

func (c FixedTime) Evaluate(inst *model.Instance, a *model.Assignment) model.ViolationSet {
	return evaluateUnary(c.ID(), inst, a,
		func(p model.Placement) bool { return c.Allows(inst, p) },
		func(p model.Placement) string { return fmt.Sprintf("未按固定时间排课（实际 %s）", p.Start) })
}

// RequiredRoom 指定了必须教室的课只能排在该教室
type RequiredRoom struct{}

func (RequiredRoom) ID() string { return RequiredRoomID }

func (RequiredRoom) Allows(inst *model.Instance, p model.Placement) bool {
	s, ok := inst.Session(p.SessionID)
	return ok && (s.RequiredRoomID == "" || s.RequiredRoomID == p.RoomID)
}

func (c RequiredRoom) Evaluate(inst *model.Instance, a *model.Assignment) model.ViolationSet {
	return evaluateUnary(c.ID(), inst, a,
		func(p model.Placement) bool { return c.Allows(inst, p) },
		func(p model.Placement) string { return fmt.Sprintf("未安排在指定教室（实际 %s）", p.RoomID) })
}

// ════════════════════════════════════════════════════════════
// 多落位类（引擎走通用回退检查）
// ════════════════════════════════════════════════════════════

// InstructorDailyLoad 教师每日授课节次不得超过 MaxDailyLoad
// 违反集合随赋值扩展单调不减，满足引擎对非局部硬约束的要求
type InstructorDailyLoad struct{}

func (InstructorDailyLoad) ID() string { return InstructorDailyLoadID }

func (c InstructorDailyLoad) Evaluate(inst *model.Instance, a *model.Assignment) model.ViolationSet {
	var out model.ViolationSet
	byInstructor := a.ByInstructor(inst)

	ids := make([]string, 0, len(byInstructor))
	for id := range byInstructor {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		r, ok := inst.Instructor(id)
		if !ok || r.MaxDailyLoad == 0 {
			continue
		}
		load := make(map[int]int)
		sessions := make(map[int][]string)
		for _, o := range byInstructor[id] {
			d := o.Run.Start.Day
			load[d] += o.Run.Length
			sessions[d] = append(sessions[d], o.SessionID)
		}
		for _, d := range sortedDays(load) {
			if load[d] <= r.MaxDailyLoad {
				continue
			}
			out = append(out, model.NewViolation(c.ID(),
				fmt.Sprintf("教师 %s 周%d 授课 %d 节，超过上限 %d", id, d, load[d], r.MaxDailyLoad),
				nil, sessions[d]...))
		}
	}
	return out
}

func sortedDays(m map[int]int) []int {
	days := make([]int, 0, len(m))
	for d := range m {
		days = append(days, d)
	}
	sort.Ints(days)
	return days
}
