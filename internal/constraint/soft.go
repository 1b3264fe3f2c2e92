package constraint

import (
	"github.com/sujith-eag/timetable-builder/internal/model"
)

// ── 内置软约束 ID ──

const (
	PreferredRoomID     = "PreferredRoom"
	GroupIdleGapID      = "GroupIdleGap"
	InstructorIdleGapID = "InstructorIdleGap"
	CourseSameDayID     = "CourseSameDay"
)

// PreferredRoom 课程未排在偏好教室时每次记 1 分
type PreferredRoom struct{}

func (PreferredRoom) ID() string     { return PreferredRoomID }
func (PreferredRoom) Monotone() bool { return true }

func (c PreferredRoom) Score(inst *model.Instance, a *model.Assignment) float64 {
	total := 0.0
	for _, p := range a.Placements() {
		total += c.Cost(inst, a, p)
	}
	return total
}

func (PreferredRoom) Cost(inst *model.Instance, _ *model.Assignment, p model.Placement) float64 {
	s, ok := inst.Session(p.SessionID)
	if !ok || len(s.PreferredRoomIDs) == 0 || s.Prefers(p.RoomID) {
		return 0
	}
	return 1
}

// GroupIdleGap 学生群体每天首末课之间的空闲节次数
type GroupIdleGap struct{}

func (GroupIdleGap) ID() string { return GroupIdleGapID }

func (GroupIdleGap) Score(inst *model.Instance, a *model.Assignment) float64 {
	total := 0
	for _, occ := range a.ByGroup(inst) {
		total += model.IdleGaps(inst, occ)
	}
	return float64(total)
}

// Cost 只重算 p 所在当天、p 涉及的群体
func (GroupIdleGap) Cost(inst *model.Instance, a *model.Assignment, p model.Placement) float64 {
	s, run, ok := runOf(inst, p)
	if !ok || len(s.GroupIDs) == 0 {
		return 0
	}
	byGroup := a.ByGroup(inst)
	delta := 0
	for _, g := range s.GroupIDs {
		delta += gapDelta(inst, byGroup[g], p.SessionID, run)
	}
	return float64(delta)
}

// InstructorIdleGap 教师每天首末课之间的空闲节次数
type InstructorIdleGap struct{}

func (InstructorIdleGap) ID() string { return InstructorIdleGapID }

func (InstructorIdleGap) Score(inst *model.Instance, a *model.Assignment) float64 {
	total := 0
	for _, occ := range a.ByInstructor(inst) {
		total += model.IdleGaps(inst, occ)
	}
	return float64(total)
}

func (InstructorIdleGap) Cost(inst *model.Instance, a *model.Assignment, p model.Placement) float64 {
	_, run, ok := runOf(inst, p)
	if !ok {
		return 0
	}
	return float64(gapDelta(inst, a.ByInstructor(inst)[p.InstructorID], p.SessionID, run))
}

// gapDelta 在当天占用中加入 run 后空闲节次的变化量（可为负）
func gapDelta(inst *model.Instance, occ []model.Occupancy, sessionID string, run model.Run) int {
	var day []model.Occupancy
	for _, o := range occ {
		if o.Run.Start.Day == run.Start.Day && o.SessionID != sessionID {
			day = append(day, o)
		}
	}
	before := model.IdleGaps(inst, day)
	after := model.IdleGaps(inst, append(day, model.Occupancy{SessionID: sessionID, Run: run}))
	return after - before
}

// CourseSameDay 同一课程同一教学对象在同一天上多次课，每对记 1 分
// 教学对象：有学生群体时按共享群体判断，否则按 Section 判断
type CourseSameDay struct{}

func (CourseSameDay) ID() string     { return CourseSameDayID }
func (CourseSameDay) Monotone() bool { return true }

func (CourseSameDay) Score(inst *model.Instance, a *model.Assignment) float64 {
	ps := a.Placements()
	total := 0
	for i := 0; i < len(ps); i++ {
		for j := i + 1; j < len(ps); j++ {
			if sameCourseSameDay(inst, ps[i], ps[j]) {
				total++
			}
		}
	}
	return float64(total)
}

func (CourseSameDay) Cost(inst *model.Instance, a *model.Assignment, p model.Placement) float64 {
	total := 0
	for _, q := range a.Placements() {
		if q.SessionID != p.SessionID && sameCourseSameDay(inst, p, q) {
			total++
		}
	}
	return float64(total)
}

func sameCourseSameDay(inst *model.Instance, p, q model.Placement) bool {
	if p.Start.Day != q.Start.Day {
		return false
	}
	sp, ok1 := inst.Session(p.SessionID)
	sq, ok2 := inst.Session(q.SessionID)
	if !ok1 || !ok2 || sp.CourseID != sq.CourseID {
		return false
	}
	if len(sp.GroupIDs) == 0 && len(sq.GroupIDs) == 0 {
		return sp.Section == sq.Section
	}
	for _, g := range sp.GroupIDs {
		for _, h := range sq.GroupIDs {
			if g == h {
				return true
			}
		}
	}
	return false
}
