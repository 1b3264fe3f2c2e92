package model

import "sort"

// Placement 一个排课单元的落位：(起始节次, 教室, 教师)
type Placement struct {
	SessionID    string   `json:"session_id"    validate:"required"`
	Start        TimeSlot `json:"start"`
	RoomID       string   `json:"room_id"       validate:"required"`
	InstructorID string   `json:"instructor_id" validate:"required"`
}

// Assignment SessionID → Placement 的映射
// 搜索期间为部分映射，由引擎独占；结束后冻结交给校验器
type Assignment struct {
	placements map[string]Placement
}

// NewAssignment 创建空的 Assignment
func NewAssignment() *Assignment {
	return &Assignment{placements: make(map[string]Placement)}
}

// AssignmentOf 由落位列表构建 Assignment（同一 SessionID 以最后一个为准）
func AssignmentOf(placements ...Placement) *Assignment {
	a := &Assignment{placements: make(map[string]Placement, len(placements))}
	for _, p := range placements {
		a.placements[p.SessionID] = p
	}
	return a
}

func (a *Assignment) Get(sessionID string) (Placement, bool) {
	p, ok := a.placements[sessionID]
	return p, ok
}

func (a *Assignment) Set(p Placement) { a.placements[p.SessionID] = p }

func (a *Assignment) Unset(sessionID string) { delete(a.placements, sessionID) }

func (a *Assignment) Len() int {
	if a == nil {
		return 0
	}
	return len(a.placements)
}

// Placements 按 SessionID 升序返回全部落位
func (a *Assignment) Placements() []Placement {
	if a == nil {
		return nil
	}
	out := make([]Placement, 0, len(a.placements))
	for _, p := range a.placements {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Clone 深拷贝
func (a *Assignment) Clone() *Assignment {
	c := &Assignment{placements: make(map[string]Placement, a.Len())}
	if a != nil {
		for k, v := range a.placements {
			c.placements[k] = v
		}
	}
	return c
}

// With 返回附加了 p 的副本，原 Assignment 不变
func (a *Assignment) With(p Placement) *Assignment {
	c := a.Clone()
	c.placements[p.SessionID] = p
	return c
}

// Occupancy 某资源/群体在一天内的占用
type Occupancy struct {
	SessionID string
	Run       Run
}

// ByInstructor 教师 → 占用列表（按 Day, Period 排序）
func (a *Assignment) ByInstructor(inst *Instance) map[string][]Occupancy {
	return a.groupBy(inst, func(_ *Session, p Placement) []string { return []string{p.InstructorID} })
}

// ByRoom 教室 → 占用列表
func (a *Assignment) ByRoom(inst *Instance) map[string][]Occupancy {
	return a.groupBy(inst, func(_ *Session, p Placement) []string { return []string{p.RoomID} })
}

// ByGroup 学生群体 → 占用列表
func (a *Assignment) ByGroup(inst *Instance) map[string][]Occupancy {
	return a.groupBy(inst, func(s *Session, _ Placement) []string { return s.GroupIDs })
}

func (a *Assignment) groupBy(inst *Instance, keys func(*Session, Placement) []string) map[string][]Occupancy {
	out := make(map[string][]Occupancy)
	for _, p := range a.Placements() {
		s, ok := inst.Session(p.SessionID)
		if !ok {
			continue
		}
		for _, k := range keys(s, p) {
			out[k] = append(out[k], Occupancy{SessionID: p.SessionID, Run: s.Run(p.Start)})
		}
	}
	for k := range out {
		occ := out[k]
		sort.SliceStable(occ, func(i, j int) bool { return occ[i].Run.Start.Before(occ[j].Run.Start) })
	}
	return out
}

// IdleGaps 统计一组占用中每天首末课之间的空闲节次数
// 只计算作息时间内的节次，午休等关闭节次不计入
func IdleGaps(inst *Instance, occ []Occupancy) int {
	busy := make(map[TimeSlot]bool)
	first := make(map[int]int)
	last := make(map[int]int)
	for _, o := range occ {
		for _, ts := range o.Run.Slots() {
			busy[ts] = true
		}
		d := o.Run.Start.Day
		if f, ok := first[d]; !ok || o.Run.Start.Period < f {
			first[d] = o.Run.Start.Period
		}
		if l, ok := last[d]; !ok || o.Run.End()-1 > l {
			last[d] = o.Run.End() - 1
		}
	}
	gaps := 0
	for d, f := range first {
		for p := f + 1; p < last[d]; p++ {
			ts := TimeSlot{Day: d, Period: p}
			if !busy[ts] && inst.HasSlot(ts) {
				gaps++
			}
		}
	}
	return gaps
}
