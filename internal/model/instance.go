package model

import (
	stderrors "errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/sujith-eag/timetable-builder/pkg/errors"
)

// Input 由上游导入/规范化阶段提供的完整问题数据
type Input struct {
	TimeSlots []TimeSlot     `json:"time_slots" validate:"min=1,dive"`
	Periods   []PeriodLabel  `json:"periods,omitempty" validate:"dive"`
	Resources []Resource     `json:"resources"  validate:"min=1,dive"`
	Groups    []StudentGroup `json:"groups,omitempty" validate:"dive"`
	Sessions  []Session      `json:"sessions"   validate:"dive"`
}

// Instance 已校验的只读问题实例
// 构造后除 Assignment 外所有数据均不可修改
type Instance struct {
	sessions    []Session
	rooms       []Resource
	instructors []Resource
	groups      []StudentGroup
	slots       []TimeSlot

	sessionIdx    map[string]int
	resourceIdx   map[string]*Resource
	groupIdx      map[string]int
	slotIdx       map[TimeSlot]int
	periods       map[int]PeriodLabel
	blocked       map[string]map[TimeSlot]bool // resourceID → 不可用节次
	groupBlocked  map[string]map[TimeSlot]bool
	groupConflict map[string]map[string]bool
}

var structValidator = validator.New()

// NewInstance 校验输入并构建问题实例
// 任何结构或引用完整性缺陷均返回 *errors.MalformedInputError
func NewInstance(in Input) (*Instance, error) {
	if err := structValidator.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, pkgerrors.NewMalformedInput(fe.Namespace(), fe.Value(), "字段校验失败: %s", fe.Tag())
		}
		return nil, pkgerrors.NewMalformedInput("", nil, "%v", err)
	}

	inst := &Instance{
		sessionIdx:    make(map[string]int, len(in.Sessions)),
		resourceIdx:   make(map[string]*Resource, len(in.Resources)),
		groupIdx:      make(map[string]int, len(in.Groups)),
		slotIdx:       make(map[TimeSlot]int, len(in.TimeSlots)),
		periods:       make(map[int]PeriodLabel, len(in.Periods)),
		blocked:       make(map[string]map[TimeSlot]bool),
		groupBlocked:  make(map[string]map[TimeSlot]bool),
		groupConflict: make(map[string]map[string]bool),
	}

	// ── 时间段全集 ──
	inst.slots = append([]TimeSlot(nil), in.TimeSlots...)
	sort.Slice(inst.slots, func(i, j int) bool { return inst.slots[i].Before(inst.slots[j]) })
	for i, ts := range inst.slots {
		if _, dup := inst.slotIdx[ts]; dup {
			return nil, pkgerrors.NewMalformedInput("time_slots", ts.String(), "时间段重复")
		}
		inst.slotIdx[ts] = i
	}
	for _, p := range in.Periods {
		if _, dup := inst.periods[p.Index]; dup {
			return nil, pkgerrors.NewMalformedInput("periods", p.Index, "节次标签重复")
		}
		inst.periods[p.Index] = p
	}

	// ── 资源 ──
	for i := range in.Resources {
		r := in.Resources[i]
		if _, dup := inst.resourceIdx[r.ID]; dup {
			return nil, pkgerrors.NewMalformedInput(fmt.Sprintf("resources[%d].id", i), r.ID, "资源 ID 重复")
		}
		blocked, err := inst.blockedSet(fmt.Sprintf("resources[%d].blocked", i), r.Blocked)
		if err != nil {
			return nil, err
		}
		inst.blocked[r.ID] = blocked
		switch r.Kind {
		case ResourceRoom:
			inst.rooms = append(inst.rooms, r)
		case ResourceInstructor:
			inst.instructors = append(inst.instructors, r)
		}
		inst.resourceIdx[r.ID] = nil
	}
	sort.Slice(inst.rooms, func(i, j int) bool { return inst.rooms[i].ID < inst.rooms[j].ID })
	sort.Slice(inst.instructors, func(i, j int) bool { return inst.instructors[i].ID < inst.instructors[j].ID })
	for i := range inst.rooms {
		inst.resourceIdx[inst.rooms[i].ID] = &inst.rooms[i]
	}
	for i := range inst.instructors {
		inst.resourceIdx[inst.instructors[i].ID] = &inst.instructors[i]
	}

	// ── 学生群体 ──
	inst.groups = append([]StudentGroup(nil), in.Groups...)
	sort.Slice(inst.groups, func(i, j int) bool { return inst.groups[i].ID < inst.groups[j].ID })
	for i, g := range inst.groups {
		if _, dup := inst.groupIdx[g.ID]; dup {
			return nil, pkgerrors.NewMalformedInput("groups.id", g.ID, "学生群体 ID 重复")
		}
		inst.groupIdx[g.ID] = i
		blocked, err := inst.blockedSet(fmt.Sprintf("groups[%s].blocked", g.ID), g.Blocked)
		if err != nil {
			return nil, err
		}
		inst.groupBlocked[g.ID] = blocked
	}
	for _, g := range inst.groups {
		for _, other := range g.ConflictsWith {
			if _, ok := inst.groupIdx[other]; !ok {
				return nil, pkgerrors.NewMalformedInput(fmt.Sprintf("groups[%s].conflicts_with", g.ID), other, "引用了不存在的学生群体")
			}
			inst.addGroupConflict(g.ID, other)
		}
	}

	// ── 排课单元 ──
	if len(in.Sessions) > 0 && len(inst.rooms) == 0 {
		return nil, pkgerrors.NewMalformedInput("resources", nil, "至少需要一间教室")
	}
	inst.sessions = append([]Session(nil), in.Sessions...)
	sort.Slice(inst.sessions, func(i, j int) bool { return inst.sessions[i].ID < inst.sessions[j].ID })
	for i := range inst.sessions {
		s := &inst.sessions[i]
		if _, dup := inst.sessionIdx[s.ID]; dup {
			return nil, pkgerrors.NewMalformedInput("sessions.id", s.ID, "排课单元 ID 重复")
		}
		inst.sessionIdx[s.ID] = i
		if err := inst.checkSessionRefs(s); err != nil {
			return nil, err
		}
	}

	return inst, nil
}

func (inst *Instance) blockedSet(field string, slots []TimeSlot) (map[TimeSlot]bool, error) {
	set := make(map[TimeSlot]bool, len(slots))
	for _, ts := range slots {
		if _, ok := inst.slotIdx[ts]; !ok {
			return nil, pkgerrors.NewMalformedInput(field, ts.String(), "不可用时间不在时间段全集内")
		}
		set[ts] = true
	}
	return set, nil
}

func (inst *Instance) addGroupConflict(a, b string) {
	if inst.groupConflict[a] == nil {
		inst.groupConflict[a] = make(map[string]bool)
	}
	if inst.groupConflict[b] == nil {
		inst.groupConflict[b] = make(map[string]bool)
	}
	inst.groupConflict[a][b] = true
	inst.groupConflict[b][a] = true
}

// checkSessionRefs 校验单个排课单元的引用完整性
func (inst *Instance) checkSessionRefs(s *Session) error {
	field := func(name string) string { return fmt.Sprintf("sessions[%s].%s", s.ID, name) }

	seen := make(map[string]bool, len(s.InstructorIDs))
	for _, id := range s.InstructorIDs {
		if _, ok := inst.Instructor(id); !ok {
			return pkgerrors.NewMalformedInput(field("instructor_ids"), id, "引用了不存在的教师")
		}
		if seen[id] {
			return pkgerrors.NewMalformedInput(field("instructor_ids"), id, "候选教师重复")
		}
		seen[id] = true
	}
	for _, id := range s.GroupIDs {
		if _, ok := inst.groupIdx[id]; !ok {
			return pkgerrors.NewMalformedInput(field("group_ids"), id, "引用了不存在的学生群体")
		}
	}
	for _, id := range s.PreferredRoomIDs {
		if _, ok := inst.Room(id); !ok {
			return pkgerrors.NewMalformedInput(field("preferred_room_ids"), id, "引用了不存在的教室")
		}
	}
	if s.RequiredRoomID != "" {
		if _, ok := inst.Room(s.RequiredRoomID); !ok {
			return pkgerrors.NewMalformedInput(field("required_room_id"), s.RequiredRoomID, "引用了不存在的教室")
		}
	}
	if s.FixedDay > 0 && s.FixedPeriod > 0 {
		if !inst.HasSlot(TimeSlot{Day: s.FixedDay, Period: s.FixedPeriod}) {
			return pkgerrors.NewMalformedInput(field("fixed_period"), s.FixedPeriod, "固定时间不在时间段全集内")
		}
	}
	return nil
}

// ── 只读访问 ──

// Sessions 按 ID 升序返回全部排课单元（调用方不得修改）
func (inst *Instance) Sessions() []Session { return inst.sessions }

// Rooms 按 ID 升序返回全部教室
func (inst *Instance) Rooms() []Resource { return inst.rooms }

// Instructors 按 ID 升序返回全部教师
func (inst *Instance) Instructors() []Resource { return inst.instructors }

// Groups 按 ID 升序返回全部学生群体
func (inst *Instance) Groups() []StudentGroup { return inst.groups }

// TimeSlots 按 (Day, Period) 升序返回时间段全集
func (inst *Instance) TimeSlots() []TimeSlot { return inst.slots }

// Days 返回出现在时间段全集中的星期（升序）
func (inst *Instance) Days() []int {
	var days []int
	for _, ts := range inst.slots {
		if len(days) == 0 || days[len(days)-1] != ts.Day {
			days = append(days, ts.Day)
		}
	}
	return days
}

func (inst *Instance) Session(id string) (*Session, bool) {
	i, ok := inst.sessionIdx[id]
	if !ok {
		return nil, false
	}
	return &inst.sessions[i], true
}

// SessionIndex 返回排课单元在 Sessions() 中的下标
func (inst *Instance) SessionIndex(id string) (int, bool) {
	i, ok := inst.sessionIdx[id]
	return i, ok
}

func (inst *Instance) Resource(id string) (*Resource, bool) {
	r, ok := inst.resourceIdx[id]
	return r, ok && r != nil
}

func (inst *Instance) Room(id string) (*Resource, bool) {
	r, ok := inst.Resource(id)
	if !ok || r.Kind != ResourceRoom {
		return nil, false
	}
	return r, true
}

func (inst *Instance) Instructor(id string) (*Resource, bool) {
	r, ok := inst.Resource(id)
	if !ok || r.Kind != ResourceInstructor {
		return nil, false
	}
	return r, true
}

func (inst *Instance) Group(id string) (*StudentGroup, bool) {
	i, ok := inst.groupIdx[id]
	if !ok {
		return nil, false
	}
	return &inst.groups[i], true
}

// HasSlot 判断节次是否属于运行时段（即作息时间内）
func (inst *Instance) HasSlot(t TimeSlot) bool {
	_, ok := inst.slotIdx[t]
	return ok
}

// SlotIndex 返回节次在 TimeSlots() 中的下标
func (inst *Instance) SlotIndex(t TimeSlot) (int, bool) {
	i, ok := inst.slotIdx[t]
	return i, ok
}

// Period 返回节次的时钟标签
func (inst *Instance) Period(index int) (PeriodLabel, bool) {
	p, ok := inst.periods[index]
	return p, ok
}

// WithinHours 判断一段连续占用是否完整落在作息时间内
func (inst *Instance) WithinHours(r Run) bool {
	if r.Length < 1 {
		return false
	}
	for p := r.Start.Period; p < r.End(); p++ {
		if !inst.HasSlot(TimeSlot{Day: r.Start.Day, Period: p}) {
			return false
		}
	}
	return true
}

// ResourceBlocked 资源在该节次是否不可用
func (inst *Instance) ResourceBlocked(resourceID string, t TimeSlot) bool {
	return inst.blocked[resourceID][t]
}

// GroupBlocked 学生群体在该节次是否不可用
func (inst *Instance) GroupBlocked(groupID string, t TimeSlot) bool {
	return inst.groupBlocked[groupID][t]
}

// GroupsClash 两组学生群体是否不能同时上课（存在相同群体或互斥群体）
func (inst *Instance) GroupsClash(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y || inst.groupConflict[x][y] {
				return true
			}
		}
	}
	return false
}

// Headcount 若干学生群体的总人数
func (inst *Instance) Headcount(groupIDs []string) int {
	total := 0
	for _, id := range groupIDs {
		if g, ok := inst.Group(id); ok {
			total += g.Size
		}
	}
	return total
}
