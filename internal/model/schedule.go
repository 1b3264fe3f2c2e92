package model

import (
	"fmt"

	pkgerrors "github.com/sujith-eag/timetable-builder/pkg/errors"
)

// Schedule 排课输出：冻结的 Assignment + 校验状态 + 富化元数据
// 不可变；附加报告或元数据均返回新的 Schedule
type Schedule struct {
	inst       *Instance
	assignment *Assignment
	report     *ValidationReport
	enrichment *Enrichment
}

// FreezeSchedule 以 a 的快照构建未校验课表（引擎内部使用）
func FreezeSchedule(inst *Instance, a *Assignment) *Schedule {
	return &Schedule{inst: inst, assignment: a.Clone()}
}

// NewSchedule 由外部提供/编辑的落位构建未校验课表
// 仅检查引用完整性，内容是否冲突交由校验器判断
func NewSchedule(inst *Instance, placements []Placement) (*Schedule, error) {
	if inst == nil {
		return nil, pkgerrors.NewMalformedInput("instance", nil, "问题实例不能为空")
	}
	a := NewAssignment()
	for i, p := range placements {
		field := func(name string) string { return fmt.Sprintf("placements[%d].%s", i, name) }
		if _, ok := inst.Session(p.SessionID); !ok {
			return nil, pkgerrors.NewMalformedInput(field("session_id"), p.SessionID, "引用了不存在的排课单元")
		}
		if _, dup := a.Get(p.SessionID); dup {
			return nil, pkgerrors.NewMalformedInput(field("session_id"), p.SessionID, "同一排课单元出现多次")
		}
		if _, ok := inst.Room(p.RoomID); !ok {
			return nil, pkgerrors.NewMalformedInput(field("room_id"), p.RoomID, "引用了不存在的教室")
		}
		if _, ok := inst.Instructor(p.InstructorID); !ok {
			return nil, pkgerrors.NewMalformedInput(field("instructor_id"), p.InstructorID, "引用了不存在的教师")
		}
		a.Set(p)
	}
	return &Schedule{inst: inst, assignment: a}, nil
}

// Instance 课表所属问题实例
func (s *Schedule) Instance() *Instance { return s.inst }

// Assignment 返回落位的副本
func (s *Schedule) Assignment() *Assignment { return s.assignment.Clone() }

// Placements 按 SessionID 升序返回全部落位
func (s *Schedule) Placements() []Placement { return s.assignment.Placements() }

// Placement 查询单个排课单元的落位
func (s *Schedule) Placement(sessionID string) (Placement, bool) {
	return s.assignment.Get(sessionID)
}

// Complete 是否每个排课单元都已落位
func (s *Schedule) Complete() bool {
	return s.assignment.Len() == len(s.inst.Sessions())
}

// Status 校验状态
func (s *Schedule) Status() ValidationStatus {
	if s.report == nil {
		return StatusUnvalidated
	}
	return s.report.Status()
}

// Report 校验报告（未校验时为 nil）
func (s *Schedule) Report() *ValidationReport { return s.report }

// Enrichment 富化元数据（未富化时为 nil）
func (s *Schedule) Enrichment() *Enrichment { return s.enrichment }

// WithReport 返回附带校验报告的新课表；会清除旧的富化结果
func (s *Schedule) WithReport(r ValidationReport) *Schedule {
	c := *s
	c.report = &r
	c.enrichment = nil
	return &c
}

// WithEnrichment 返回附带富化元数据的新课表
func (s *Schedule) WithEnrichment(e Enrichment) *Schedule {
	c := *s
	c.enrichment = &e
	return &c
}
