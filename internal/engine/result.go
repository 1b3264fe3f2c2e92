package engine

import (
	"time"

	"github.com/sujith-eag/timetable-builder/internal/model"
)

// Status 求解结果状态
type Status string

const (
	StatusComplete   Status = "complete"
	StatusInfeasible Status = "infeasible"
	StatusTimeout    Status = "timeout"
)

// Result 求解结果
// Complete 时 Schedule 为全部落位的课表；否则 Partial 保留落位最多的部分解，
// Unplaced 给出每个未落位排课单元的冲突诊断
type Result struct {
	Status   Status          `json:"status"`
	Schedule *model.Schedule `json:"-"`
	Partial  *model.Schedule `json:"-"`
	Penalty  float64         `json:"penalty"`
	Reason   string          `json:"reason"`
	Unplaced []Unplaced      `json:"unplaced,omitempty"`
	Attempt  int             `json:"attempt"`
	Stats    Stats           `json:"stats"`
}

// Best 返回最佳课表：Complete 时为完整课表，否则为部分解
func (r *Result) Best() *model.Schedule {
	if r.Schedule != nil {
		return r.Schedule
	}
	return r.Partial
}

// Placed 已落位的排课单元数
func (r *Result) Placed() int {
	if s := r.Best(); s != nil {
		return len(s.Placements())
	}
	return 0
}

// Unplaced 未落位排课单元的诊断
type Unplaced struct {
	SessionID string     `json:"session_id"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
	BlockedBy []string   `json:"blocked_by,omitempty"`
}

// Conflict 某硬约束排除的候选数
type Conflict struct {
	ConstraintID string `json:"constraint_id"`
	Candidates   int    `json:"candidates"`
}

// Stats 搜索统计
type Stats struct {
	Candidates int           `json:"candidates"` // 静态过滤后的候选总数
	Placements int           `json:"placements"`
	Backtracks int           `json:"backtracks"`
	Solutions  int           `json:"solutions"`
	Elapsed    time.Duration `json:"elapsed"`
	Seed       int64         `json:"seed"`
}
