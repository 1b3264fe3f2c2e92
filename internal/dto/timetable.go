package dto

import "github.com/sujith-eag/timetable-builder/internal/model"

// ── 请求 ──

// SolveOptions 单次求解的引擎参数覆盖（为空的字段沿用服务端配置）
type SolveOptions struct {
	MaxBacktracks    *int               `json:"max_backtracks"     binding:"omitempty,min=-1"`
	WallClockLimitMS *int64             `json:"wall_clock_limit_ms" binding:"omitempty,min=0"`
	RandomSeed       *int64             `json:"random_seed"`
	Improve          *bool              `json:"improve"`
	SoftWeights      map[string]float64 `json:"soft_weights"`
	Attempts         int                `json:"attempts"           binding:"omitempty,min=1,max=16"`
	Strategy         string             `json:"strategy"           binding:"omitempty,oneof=first best"`
	NoCache          bool               `json:"no_cache"`
}

// SolveRequest 求解请求
type SolveRequest struct {
	Problem model.Input   `json:"problem"`
	Options *SolveOptions `json:"options"`
}

// ScheduleRequest 校验 / 富化请求：问题数据 + 外部提供的落位
type ScheduleRequest struct {
	Problem    model.Input       `json:"problem"`
	Placements []model.Placement `json:"placements" binding:"dive"`
}

// RunListRequest 运行记录列表查询参数
type RunListRequest struct {
	Kind       string `form:"kind"       binding:"omitempty,oneof=solve validate"`
	Status     string `form:"status"     binding:"omitempty,oneof=complete infeasible timeout"`
	Validation string `form:"validation" binding:"omitempty,oneof=valid invalid unvalidated"`
	PaginationRequest
}

// ImportAvailabilityRequest ICS 不可用时间导入请求
// Calendar 与 URL 二选一；Periods 为节次时钟标签，用于把事件映射到节次
type ImportAvailabilityRequest struct {
	ResourceID string              `json:"resource_id" binding:"required,max=64"`
	Calendar   string              `json:"calendar"    binding:"required_without=URL"`
	URL        string              `json:"url"         binding:"omitempty,url"`
	Periods    []model.PeriodLabel `json:"periods"     binding:"required,min=1"`
	WeekStart  string              `json:"week_start"  binding:"omitempty,datetime=2006-01-02"`
	Weeks      int                 `json:"weeks"       binding:"omitempty,min=1,max=52"`
}

// ── 响应 ──

// UnplacedResponse 未落位排课单元的诊断
type UnplacedResponse struct {
	SessionID string             `json:"session_id"`
	Conflicts []ConflictResponse `json:"conflicts,omitempty"`
	BlockedBy []string           `json:"blocked_by,omitempty"`
}

// ConflictResponse 淘汰候选的约束及淘汰数量
type ConflictResponse struct {
	ConstraintID string `json:"constraint_id"`
	Candidates   int    `json:"candidates"`
}

// EntryResponse 单个落位（含展示信息）
type EntryResponse struct {
	SessionID    string   `json:"session_id"`
	CourseID     string   `json:"course_id"`
	Title        string   `json:"title,omitempty"`
	Day          int      `json:"day"`
	Period       int      `json:"period"`
	Periods      []int    `json:"periods"`
	StartTime    string   `json:"start_time,omitempty"`
	EndTime      string   `json:"end_time,omitempty"`
	RoomID       string   `json:"room_id"`
	InstructorID string   `json:"instructor_id"`
	GroupIDs     []string `json:"group_ids,omitempty"`
}

// RunResponse 求解 / 校验运行结果
type RunResponse struct {
	RunID      string             `json:"run_id"`
	Kind       string             `json:"kind"`
	Status     string             `json:"status,omitempty"`
	Validation string             `json:"validation"`
	Sessions   int                `json:"sessions"`
	Placed     int                `json:"placed"`
	Penalty    float64            `json:"penalty"`
	Backtracks int                `json:"backtracks"`
	Seed       int64              `json:"seed"`
	ElapsedMS  int64              `json:"elapsed_ms"`
	Reason     string             `json:"reason,omitempty"`
	Cached     bool               `json:"cached"`
	Entries    []EntryResponse    `json:"entries"`
	Violations []model.Violation  `json:"violations"`
	Unplaced   []UnplacedResponse `json:"unplaced,omitempty"`
	Enrichment *model.Enrichment  `json:"enrichment,omitempty"`
	CreatedBy  string             `json:"created_by,omitempty"`
	CreatedAt  string             `json:"created_at"`
}

// RunBrief 运行记录列表项
type RunBrief struct {
	RunID       string  `json:"run_id"`
	Kind        string  `json:"kind"`
	Fingerprint string  `json:"fingerprint"`
	Status      string  `json:"status,omitempty"`
	Validation  string  `json:"validation"`
	Sessions    int     `json:"sessions"`
	Placed      int     `json:"placed"`
	Penalty     float64 `json:"penalty"`
	CreatedBy   string  `json:"created_by,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// EnrichResponse 富化结果
type EnrichResponse struct {
	Validation string            `json:"validation"`
	Enrichment *model.Enrichment `json:"enrichment"`
}

// ImportAvailabilityResponse ICS 导入结果：映射出的不可用节次
type ImportAvailabilityResponse struct {
	ResourceID string           `json:"resource_id"`
	Events     int              `json:"events"`  // 参与映射的事件数
	Skipped    int              `json:"skipped"` // 无法映射到任何节次的事件数
	Blocked    []model.TimeSlot `json:"blocked"`
}
