package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RunKind 运行类型
type RunKind string

const (
	RunSolve    RunKind = "solve"
	RunValidate RunKind = "validate"
)

// ScheduleRun 一次求解或校验的持久化记录
// Problem / Unplaced / Enrichment 以 JSON 文本存入 jsonb 列
type ScheduleRun struct {
	RunID       string  `gorm:"type:uuid;primaryKey" json:"run_id"`
	Kind        RunKind `gorm:"size:16;not null"     json:"kind"`
	Fingerprint string  `gorm:"size:64;index"        json:"fingerprint"`
	Status      string  `gorm:"size:16;not null"     json:"status"`     // complete | infeasible | timeout（校验运行为空）
	Validation  string  `gorm:"size:16;not null"     json:"validation"` // valid | invalid | unvalidated
	Sessions    int     `gorm:"not null"             json:"sessions"`
	Placed      int     `gorm:"not null"             json:"placed"`
	Penalty     float64 `gorm:"not null"             json:"penalty"`
	Backtracks  int     `gorm:"not null"             json:"backtracks"`
	Seed        int64   `gorm:"not null"             json:"seed"`
	ElapsedMS   int64   `gorm:"not null"             json:"elapsed_ms"`
	Reason      string  `gorm:"type:text"            json:"reason,omitempty"`
	Problem     string  `gorm:"type:jsonb;not null"  json:"-"`
	Unplaced    string  `gorm:"type:jsonb"           json:"-"`
	Enrichment  string  `gorm:"type:jsonb"           json:"-"`
	BaseModel

	Entries    []RunEntry     `gorm:"foreignKey:RunID;references:RunID" json:"entries,omitempty"`
	Violations []RunViolation `gorm:"foreignKey:RunID;references:RunID" json:"violations,omitempty"`
}

func (ScheduleRun) TableName() string { return "schedule_runs" }

// BeforeCreate 未指定 RunID 时生成 UUID
func (r *ScheduleRun) BeforeCreate(*gorm.DB) error {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	return nil
}

// RunEntry 运行结果中的一个落位
type RunEntry struct {
	EntryID      uint        `gorm:"primaryKey;autoIncrement" json:"-"`
	RunID        string      `gorm:"type:uuid;index;not null" json:"-"`
	SessionID    string      `gorm:"size:64;not null"         json:"session_id"`
	CourseID     string      `gorm:"size:64"                  json:"course_id"`
	Title        string      `gorm:"size:200"                 json:"title,omitempty"`
	Day          int         `gorm:"not null"                 json:"day"`
	Period       int         `gorm:"not null"                 json:"period"`
	Periods      IntArray    `gorm:"type:int[]"               json:"periods"` // 占用的全部节次
	RoomID       string      `gorm:"size:64;not null"         json:"room_id"`
	InstructorID string      `gorm:"size:64;not null"         json:"instructor_id"`
	GroupIDs     StringArray `gorm:"type:text[]"              json:"group_ids,omitempty"`
}

func (RunEntry) TableName() string { return "run_entries" }

// Placement 还原为模型落位
func (e RunEntry) Placement() Placement {
	return Placement{
		SessionID:    e.SessionID,
		Start:        TimeSlot{Day: e.Day, Period: e.Period},
		RoomID:       e.RoomID,
		InstructorID: e.InstructorID,
	}
}

// RunViolation 运行结果中的一条硬约束违反
type RunViolation struct {
	ViolationID  uint        `gorm:"primaryKey;autoIncrement" json:"-"`
	RunID        string      `gorm:"type:uuid;index;not null" json:"-"`
	ConstraintID string      `gorm:"size:64;not null"         json:"constraint_id"`
	SessionIDs   StringArray `gorm:"type:text[];not null"     json:"session_ids"`
	Day          *int        `json:"day,omitempty"`
	Period       *int        `json:"period,omitempty"`
	Message      string      `gorm:"type:text"                json:"message,omitempty"`
}

func (RunViolation) TableName() string { return "run_violations" }

// NewRunEntries 由课表落位生成持久化记录
func NewRunEntries(inst *Instance, placements []Placement) []RunEntry {
	out := make([]RunEntry, 0, len(placements))
	for _, p := range placements {
		e := RunEntry{
			SessionID:    p.SessionID,
			Day:          p.Start.Day,
			Period:       p.Start.Period,
			RoomID:       p.RoomID,
			InstructorID: p.InstructorID,
		}
		if s, ok := inst.Session(p.SessionID); ok {
			e.CourseID = s.CourseID
			e.Title = s.Title
			e.GroupIDs = append(StringArray(nil), s.GroupIDs...)
			for _, ts := range s.Run(p.Start).Slots() {
				e.Periods = append(e.Periods, ts.Period)
			}
		}
		out = append(out, e)
	}
	return out
}

// NewRunViolations 由违反集合生成持久化记录
func NewRunViolations(vs ViolationSet) []RunViolation {
	out := make([]RunViolation, 0, len(vs))
	for _, v := range vs {
		rv := RunViolation{
			ConstraintID: v.ConstraintID,
			SessionIDs:   append(StringArray{}, v.SessionIDs...),
			Message:      v.Message,
		}
		if v.Slot != nil {
			day, period := v.Slot.Day, v.Slot.Period
			rv.Day, rv.Period = &day, &period
		}
		out = append(out, rv)
	}
	return out
}
