package model

// ResourceKind 资源类型
type ResourceKind string

const (
	ResourceRoom       ResourceKind = "room"
	ResourceInstructor ResourceKind = "instructor"
)

// Resource 教室或教师
// Blocked 为不可用节次（教师请假、教室维修等）
type Resource struct {
	ID           string       `json:"id"                       validate:"required"`
	Name         string       `json:"name,omitempty"`
	Kind         ResourceKind `json:"kind"                     validate:"oneof=room instructor"`
	Capabilities []string     `json:"capabilities,omitempty"   validate:"dive,required"`
	Capacity     int          `json:"capacity,omitempty"       validate:"min=0"` // 教室容量，0 表示不限
	MaxDailyLoad int          `json:"max_daily_load,omitempty" validate:"min=0"` // 教师每日最多节次，0 表示不限
	Blocked      []TimeSlot   `json:"blocked,omitempty"        validate:"dive"`
}

// HasCapabilities 判断资源是否具备全部所需能力标签
func (r *Resource) HasCapabilities(required []string) bool {
	for _, c := range required {
		if !containsString(r.Capabilities, c) {
			return false
		}
	}
	return true
}

// StudentGroup 学生群体（行政班、选课组等）
// ConflictsWith 列出不可与之同时上课的其他群体，关系对称
type StudentGroup struct {
	ID            string     `json:"id"                       validate:"required"`
	Name          string     `json:"name,omitempty"`
	Size          int        `json:"size,omitempty"           validate:"min=0"`
	Blocked       []TimeSlot `json:"blocked,omitempty"        validate:"dive"`
	ConflictsWith []string   `json:"conflicts_with,omitempty" validate:"dive,required"`
}
