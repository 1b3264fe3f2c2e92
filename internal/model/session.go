package model

// Session 一个待排课单元（某课程某教学班的一次课）
// 创建后不可变，引擎只为其生成 Placement
type Session struct {
	ID                   string   `json:"id"                              validate:"required"`
	CourseID             string   `json:"course_id"                       validate:"required"`
	Section              string   `json:"section,omitempty"`
	Title                string   `json:"title,omitempty"`
	Duration             int      `json:"duration"                        validate:"min=1"` // 连续节次数
	RequiredCapabilities []string `json:"required_capabilities,omitempty" validate:"dive,required"`
	InstructorIDs        []string `json:"instructor_ids"                  validate:"min=1,dive,required"` // 候选教师集合
	GroupIDs             []string `json:"group_ids,omitempty"             validate:"dive,required"`
	PreferredRoomIDs     []string `json:"preferred_room_ids,omitempty"    validate:"dive,required"`
	RequiredRoomID       string   `json:"required_room_id,omitempty"`
	FixedDay             int      `json:"fixed_day,omitempty"    validate:"min=0,max=7"` // 0 表示不限
	FixedPeriod          int      `json:"fixed_period,omitempty" validate:"min=0"`       // 0 表示不限
}

// Run 返回该课从 start 开始的占用区间
func (s *Session) Run(start TimeSlot) Run {
	return Run{Start: start, Length: s.Duration}
}

// HasFixedTime 是否指定了固定上课时间
func (s *Session) HasFixedTime() bool {
	return s.FixedDay > 0 || s.FixedPeriod > 0
}

// Teaches 判断 instructorID 是否在候选教师集合中
func (s *Session) Teaches(instructorID string) bool {
	return containsString(s.InstructorIDs, instructorID)
}

// Prefers 判断 roomID 是否在偏好教室中
func (s *Session) Prefers(roomID string) bool {
	return containsString(s.PreferredRoomIDs, roomID)
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
