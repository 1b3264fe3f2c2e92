package model

// Enrichment 附加在已校验课表上的派生统计（只读）
type Enrichment struct {
	Rooms       []ResourceLoad `json:"rooms"`
	Instructors []ResourceLoad `json:"instructors"`
	Groups      []ResourceLoad `json:"groups"`
	Summary     Summary        `json:"summary"`
}

// ResourceLoad 单个教室 / 教师 / 学生群体的负荷
type ResourceLoad struct {
	ID          string      `json:"id"`
	Name        string      `json:"name,omitempty"`
	Sessions    int         `json:"sessions"`
	Slots       int         `json:"slots"`       // 占用节次总数
	DailySlots  map[int]int `json:"daily_slots"` // 星期 → 节次数
	IdleGaps    int         `json:"idle_gaps"`
	Utilization float64     `json:"utilization"` // 占用节次 / 时间段全集大小
}

// Summary 课表整体质量概览
type Summary struct {
	Sessions        int     `json:"sessions"`
	SlotsUsed       int     `json:"slots_used"`
	DaysUsed        int     `json:"days_used"`
	BusiestDay      int     `json:"busiest_day"`
	BusiestDayLoad  int     `json:"busiest_day_load"`
	TotalIdleGaps   int     `json:"total_idle_gaps"`
	RoomUtilization float64 `json:"room_utilization"`
}
