package model

import "fmt"

// TimeSlot 离散时间单元，由 (星期, 节次) 唯一确定
// Day 取值 1-7（周一为 1），Period 从 1 开始
type TimeSlot struct {
	Day    int `json:"day"    validate:"min=1,max=7"`
	Period int `json:"period" validate:"min=1"`
}

func (t TimeSlot) String() string { return fmt.Sprintf("D%dP%d", t.Day, t.Period) }

// Before 按 (Day, Period) 排序
func (t TimeSlot) Before(o TimeSlot) bool {
	if t.Day != o.Day {
		return t.Day < o.Day
	}
	return t.Period < o.Period
}

// PeriodLabel 节次对应的时钟时间（仅用于展示、ICS 映射与导出）
type PeriodLabel struct {
	Index int    `json:"index" validate:"min=1"`
	Start string `json:"start" validate:"required,len=5"` // HH:MM
	End   string `json:"end"   validate:"required,len=5"`
}

// Run 一次排课占用的连续节次：同一天内 [Start.Period, Start.Period+Length)
type Run struct {
	Start  TimeSlot
	Length int
}

// End 返回最后一个被占用节次之后的节次号（开区间）
func (r Run) End() int { return r.Start.Period + r.Length }

// Slots 展开为逐个 TimeSlot
func (r Run) Slots() []TimeSlot {
	out := make([]TimeSlot, 0, r.Length)
	for p := r.Start.Period; p < r.End(); p++ {
		out = append(out, TimeSlot{Day: r.Start.Day, Period: p})
	}
	return out
}

// Contains 判断某个节次是否落在该区间内
func (r Run) Contains(t TimeSlot) bool {
	return t.Day == r.Start.Day && t.Period >= r.Start.Period && t.Period < r.End()
}

// Overlaps 两段占用是否存在公共节次
func (r Run) Overlaps(o Run) bool {
	if r.Start.Day != o.Start.Day {
		return false
	}
	return r.Start.Period < o.End() && o.Start.Period < r.End()
}

// FirstOverlap 返回两段占用的第一个公共节次
func (r Run) FirstOverlap(o Run) (TimeSlot, bool) {
	if !r.Overlaps(o) {
		return TimeSlot{}, false
	}
	p := r.Start.Period
	if o.Start.Period > p {
		p = o.Start.Period
	}
	return TimeSlot{Day: r.Start.Day, Period: p}, true
}
