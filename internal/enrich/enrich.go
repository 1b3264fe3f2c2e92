// Package enrich 为已通过校验的课表计算负荷与质量统计。
package enrich

import (
	"sort"

	"github.com/sujith-eag/timetable-builder/internal/constraint"
	"github.com/sujith-eag/timetable-builder/internal/model"
	"github.com/sujith-eag/timetable-builder/internal/validator"
	pkgerrors "github.com/sujith-eag/timetable-builder/pkg/errors"
)

// Enrich 返回附带富化元数据的新课表
// 先以 reg 重新校验，课表附带的报告不作为依据；存在任何违反即返回 *errors.PreconditionError
// reg 必须至少注册一条硬约束
func Enrich(reg *constraint.Registry, sched *model.Schedule) (*model.Schedule, error) {
	if sched == nil {
		return nil, pkgerrors.NewPrecondition("enrich", "课表不能为空")
	}
	if reg == nil || len(reg.HardConstraints()) == 0 {
		return nil, pkgerrors.NewPrecondition("enrich", "未注册任何硬约束，无法认证课表")
	}
	report := validator.Validate(reg, sched)
	if st := report.Status(); st != model.StatusValid {
		return nil, pkgerrors.NewPrecondition("enrich", "课表状态为 %s（%d 条违反），只有通过校验的课表才能富化", st, len(report.Violations))
	}
	sched = sched.WithReport(report)

	inst := sched.Instance()
	a := sched.Assignment()
	universe := len(inst.TimeSlots())

	e := model.Enrichment{
		Rooms:       loads(inst, a.ByRoom(inst), inst.Rooms(), universe),
		Instructors: loads(inst, a.ByInstructor(inst), inst.Instructors(), universe),
	}
	groups := a.ByGroup(inst)
	for _, g := range inst.Groups() {
		e.Groups = append(e.Groups, load(inst, g.ID, g.Name, groups[g.ID], universe))
	}
	e.Summary = summarize(inst, a, e)
	return sched.WithEnrichment(e), nil
}

func loads(inst *model.Instance, occ map[string][]model.Occupancy, resources []model.Resource, universe int) []model.ResourceLoad {
	out := make([]model.ResourceLoad, 0, len(resources))
	for _, r := range resources {
		out = append(out, load(inst, r.ID, r.Name, occ[r.ID], universe))
	}
	return out
}

func load(inst *model.Instance, id, name string, occ []model.Occupancy, universe int) model.ResourceLoad {
	l := model.ResourceLoad{
		ID:         id,
		Name:       name,
		Sessions:   len(occ),
		DailySlots: make(map[int]int),
		IdleGaps:   model.IdleGaps(inst, occ),
	}
	for _, o := range occ {
		l.Slots += o.Run.Length
		l.DailySlots[o.Run.Start.Day] += o.Run.Length
	}
	if universe > 0 {
		l.Utilization = float64(l.Slots) / float64(universe)
	}
	return l
}

func summarize(inst *model.Instance, a *model.Assignment, e model.Enrichment) model.Summary {
	sum := model.Summary{Sessions: a.Len()}

	// 按时间段去重统计被占用的节次与每日课量
	used := make(map[model.TimeSlot]bool)
	daily := make(map[int]int)
	for _, p := range a.Placements() {
		s, ok := inst.Session(p.SessionID)
		if !ok {
			continue
		}
		run := s.Run(p.Start)
		daily[run.Start.Day] += run.Length
		for _, ts := range run.Slots() {
			used[ts] = true
		}
	}
	sum.SlotsUsed = len(used)
	sum.DaysUsed = len(daily)

	days := make([]int, 0, len(daily))
	for d := range daily {
		days = append(days, d)
	}
	sort.Ints(days)
	for _, d := range days {
		if daily[d] > sum.BusiestDayLoad {
			sum.BusiestDay = d
			sum.BusiestDayLoad = daily[d]
		}
	}

	for _, l := range e.Instructors {
		sum.TotalIdleGaps += l.IdleGaps
	}
	for _, l := range e.Groups {
		sum.TotalIdleGaps += l.IdleGaps
	}

	if n := len(e.Rooms); n > 0 {
		total := 0.0
		for _, l := range e.Rooms {
			total += l.Utilization
		}
		sum.RoomUtilization = total / float64(n)
	}
	return sum
}
