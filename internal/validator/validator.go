// Package validator 对任意课表（引擎产出或外部编辑）做硬约束认证。
package validator

import (
	"fmt"

	"github.com/sujith-eag/timetable-builder/internal/constraint"
	"github.com/sujith-eag/timetable-builder/internal/model"
)

// CompletenessID 未落位排课单元对应的违反 ID
const CompletenessID = "Completeness"

// Validate 在完整赋值上求值所有已注册的硬约束，并检查是否每个排课单元都已落位
// 纯函数：不修改 sched；同一输入结果相同
// 违反按约束注册顺序排列，同一约束内按涉及的排课单元排序
func Validate(reg *constraint.Registry, sched *model.Schedule) model.ValidationReport {
	inst := sched.Instance()
	a := sched.Assignment()

	report := model.ValidationReport{Violations: model.ViolationSet{}}
	for _, h := range reg.HardConstraints() {
		report.Checked = append(report.Checked, h.ID())
		report.Violations = append(report.Violations, h.Evaluate(inst, a).Sorted()...)
	}

	report.Checked = append(report.Checked, CompletenessID)
	for _, s := range inst.Sessions() {
		if _, ok := a.Get(s.ID); ok {
			continue
		}
		report.Violations = append(report.Violations,
			model.NewViolation(CompletenessID, fmt.Sprintf("排课单元 %s 未落位", s.ID), nil, s.ID))
	}
	return report
}

// Certify 返回附带校验报告的课表副本
func Certify(reg *constraint.Registry, sched *model.Schedule) *model.Schedule {
	return sched.WithReport(Validate(reg, sched))
}
