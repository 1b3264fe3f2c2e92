// Package constraint 定义排课硬/软约束的能力接口、内置约束与注册表。
//
// 每个约束都是无状态的纯函数，只读 Instance 与 Assignment。
// 引擎通过可选能力接口（Unary / Pairwise / Coster / Monotone）加速搜索，
// 新增约束只需实现相应接口并注册，无需改动引擎。
package constraint

import "github.com/sujith-eag/timetable-builder/internal/model"

// Constraint 所有约束的公共能力
type Constraint interface {
	ID() string
}

// Hard 硬约束：返回违反集合，为空即满足
type Hard interface {
	Constraint
	Evaluate(inst *model.Instance, a *model.Assignment) model.ViolationSet
}

// Soft 软约束：返回非负惩罚分
type Soft interface {
	Constraint
	Score(inst *model.Instance, a *model.Assignment) float64
}

// Unary 只涉及单个落位的硬约束，引擎用于候选三元组的静态过滤
type Unary interface {
	Allows(inst *model.Instance, p model.Placement) bool
}

// Pairwise 两两落位之间的硬约束，引擎用于前向检查
type Pairwise interface {
	Compatible(inst *model.Instance, p, q model.Placement) bool
}

// Coster 软约束的边际代价：在 a 的基础上追加 p 带来的得分变化
type Coster interface {
	Cost(inst *model.Instance, a *model.Assignment, p model.Placement) float64
}

// Monotone 标记软约束得分随赋值扩展单调不减，可作为分支定界的下界
type Monotone interface {
	Monotone() bool
}

// IsMonotone 判断软约束是否声明了单调性
func IsMonotone(s Soft) bool {
	m, ok := s.(Monotone)
	return ok && m.Monotone()
}

// runOf 取落位对应的占用区间
func runOf(inst *model.Instance, p model.Placement) (*model.Session, model.Run, bool) {
	s, ok := inst.Session(p.SessionID)
	if !ok {
		return nil, model.Run{}, false
	}
	return s, s.Run(p.Start), true
}

// evaluateUnary 逐个落位调用 allows，不满足者各生成一条违反
func evaluateUnary(id string, inst *model.Instance, a *model.Assignment, allows func(model.Placement) bool, message func(model.Placement) string) model.ViolationSet {
	var out model.ViolationSet
	for _, p := range a.Placements() {
		if allows(p) {
			continue
		}
		start := p.Start
		out = append(out, model.NewViolation(id, message(p), &start, p.SessionID))
	}
	return out
}

// evaluatePairs 对所有落位两两调用 compatible，每个冲突对生成一条违反
func evaluatePairs(id string, inst *model.Instance, a *model.Assignment, compatible func(p, q model.Placement) bool, message func(p, q model.Placement) string) model.ViolationSet {
	var out model.ViolationSet
	ps := a.Placements()
	for i := 0; i < len(ps); i++ {
		for j := i + 1; j < len(ps); j++ {
			if compatible(ps[i], ps[j]) {
				continue
			}
			var slot *model.TimeSlot
			_, ri, ok1 := runOf(inst, ps[i])
			_, rj, ok2 := runOf(inst, ps[j])
			if ok1 && ok2 {
				if ts, ok := ri.FirstOverlap(rj); ok {
					slot = &ts
				}
			}
			out = append(out, model.NewViolation(id, message(ps[i], ps[j]), slot, ps[i].SessionID, ps[j].SessionID))
		}
	}
	return out
}
