package model

import (
	"sort"
	"strings"
)

// Violation 一条硬约束违反：(约束, 涉及的排课单元)
type Violation struct {
	ConstraintID string    `json:"constraint_id"`
	SessionIDs   []string  `json:"session_ids"`
	Slot         *TimeSlot `json:"slot,omitempty"`
	Message      string    `json:"message,omitempty"`
}

// NewViolation 构造 Violation，SessionIDs 去重并排序
func NewViolation(constraintID, message string, slot *TimeSlot, sessionIDs ...string) Violation {
	ids := append([]string(nil), sessionIDs...)
	sort.Strings(ids)
	uniq := ids[:0]
	for i, id := range ids {
		if i == 0 || id != ids[i-1] {
			uniq = append(uniq, id)
		}
	}
	return Violation{ConstraintID: constraintID, SessionIDs: uniq, Slot: slot, Message: message}
}

// Key 用于去重与稳定排序
func (v Violation) Key() string {
	return v.ConstraintID + "|" + strings.Join(v.SessionIDs, ",")
}

// Involves 判断违反是否涉及某排课单元
func (v Violation) Involves(sessionID string) bool {
	return containsString(v.SessionIDs, sessionID)
}

// ViolationSet 违反集合
type ViolationSet []Violation

// Sorted 按 (ConstraintID, SessionIDs) 排序并去重后返回副本
func (vs ViolationSet) Sorted() ViolationSet {
	out := append(ViolationSet(nil), vs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	uniq := out[:0]
	for i, v := range out {
		if i == 0 || v.Key() != out[i-1].Key() {
			uniq = append(uniq, v)
		}
	}
	return uniq
}

// ByConstraint 按约束 ID 过滤
func (vs ViolationSet) ByConstraint(id string) ViolationSet {
	var out ViolationSet
	for _, v := range vs {
		if v.ConstraintID == id {
			out = append(out, v)
		}
	}
	return out
}

// ValidationStatus 课表校验状态
type ValidationStatus string

const (
	StatusUnvalidated ValidationStatus = "unvalidated"
	StatusValid       ValidationStatus = "valid"
	StatusInvalid     ValidationStatus = "invalid"
)

// ValidationReport 校验报告；Violations 为空即合法
type ValidationReport struct {
	Violations ViolationSet `json:"violations"`
	Checked    []string     `json:"checked"` // 参与校验的约束 ID（按注册顺序）
}

// Valid 是否无任何违反
func (r ValidationReport) Valid() bool { return len(r.Violations) == 0 }

// Status 报告对应的课表状态
func (r ValidationReport) Status() ValidationStatus {
	if r.Valid() {
		return StatusValid
	}
	return StatusInvalid
}
