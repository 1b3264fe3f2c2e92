package constraint

import (
	"errors"
	"fmt"
	"sync"
)

// ── 注册表错误 ──

var (
	ErrRegistrySealed      = errors.New("约束注册表已封存，搜索期间只读")
	ErrDuplicateConstraint = errors.New("约束 ID 重复")
	ErrUnknownKind         = errors.New("约束必须且只能实现 Hard 或 Soft 之一")
)

// Registry 约束注册表
// 初始化阶段只追加；引擎开始搜索前 Seal，之后只读
type Registry struct {
	mu     sync.RWMutex
	hard   []Hard
	soft   []Soft
	ids    map[string]bool
	sealed bool
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]bool)}
}

// Register 注册一个约束
func (r *Registry) Register(c Constraint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrRegistrySealed
	}
	if c == nil || c.ID() == "" {
		return fmt.Errorf("%w: 约束 ID 不能为空", ErrUnknownKind)
	}
	if r.ids[c.ID()] {
		return fmt.Errorf("%w: %s", ErrDuplicateConstraint, c.ID())
	}

	h, isHard := c.(Hard)
	s, isSoft := c.(Soft)
	switch {
	case isHard && !isSoft:
		r.hard = append(r.hard, h)
	case isSoft && !isHard:
		r.soft = append(r.soft, s)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, c.ID())
	}
	r.ids[c.ID()] = true
	return nil
}

// MustRegister 注册多个约束，失败时 panic（仅用于初始化代码）
func (r *Registry) MustRegister(cs ...Constraint) *Registry {
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
	return r
}

// HardConstraints 按注册顺序返回全部硬约束
func (r *Registry) HardConstraints() []Hard {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Hard(nil), r.hard...)
}

// SoftConstraints 按注册顺序返回全部软约束
func (r *Registry) SoftConstraints() []Soft {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Soft(nil), r.soft...)
}

// Has 判断某 ID 是否已注册
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ids[id]
}

// Seal 封存注册表，之后 Register 返回 ErrRegistrySealed
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed 是否已封存
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// DefaultRegistry 注册全部内置硬约束与软约束
func DefaultRegistry() *Registry {
	return NewRegistry().MustRegister(
		InstructorOverlap{},
		RoomOverlap{},
		GroupOverlap{},
		OperatingHours{},
		ResourceAvailability{},
		RoomCapability{},
		RoomCapacity{},
		InstructorEligibility{},
		FixedTime{},
		RequiredRoom{},
		InstructorDailyLoad{},
		PreferredRoom{},
		GroupIdleGap{},
		InstructorIdleGap{},
		CourseSameDay{},
	)
}
