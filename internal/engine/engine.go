// Package engine 排课引擎：带前向检查的回溯搜索。
//
// 每次 Solve 在私有的 search 状态上运行，使用显式决策栈而不是递归；
// 硬约束通过 constraint 包的能力接口参与静态过滤、前向检查或回退求值，
// 软约束通过边际代价参与值排序与分支定界。
package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sujith-eag/timetable-builder/internal/constraint"
	"github.com/sujith-eag/timetable-builder/internal/model"
)

// ── 引擎错误 ──
// 无解与超时是 Result 状态，不是错误

var (
	ErrNilInstance   = errors.New("问题实例不能为空")
	ErrNilRegistry   = errors.New("约束注册表不能为空")
	ErrInvalidConfig = errors.New("引擎配置无效")
)

// Solve 为 inst 的全部排课单元寻找满足所有硬约束的落位
// 调用时封存 reg，之后注册表只读
func Solve(ctx context.Context, inst *model.Instance, reg *constraint.Registry, cfg Config) (*Result, error) {
	if inst == nil {
		return nil, ErrNilInstance
	}
	if reg == nil {
		return nil, ErrNilRegistry
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	reg.Seal()

	res := newSearch(ctx, inst, reg, cfg).run()

	cfg.logger().Info("排课求解结束",
		zap.String("status", string(res.Status)),
		zap.Int("sessions", len(inst.Sessions())),
		zap.Int("placed", res.Placed()),
		zap.Int("backtracks", res.Stats.Backtracks),
		zap.Int("solutions", res.Stats.Solutions),
		zap.Float64("penalty", res.Penalty),
		zap.Int64("seed", res.Stats.Seed),
		zap.Duration("elapsed", res.Stats.Elapsed),
		zap.String("reason", res.Reason),
	)
	return res, nil
}
