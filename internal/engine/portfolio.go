package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sujith-eag/timetable-builder/internal/constraint"
	"github.com/sujith-eag/timetable-builder/internal/model"
)

// Strategy 组合求解的结果选取策略
type Strategy string

const (
	// StrategyFirst 第一个完整解胜出，其余尝试协作取消
	StrategyFirst Strategy = "first"
	// StrategyBest 等待全部尝试，取惩罚分最低者（平局取序号最小）
	StrategyBest Strategy = "best"
)

// PortfolioConfig 组合求解配置
type PortfolioConfig struct {
	Attempts int      `json:"attempts"`
	Strategy Strategy `json:"strategy"`
}

// SolvePortfolio 以种子 seed, seed+1, ... 并发运行多个相互独立的求解
// 每个尝试持有私有状态；cfg.Tracer 不会传给各尝试
func SolvePortfolio(ctx context.Context, inst *model.Instance, reg *constraint.Registry, cfg Config, pc PortfolioConfig) (*Result, error) {
	if pc.Attempts <= 1 {
		return Solve(ctx, inst, reg, cfg)
	}
	if pc.Strategy == "" {
		pc.Strategy = StrategyBest
	}
	if pc.Strategy != StrategyFirst && pc.Strategy != StrategyBest {
		return nil, fmt.Errorf("%w: 未知策略 %q", ErrInvalidConfig, pc.Strategy)
	}
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

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*Result, pc.Attempts)
	winner := -1
	var once sync.Once

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < pc.Attempts; i++ {
		i := i
		attempt := cfg
		attempt.RandomSeed = cfg.RandomSeed + int64(i)
		attempt.Tracer = nil
		g.Go(func() error {
			res, err := Solve(gctx, inst, reg, attempt)
			if err != nil {
				return err
			}
			res.Attempt = i
			results[i] = res
			if pc.Strategy == StrategyFirst && res.Status == StatusComplete {
				once.Do(func() {
					winner = i
					cancel()
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if winner >= 0 {
		return results[winner], nil
	}
	return pickBest(results), nil
}

// pickBest 完整解优先取惩罚分最低；否则取落位最多的部分解
// 任一尝试穷尽了搜索空间即可判定无解，结论与原因取自该尝试
func pickBest(results []*Result) *Result {
	var best, exhausted *Result
	for _, r := range results {
		if r.Status == StatusInfeasible && (exhausted == nil || better(r, exhausted)) {
			exhausted = r
		}
		if best == nil || better(r, best) {
			best = r
		}
	}
	if best.Status == StatusComplete || exhausted == nil {
		return best
	}
	if exhausted.Placed() >= best.Placed() {
		return exhausted
	}

	// 超时尝试的部分解落位更多：保留其部分解，状态与原因改用穷尽的尝试
	out := *best
	out.Status = StatusInfeasible
	out.Reason = exhausted.Reason
	return &out
}

func better(r, than *Result) bool {
	rc, tc := r.Status == StatusComplete, than.Status == StatusComplete
	if rc != tc {
		return rc
	}
	if !rc && r.Placed() != than.Placed() {
		return r.Placed() > than.Placed()
	}
	return r.Penalty < than.Penalty-epsilon
}
