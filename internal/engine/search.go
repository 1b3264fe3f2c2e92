package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sujith-eag/timetable-builder/internal/constraint"
	"github.com/sujith-eag/timetable-builder/internal/model"
)

// 浮点累加误差容忍
const epsilon = 1e-9

type unaryCheck struct {
	id string
	c  constraint.Unary
}

type pairCheck struct {
	id string
	c  constraint.Pairwise
}

type weightedSoft struct {
	id     string
	weight float64
	soft   constraint.Soft
	coster constraint.Coster
	bound  bool // 单调且可计算边际代价，参与分支定界
}

// pruneRecord 前向检查剪掉的候选，撤销时恢复
type pruneRecord struct {
	session int
	cand    int
}

// frame 决策栈上的一个选择点
type frame struct {
	session int
	values  []int
	costs   []float64
	bounds  []float64
	next    int
	placed  int // values 下标，-1 表示当前未放置
	pruned  []pruneRecord
}

type stopReason int

const (
	running stopReason = iota
	stopExhausted
	stopBacktracks
	stopDeadline
	stopCancelled
	stopSolved
)

// search 一次求解的全部可变状态，不与其他求解共享
type search struct {
	ctx      context.Context
	inst     *model.Instance
	cfg      Config
	tracer   Tracer
	started  time.Time
	deadline time.Time

	hard     []constraint.Hard
	unary    []unaryCheck
	pairwise []pairCheck
	fallback []constraint.Hard
	soft     []weightedSoft

	sessions   []model.Session
	cands      [][]candidate
	alive      [][]bool
	live       []int
	dead       []bool
	hasDead    bool
	eliminated []map[string]int
	assigned   []bool

	a     *model.Assignment
	stack []*frame
	cost  float64
	bound float64

	best     *model.Assignment
	bestCost float64

	incumbent        *model.Assignment
	incumbentPenalty float64

	stats  Stats
	stop   stopReason
	reason string
}

func newSearch(ctx context.Context, inst *model.Instance, reg *constraint.Registry, cfg Config) *search {
	n := len(inst.Sessions())
	s := &search{
		ctx:        ctx,
		inst:       inst,
		cfg:        cfg,
		tracer:     cfg.tracer(),
		started:    time.Now(),
		hard:       reg.HardConstraints(),
		sessions:   inst.Sessions(),
		cands:      make([][]candidate, n),
		alive:      make([][]bool, n),
		live:       make([]int, n),
		dead:       make([]bool, n),
		eliminated: make([]map[string]int, n),
		assigned:   make([]bool, n),
		a:          model.NewAssignment(),
	}
	if cfg.WallClockLimit > 0 {
		s.deadline = s.started.Add(cfg.WallClockLimit)
	}
	s.stats.Seed = cfg.RandomSeed

	for _, h := range s.hard {
		u, isUnary := h.(constraint.Unary)
		p, isPair := h.(constraint.Pairwise)
		if isUnary {
			s.unary = append(s.unary, unaryCheck{id: h.ID(), c: u})
		}
		if isPair {
			s.pairwise = append(s.pairwise, pairCheck{id: h.ID(), c: p})
		}
		if !isUnary && !isPair {
			s.fallback = append(s.fallback, h)
		}
	}
	for _, sc := range reg.SoftConstraints() {
		w := cfg.weight(sc.ID())
		if w == 0 {
			continue
		}
		ws := weightedSoft{id: sc.ID(), weight: w, soft: sc}
		if c, ok := sc.(constraint.Coster); ok {
			ws.coster = c
			ws.bound = constraint.IsMonotone(sc)
		}
		s.soft = append(s.soft, ws)
	}

	s.generate()
	return s
}

// ════════════════════════════════════════════════════════════
// 主循环：显式决策栈 + 时序回溯
// ════════════════════════════════════════════════════════════

func (s *search) run() *Result {
	descend := true
	for s.stop == running {
		if !s.checkpoint() {
			break
		}
		if descend {
			si, ok := s.selectSession()
			if !ok {
				s.leaf()
				descend = false
				continue
			}
			s.push(si)
			descend = false
		}

		top := s.top()
		if top == nil {
			s.halt(stopExhausted, "已穷尽搜索空间")
			break
		}
		if top.placed >= 0 {
			s.undo(top)
			if s.overBudget() {
				break
			}
		}
		if s.advance(top) {
			descend = true
			continue
		}
		s.stack = s.stack[:len(s.stack)-1]
	}
	return s.result()
}

// checkpoint 在选择点之间检查取消与时间上限
func (s *search) checkpoint() bool {
	if err := s.ctx.Err(); err != nil {
		s.halt(stopCancelled, fmt.Sprintf("求解被取消: %v", err))
		return false
	}
	if !s.deadline.IsZero() && time.Now().After(s.deadline) {
		s.halt(stopDeadline, fmt.Sprintf("超过时间上限 %s", s.cfg.WallClockLimit))
		return false
	}
	return true
}

func (s *search) overBudget() bool {
	if s.cfg.MaxBacktracks >= 0 && s.stats.Backtracks > s.cfg.MaxBacktracks {
		s.halt(stopBacktracks, fmt.Sprintf("回溯次数超过上限 %d", s.cfg.MaxBacktracks))
		return true
	}
	return false
}

func (s *search) halt(r stopReason, reason string) {
	if s.stop != running {
		return
	}
	s.stop = r
	s.reason = reason
}

func (s *search) top() *frame {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

// selectSession 最受约束优先：存活候选最少，平局取 ID 最小
func (s *search) selectSession() (int, bool) {
	best := -1
	for si := range s.sessions {
		if s.assigned[si] || s.dead[si] {
			continue
		}
		if best < 0 || s.live[si] < s.live[best] {
			best = si
		}
	}
	return best, best >= 0
}

func (s *search) push(si int) {
	values, costs, bounds := s.orderValues(si)
	s.stack = append(s.stack, &frame{
		session: si,
		values:  values,
		costs:   costs,
		bounds:  bounds,
		placed:  -1,
	})
}

// advance 尝试栈顶选择点的下一个候选，成功放置且前向检查通过返回 true
func (s *search) advance(f *frame) bool {
	for f.next < len(f.values) {
		i := f.next
		f.next++
		if s.incumbent != nil && s.bound+f.bounds[i] >= s.incumbentPenalty-epsilon {
			continue
		}
		if !s.fallbackAllows(s.cands[f.session][f.values[i]].p) {
			continue
		}
		s.place(f, i)
		if s.forwardCheck(f) {
			return true
		}
		s.undo(f)
		if s.overBudget() {
			return false
		}
	}
	return false
}

func (s *search) place(f *frame, i int) {
	p := s.cands[f.session][f.values[i]].p
	s.a.Set(p)
	s.assigned[f.session] = true
	f.placed = i
	s.cost += f.costs[i]
	s.bound += f.bounds[i]
	s.stats.Placements++
	s.tracer.OnPlace(len(s.stack), p)
	s.recordPartial()
}

// undo 撤销栈顶的放置并按逆序恢复被剪掉的候选
func (s *search) undo(f *frame) {
	i := f.placed
	p := s.cands[f.session][f.values[i]].p
	for j := len(f.pruned) - 1; j >= 0; j-- {
		r := f.pruned[j]
		s.alive[r.session][r.cand] = true
		s.live[r.session]++
	}
	f.pruned = f.pruned[:0]

	s.a.Unset(p.SessionID)
	s.assigned[f.session] = false
	s.cost -= f.costs[i]
	s.bound -= f.bounds[i]
	f.placed = -1
	s.stats.Backtracks++
	s.tracer.OnUndo(len(s.stack), p)
}

// fallbackAllows 对既非单落位也非两两的硬约束，在追加 p 后的赋值上求值
// 当前部分解本身无违反，因此任何违反都由 p 引起
func (s *search) fallbackAllows(p model.Placement) bool {
	if len(s.fallback) == 0 {
		return true
	}
	s.a.Set(p)
	defer s.a.Unset(p.SessionID)
	for _, h := range s.fallback {
		if len(h.Evaluate(s.inst, s.a)) > 0 {
			return false
		}
	}
	return true
}

// forwardCheck 剪掉未落位排课单元中与新落位不相容的候选；出现空域返回 false
func (s *search) forwardCheck(f *frame) bool {
	if len(s.pairwise) == 0 {
		return true
	}
	p := s.cands[f.session][f.values[f.placed]].p
	for sj := range s.sessions {
		if s.assigned[sj] || s.dead[sj] {
			continue
		}
		for c, cand := range s.cands[sj] {
			if !s.alive[sj][c] || s.compatible(p, cand.p) {
				continue
			}
			s.alive[sj][c] = false
			s.live[sj]--
			f.pruned = append(f.pruned, pruneRecord{session: sj, cand: c})
		}
		if s.live[sj] == 0 {
			return false
		}
	}
	return true
}

func (s *search) compatible(p, q model.Placement) bool {
	for _, pc := range s.pairwise {
		if !pc.c.Compatible(s.inst, p, q) {
			return false
		}
	}
	return true
}

// recordPartial 维护最佳部分解：落位最多，平局取累计代价更低
func (s *search) recordPartial() {
	n := s.a.Len()
	if s.best == nil || n > s.best.Len() || (n == s.best.Len() && s.cost < s.bestCost-epsilon) {
		s.best = s.a.Clone()
		s.bestCost = s.cost
	}
}

// leaf 所有可落位的排课单元均已落位
func (s *search) leaf() {
	if s.hasDead {
		s.halt(stopExhausted, "存在没有任何可行候选的排课单元")
		return
	}
	penalty := s.penalty(s.a)
	s.stats.Solutions++
	if s.incumbent == nil || penalty < s.incumbentPenalty-epsilon {
		s.incumbent = s.a.Clone()
		s.incumbentPenalty = penalty
	}
	switch {
	case !s.cfg.Improve:
		s.halt(stopSolved, "已找到完整课表")
	case penalty <= epsilon:
		s.halt(stopSolved, "已找到零惩罚的完整课表")
	}
}

// penalty Σ 权重 × 软约束得分
func (s *search) penalty(a *model.Assignment) float64 {
	total := 0.0
	for _, w := range s.soft {
		total += w.weight * w.soft.Score(s.inst, a)
	}
	return total
}

// ════════════════════════════════════════════════════════════
// 结果与诊断
// ════════════════════════════════════════════════════════════

func (s *search) result() *Result {
	res := &Result{Reason: s.reason, Stats: s.stats}
	res.Stats.Elapsed = time.Since(s.started)

	switch {
	case s.incumbent != nil:
		res.Status = StatusComplete
		res.Schedule = model.FreezeSchedule(s.inst, s.incumbent)
		res.Penalty = s.incumbentPenalty
		return res
	case s.stop == stopExhausted:
		res.Status = StatusInfeasible
	default:
		res.Status = StatusTimeout
	}

	partial := s.best
	if partial == nil {
		partial = model.NewAssignment()
	}
	res.Partial = model.FreezeSchedule(s.inst, partial)
	res.Penalty = s.penalty(partial)
	res.Unplaced = s.diagnose(partial)
	return res
}

// diagnose 对部分解中每个未落位的排课单元，统计各硬约束排除的候选数与阻塞它的已落位单元
func (s *search) diagnose(partial *model.Assignment) []Unplaced {
	placed := partial.Placements()
	work := partial.Clone()

	var out []Unplaced
	for si := range s.sessions {
		sess := &s.sessions[si]
		if _, ok := partial.Get(sess.ID); ok {
			continue
		}
		counts := make(map[string]int, len(s.eliminated[si]))
		for id, n := range s.eliminated[si] {
			counts[id] += n
		}
		blockers := make(map[string]bool)

		for _, cand := range s.cands[si] {
			for _, pc := range s.pairwise {
				hit := false
				for _, q := range placed {
					if !pc.c.Compatible(s.inst, cand.p, q) {
						hit = true
						blockers[q.SessionID] = true
					}
				}
				if hit {
					counts[pc.id]++
				}
			}
			if len(s.fallback) == 0 {
				continue
			}
			work.Set(cand.p)
			for _, h := range s.fallback {
				hit := false
				for _, v := range h.Evaluate(s.inst, work) {
					if !v.Involves(sess.ID) {
						continue
					}
					hit = true
					for _, id := range v.SessionIDs {
						if id != sess.ID {
							blockers[id] = true
						}
					}
				}
				if hit {
					counts[h.ID()]++
				}
			}
			work.Unset(sess.ID)
		}

		u := Unplaced{SessionID: sess.ID}
		for _, h := range s.hard {
			if n := counts[h.ID()]; n > 0 {
				u.Conflicts = append(u.Conflicts, Conflict{ConstraintID: h.ID(), Candidates: n})
			}
		}
		for id := range blockers {
			u.BlockedBy = append(u.BlockedBy, id)
		}
		sort.Strings(u.BlockedBy)
		out = append(out, u)
	}
	return out
}
