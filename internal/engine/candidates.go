package engine

import (
	"math/rand"
	"sort"

	"github.com/sujith-eag/timetable-builder/internal/model"
)

// candidate 一个候选三元组；rank 用于同代价时的排序
type candidate struct {
	p    model.Placement
	rank int
}

// generate 为每个排课单元生成候选三元组并做静态过滤
// 基础顺序：时间段全集顺序 × 教室 ID × 教师 ID
func (s *search) generate() {
	slots := s.inst.TimeSlots()
	rooms := s.inst.Rooms()

	var rng *rand.Rand
	if s.cfg.RandomSeed != 0 {
		rng = rand.New(rand.NewSource(s.cfg.RandomSeed))
	}

	for si := range s.sessions {
		sess := &s.sessions[si]
		instructors := append([]string(nil), sess.InstructorIDs...)
		sort.Strings(instructors)

		elim := make(map[string]int)
		var cands []candidate
		for _, ts := range slots {
			for _, room := range rooms {
				for _, ins := range instructors {
					p := model.Placement{SessionID: sess.ID, Start: ts, RoomID: room.ID, InstructorID: ins}
					ok := true
					for _, u := range s.unary {
						if !u.c.Allows(s.inst, p) {
							elim[u.id]++
							ok = false
						}
					}
					if ok {
						cands = append(cands, candidate{p: p, rank: len(cands)})
					}
				}
			}
		}
		if rng != nil {
			perm := rng.Perm(len(cands))
			for i := range cands {
				cands[i].rank = perm[i]
			}
		}

		s.cands[si] = cands
		s.eliminated[si] = elim
		s.alive[si] = make([]bool, len(cands))
		for i := range cands {
			s.alive[si][i] = true
		}
		s.live[si] = len(cands)
		s.dead[si] = len(cands) == 0
		if s.dead[si] {
			s.hasDead = true
		}
		s.stats.Candidates += len(cands)
	}
}

// marginal 在当前部分解上追加 p 的加权边际代价，以及其中可用于定界的部分
func (s *search) marginal(p model.Placement) (cost, bound float64) {
	for _, w := range s.soft {
		if w.coster == nil {
			continue
		}
		c := w.weight * w.coster.Cost(s.inst, s.a, p)
		cost += c
		if w.bound {
			bound += c
		}
	}
	return cost, bound
}

// orderValues 当前存活候选按 (边际代价, rank) 升序排列
func (s *search) orderValues(si int) (values []int, costs, bounds []float64) {
	type scored struct {
		c           int
		cost, bound float64
	}
	var live []scored
	for c, cand := range s.cands[si] {
		if !s.alive[si][c] {
			continue
		}
		cost, bound := s.marginal(cand.p)
		live = append(live, scored{c: c, cost: cost, bound: bound})
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].cost != live[j].cost {
			return live[i].cost < live[j].cost
		}
		return s.cands[si][live[i].c].rank < s.cands[si][live[j].c].rank
	})

	values = make([]int, len(live))
	costs = make([]float64, len(live))
	bounds = make([]float64, len(live))
	for i, v := range live {
		values[i], costs[i], bounds[i] = v.c, v.cost, v.bound
	}
	return values, costs, bounds
}
