// Package path chooses where a unit walks on its turn. Two searches run back
// to back: a breadth-first search picks the nearest reachable square next to
// an enemy, then a best-first search picks the first step toward it. Both
// resolve ties by reading order.
package path

import (
	"container/heap"
	"slices"

	"github.com/cory-johannsen/skirmish/internal/game/grid"
	"github.com/cory-johannsen/skirmish/internal/game/unit"
)

// Unreachable is the distance reported for cells no path reaches.
const Unreachable = -1

// expand appends the open neighbours of p to buf in reading order.
func expand(s *unit.Set, p grid.Pos, buf []grid.Pos) []grid.Pos {
	for _, d := range grid.Offsets {
		n := p.Add(d)
		if s.IsOpen(n) {
			buf = append(buf, n)
		}
	}
	return buf
}

// AdjacentEnemy reports whether a living enemy of h stands next to it.
//
// Precondition: h is alive.
func AdjacentEnemy(s *unit.Set, h unit.Handle) bool {
	u, _ := s.Get(h)
	for _, d := range grid.Offsets {
		other, ok := s.At(u.Pos.Add(d))
		if !ok {
			continue
		}
		if o, _ := s.Get(other); o.Faction != u.Faction {
			return true
		}
	}
	return false
}

// InRange returns every open cell adjacent to a living enemy of h, without
// duplicates, in reading order.
//
// Precondition: h is alive.
func InRange(s *unit.Set, h unit.Handle) []grid.Pos {
	u, _ := s.Get(h)
	seen := make(map[grid.Pos]struct{})
	var out []grid.Pos
	var buf [4]grid.Pos
	for _, e := range s.EnemiesOf(u.Faction) {
		enemy, _ := s.Get(e)
		for _, n := range expand(s, enemy.Pos, buf[:0]) {
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	slices.SortFunc(out, grid.CompareReading)
	return out
}

// Distances runs a breadth-first search from origin over open cells and
// returns the step count to every cell, indexed by grid.Map.Index. The origin
// is always the start of the search even when a unit stands on it.
//
// Postcondition: Unreached cells hold Unreachable; the origin holds 0.
func Distances(s *unit.Set, origin grid.Pos) []int {
	m := s.Map()
	dist := make([]int, m.Len())
	for i := range dist {
		dist[i] = Unreachable
	}
	if !m.InBounds(origin) {
		return dist
	}
	dist[m.Index(origin)] = 0
	queue := []grid.Pos{origin}
	var buf [4]grid.Pos
	for head := 0; head < len(queue); head++ {
		p := queue[head]
		d := dist[m.Index(p)]
		for _, n := range expand(s, p, buf[:0]) {
			idx := m.Index(n)
			if dist[idx] != Unreachable {
				continue
			}
			dist[idx] = d + 1
			queue = append(queue, n)
		}
	}
	return dist
}

// NearestTarget picks the target reachable from origin in the fewest steps,
// breaking ties by reading order. The search stops after the first distance
// layer containing a target.
//
// Postcondition: Returns (target, distance, true), or ok == false if no
// target is reachable.
func NearestTarget(s *unit.Set, origin grid.Pos, targets []grid.Pos) (grid.Pos, int, bool) {
	m := s.Map()
	if len(targets) == 0 || !m.InBounds(origin) {
		return grid.Pos{}, Unreachable, false
	}
	wanted := make([]bool, m.Len())
	for _, t := range targets {
		if m.InBounds(t) {
			wanted[m.Index(t)] = true
		}
	}

	visited := make([]bool, m.Len())
	visited[m.Index(origin)] = true
	layer := []grid.Pos{origin}
	var buf [4]grid.Pos
	for depth := 0; len(layer) > 0; depth++ {
		best, found := grid.Pos{}, false
		for _, p := range layer {
			if wanted[m.Index(p)] && (!found || grid.ReadingLess(p, best)) {
				best, found = p, true
			}
		}
		if found {
			return best, depth, true
		}
		var next []grid.Pos
		for _, p := range layer {
			for _, n := range expand(s, p, buf[:0]) {
				idx := m.Index(n)
				if visited[idx] {
					continue
				}
				visited[idx] = true
				next = append(next, n)
			}
		}
		layer = next
	}
	return grid.Pos{}, Unreachable, false
}

// node is a best-first frontier entry.
type node struct {
	pos  grid.Pos
	cost int // steps from the target
	est  int // cost + heuristic
}

type frontier []node

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].est != f[j].est {
		return f[i].est < f[j].est
	}
	return f[i].cost > f[j].cost
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)   { *f = append(*f, x.(node)) }
func (f *frontier) Pop() any {
	old := *f
	n := old[len(old)-1]
	*f = old[:len(old)-1]
	return n
}

// FirstStep chooses the open neighbour of origin lying on a shortest path to
// target. Among equally short candidates the neighbour first in reading order
// wins; the heuristic only orders the search and never decides a tie.
//
// The search runs from target back toward origin with the admissible
// heuristic max(manhattan(n, origin)-1, 0), which is zero exactly on the
// neighbours of origin.
//
// Precondition: target is open.
// Postcondition: Returns (step, true), or ok == false when no neighbour of
// origin reaches target.
func FirstStep(s *unit.Set, origin, target grid.Pos) (grid.Pos, bool) {
	candidates := expand(s, origin, nil)
	if len(candidates) == 0 || !s.IsOpen(target) {
		return grid.Pos{}, false
	}

	m := s.Map()
	isCandidate := make([]bool, m.Len())
	for _, c := range candidates {
		isCandidate[m.Index(c)] = true
	}
	heuristic := func(p grid.Pos) int {
		if h := grid.Manhattan(p, origin) - 1; h > 0 {
			return h
		}
		return 0
	}

	cost := make([]int, m.Len())
	for i := range cost {
		cost[i] = Unreachable
	}
	cost[m.Index(target)] = 0
	open := &frontier{{pos: target, cost: 0, est: heuristic(target)}}

	best := Unreachable
	var hits []grid.Pos
	var buf [4]grid.Pos
	for open.Len() > 0 {
		cur := heap.Pop(open).(node)
		if best != Unreachable && cur.est > best {
			break
		}
		if cur.cost > cost[m.Index(cur.pos)] {
			continue
		}
		if isCandidate[m.Index(cur.pos)] {
			best = cur.cost
			hits = append(hits, cur.pos)
		}
		for _, n := range expand(s, cur.pos, buf[:0]) {
			idx := m.Index(n)
			next := cur.cost + 1
			if cost[idx] != Unreachable && cost[idx] <= next {
				continue
			}
			cost[idx] = next
			heap.Push(open, node{pos: n, cost: next, est: next + heuristic(n)})
		}
	}
	if len(hits) == 0 {
		return grid.Pos{}, false
	}
	return slices.MinFunc(hits, grid.CompareReading), true
}

// NextStep runs the movement phase decision for h: no move when an enemy is
// already adjacent, otherwise the first step toward the nearest in-range
// square.
//
// Precondition: h is alive.
// Postcondition: Returns (step, true) when h should move, ok == false otherwise.
func NextStep(s *unit.Set, h unit.Handle) (grid.Pos, bool) {
	if AdjacentEnemy(s, h) {
		return grid.Pos{}, false
	}
	u, _ := s.Get(h)
	target, _, ok := NearestTarget(s, u.Pos, InRange(s, h))
	if !ok {
		return grid.Pos{}, false
	}
	return FirstStep(s, u.Pos, target)
}
