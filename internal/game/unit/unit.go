// Package unit owns the living units of one battle: an arena of unit records
// addressed by stable handles plus an occupancy grid kept in step with every
// move and removal.
package unit

import (
	"errors"
	"fmt"
	"slices"

	"github.com/cory-johannsen/skirmish/internal/game/grid"
)

// ErrInvariant marks a request that the board state cannot honour, such as
// moving into a blocked cell or touching a removed unit. It always indicates a
// defect in the caller.
var ErrInvariant = errors.New("unit invariant violated")

// InvariantError describes a rejected operation.
type InvariantError struct {
	Op     string
	Handle Handle
	Pos    grid.Pos
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s unit %d at %s: %s", ErrInvariant, e.Op, e.Handle, e.Pos, e.Reason)
}

// Unwrap lets errors.Is match ErrInvariant.
func (e *InvariantError) Unwrap() error { return ErrInvariant }

// Faction is the map letter of one side of the battle.
type Faction byte

// String returns the faction letter.
func (f Faction) String() string {
	if f == 0 {
		return ""
	}
	return string(rune(f))
}

// Valid reports whether f is an upper-case ASCII letter.
func (f Faction) Valid() bool { return f >= 'A' && f <= 'Z' }

// ParseFaction converts a one-letter string to a Faction.
//
// Postcondition: Returns a valid Faction or a non-nil error.
func ParseFaction(s string) (Faction, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("faction must be a single letter, got %q", s)
	}
	f := Faction(s[0])
	if !f.Valid() {
		return 0, fmt.Errorf("faction must be an upper-case letter, got %q", s)
	}
	return f, nil
}

// Handle is the stable identity of a unit for the lifetime of a Set.
type Handle int

// None is the occupancy marker for a cell holding no unit.
const None Handle = -1

// Spawn describes a unit placed on the map at battle start.
type Spawn struct {
	Faction Faction
	Pos     grid.Pos
	// HP overrides the default hit points when > 0.
	HP int
}

// Unit is one combatant record.
type Unit struct {
	Handle  Handle
	Faction Faction
	Pos     grid.Pos
	HP      int
	// Dead marks a removed unit. Dead records stay in the arena as tombstones.
	Dead bool
}

// Set is the mutable unit arena of one battle.
// Invariant: occ[i] == h iff units[h] is alive and stands on cell i; every other
// floor cell holds None.
type Set struct {
	grid   *grid.Map
	units  []Unit
	occ    []Handle
	living map[Faction]int
}

// NewSet places spawns on m. Spawns with HP <= 0 receive hitPoints.
//
// Precondition: m must be non-nil; hitPoints > 0.
// Postcondition: Returns a Set whose handles follow the order of spawns, or an
// error if a spawn lies on a wall, outside the map, or on another spawn.
func NewSet(m *grid.Map, spawns []Spawn, hitPoints int) (*Set, error) {
	if hitPoints <= 0 {
		return nil, fmt.Errorf("hit points must be positive, got %d", hitPoints)
	}
	s := &Set{
		grid:   m,
		units:  make([]Unit, 0, len(spawns)),
		occ:    make([]Handle, m.Len()),
		living: make(map[Faction]int),
	}
	for i := range s.occ {
		s.occ[i] = None
	}
	for i, sp := range spawns {
		h := Handle(i)
		if !sp.Faction.Valid() {
			return nil, &InvariantError{Op: "spawn", Handle: h, Pos: sp.Pos, Reason: fmt.Sprintf("invalid faction %q", sp.Faction)}
		}
		if !m.IsOpen(sp.Pos) {
			return nil, &InvariantError{Op: "spawn", Handle: h, Pos: sp.Pos, Reason: "cell is a wall or out of bounds"}
		}
		idx := m.Index(sp.Pos)
		if s.occ[idx] != None {
			return nil, &InvariantError{Op: "spawn", Handle: h, Pos: sp.Pos, Reason: fmt.Sprintf("cell already holds unit %d", s.occ[idx])}
		}
		hp := sp.HP
		if hp <= 0 {
			hp = hitPoints
		}
		s.units = append(s.units, Unit{Handle: h, Faction: sp.Faction, Pos: sp.Pos, HP: hp})
		s.occ[idx] = h
		s.living[sp.Faction]++
	}
	return s, nil
}

// Map returns the static layout the units stand on.
func (s *Set) Map() *grid.Map { return s.grid }

// Len returns the number of handles ever issued, dead ones included.
func (s *Set) Len() int { return len(s.units) }

// Get returns a copy of the unit record for h.
//
// Postcondition: Returns (unit, true) for any issued handle, dead or alive.
func (s *Set) Get(h Handle) (Unit, bool) {
	if h < 0 || int(h) >= len(s.units) {
		return Unit{}, false
	}
	return s.units[h], true
}

// Alive reports whether h names a living unit.
func (s *Set) Alive(h Handle) bool {
	return h >= 0 && int(h) < len(s.units) && !s.units[h].Dead
}

// LivingInReadingOrder returns the living handles sorted by current position.
// The slice is a fresh snapshot; later moves and removals do not alter it.
func (s *Set) LivingInReadingOrder() []Handle {
	out := make([]Handle, 0, len(s.units))
	for _, u := range s.units {
		if !u.Dead {
			out = append(out, u.Handle)
		}
	}
	slices.SortFunc(out, func(a, b Handle) int {
		return grid.CompareReading(s.units[a].Pos, s.units[b].Pos)
	})
	return out
}

// At returns the living unit standing on p.
func (s *Set) At(p grid.Pos) (Handle, bool) {
	if !s.grid.InBounds(p) {
		return None, false
	}
	h := s.occ[s.grid.Index(p)]
	return h, h != None
}

// IsOccupied reports whether p is blocked by a wall, the map edge or a living unit.
func (s *Set) IsOccupied(p grid.Pos) bool {
	if !s.grid.IsOpen(p) {
		return true
	}
	return s.occ[s.grid.Index(p)] != None
}

// IsOpen is the negation of IsOccupied.
func (s *Set) IsOpen(p grid.Pos) bool { return !s.IsOccupied(p) }

// Move relocates h to to, freeing its old cell and blocking the new one in a
// single step.
//
// Precondition: h is alive and to is open.
// Postcondition: Returns an *InvariantError and leaves the Set unchanged if
// the precondition does not hold.
func (s *Set) Move(h Handle, to grid.Pos) error {
	if !s.Alive(h) {
		return &InvariantError{Op: "move", Handle: h, Pos: to, Reason: "unit is not alive"}
	}
	if s.IsOccupied(to) {
		return &InvariantError{Op: "move", Handle: h, Pos: to, Reason: "destination is blocked"}
	}
	u := &s.units[h]
	s.occ[s.grid.Index(u.Pos)] = None
	s.occ[s.grid.Index(to)] = h
	u.Pos = to
	return nil
}

// Damage subtracts amount from h's hit points and removes the unit when they
// reach zero or below.
//
// Precondition: h is alive; amount >= 0.
// Postcondition: Returns the remaining hit points (<= 0 when killed) and
// whether the unit was removed.
func (s *Set) Damage(h Handle, amount int) (int, bool, error) {
	if !s.Alive(h) {
		return 0, false, &InvariantError{Op: "damage", Handle: h, Reason: "unit is not alive"}
	}
	if amount < 0 {
		return 0, false, &InvariantError{Op: "damage", Handle: h, Pos: s.units[h].Pos, Reason: fmt.Sprintf("negative damage %d", amount)}
	}
	u := &s.units[h]
	u.HP -= amount
	if u.HP > 0 {
		return u.HP, false, nil
	}
	hp := u.HP
	if err := s.Remove(h); err != nil {
		return 0, false, err
	}
	return hp, true, nil
}

// Remove kills h and frees its cell immediately. Snapshots taken by
// LivingInReadingOrder keep the handle; callers skip it via Alive.
//
// Precondition: h is alive.
func (s *Set) Remove(h Handle) error {
	if !s.Alive(h) {
		return &InvariantError{Op: "remove", Handle: h, Reason: "unit is not alive"}
	}
	u := &s.units[h]
	s.occ[s.grid.Index(u.Pos)] = None
	u.Dead = true
	s.living[u.Faction]--
	return nil
}

// EnemiesOf returns the living units of every faction other than f, in
// reading order.
func (s *Set) EnemiesOf(f Faction) []Handle {
	var out []Handle
	for _, h := range s.LivingInReadingOrder() {
		if s.units[h].Faction != f {
			out = append(out, h)
		}
	}
	return out
}

// HasEnemies reports whether any living unit opposes f.
func (s *Set) HasEnemies(f Faction) bool {
	for faction, n := range s.living {
		if faction != f && n > 0 {
			return true
		}
	}
	return false
}

// CountByFaction returns the number of living units of f.
func (s *Set) CountByFaction(f Faction) int { return s.living[f] }

// Factions returns every faction that was spawned, sorted by letter.
func (s *Set) Factions() []Faction {
	out := make([]Faction, 0, len(s.living))
	for f := range s.living {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// TotalHitPoints sums the hit points of all living units.
func (s *Set) TotalHitPoints() int {
	total := 0
	for _, u := range s.units {
		if !u.Dead {
			total += u.HP
		}
	}
	return total
}

// Clone returns an independent copy sharing only the immutable map.
func (s *Set) Clone() *Set {
	cp := &Set{
		grid:   s.grid,
		units:  slices.Clone(s.units),
		occ:    slices.Clone(s.occ),
		living: make(map[Faction]int, len(s.living)),
	}
	for f, n := range s.living {
		cp.living[f] = n
	}
	return cp
}

// CheckOccupancy verifies that the blocked cells are exactly the walls plus
// the positions of living units.
//
// Postcondition: Returns nil when consistent, or an *InvariantError naming the
// first mismatch.
func (s *Set) CheckOccupancy() error {
	want := make([]Handle, len(s.occ))
	for i := range want {
		want[i] = None
	}
	counts := make(map[Faction]int)
	for _, u := range s.units {
		if u.Dead {
			continue
		}
		if !s.grid.IsOpen(u.Pos) {
			return &InvariantError{Op: "check", Handle: u.Handle, Pos: u.Pos, Reason: "unit stands on a wall"}
		}
		idx := s.grid.Index(u.Pos)
		if want[idx] != None {
			return &InvariantError{Op: "check", Handle: u.Handle, Pos: u.Pos, Reason: fmt.Sprintf("cell shared with unit %d", want[idx])}
		}
		want[idx] = u.Handle
		counts[u.Faction]++
	}
	for i, h := range s.occ {
		if h != want[i] {
			return &InvariantError{Op: "check", Handle: h, Pos: s.grid.PosOf(i), Reason: fmt.Sprintf("occupancy holds %d, expected %d", h, want[i])}
		}
	}
	for f, n := range s.living {
		if counts[f] != n {
			return &InvariantError{Op: "check", Reason: fmt.Sprintf("faction %s counted %d living, found %d", f, n, counts[f])}
		}
	}
	return nil
}
