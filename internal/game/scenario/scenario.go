// Package scenario turns battle maps into validated starting layouts: the
// static grid plus the units spawned on it.
package scenario

import (
	"errors"
	"fmt"
	"slices"

	"github.com/cory-johannsen/skirmish/internal/game/grid"
	"github.com/cory-johannsen/skirmish/internal/game/unit"
)

// Malformed-input errors. Each parse failure wraps exactly one of these.
var (
	ErrEmptyMap        = errors.New("map is empty")
	ErrRaggedRows      = errors.New("map rows differ in length")
	ErrUnknownCell     = errors.New("unrecognized map character")
	ErrTooManyFactions = errors.New("map uses more than two faction letters")
	ErrMissingFaction  = errors.New("map needs units of two factions")
	ErrNoUnits         = errors.New("map holds no units")
	ErrUnitOnWall      = errors.New("unit placed on a wall")
)

// Scenario is an initial battle layout. It is never mutated by a simulation;
// every run builds its own unit.Set from Spawns.
type Scenario struct {
	// Name identifies the scenario in logs and reports.
	Name string
	// Description is free text shown by the CLI.
	Description string
	// Map is the static wall/floor layout.
	Map *grid.Map
	// Spawns lists units in reading order of their starting squares.
	Spawns []unit.Spawn
	// Factions lists the faction letters present, sorted.
	Factions []unit.Faction
	// HitPoints overrides the configured starting hit points when > 0.
	HitPoints int
	// AttackPowers overrides the configured attack power per faction.
	AttackPowers map[unit.Faction]int
}

// HasFaction reports whether f has units in the scenario.
func (s *Scenario) HasFaction(f unit.Faction) bool {
	return slices.Contains(s.Factions, f)
}

// Opponents returns the factions other than f.
func (s *Scenario) Opponents(f unit.Faction) []unit.Faction {
	var out []unit.Faction
	for _, other := range s.Factions {
		if other != f {
			out = append(out, other)
		}
	}
	return out
}

// StartingHitPoints resolves the hit points of sp given the configured default.
func (s *Scenario) StartingHitPoints(sp unit.Spawn, defaultHP int) int {
	switch {
	case sp.HP > 0:
		return sp.HP
	case s.HitPoints > 0:
		return s.HitPoints
	default:
		return defaultHP
	}
}

// MaxOpponentHitPoints returns the largest starting hit points among units
// not belonging to f.
//
// Postcondition: Returns 0 when f has no opponents.
func (s *Scenario) MaxOpponentHitPoints(f unit.Faction, defaultHP int) int {
	opponents := s.Opponents(f)
	best := 0
	for _, sp := range s.Spawns {
		if !slices.Contains(opponents, sp.Faction) {
			continue
		}
		if hp := s.StartingHitPoints(sp, defaultHP); hp > best {
			best = hp
		}
	}
	return best
}

// NewUnits builds a fresh unit.Set for one simulation attempt.
//
// Precondition: defaultHP > 0.
// Postcondition: The returned Set shares only the immutable Map with s.
func (s *Scenario) NewUnits(defaultHP int) (*unit.Set, error) {
	hp := defaultHP
	if s.HitPoints > 0 {
		hp = s.HitPoints
	}
	return unit.NewSet(s.Map, s.Spawns, hp)
}

// Validate checks scenario invariants.
//
// Postcondition: Returns nil if valid, or an error describing the first violation.
func (s *Scenario) Validate(allowOneSided bool) error {
	if s.Map == nil {
		return fmt.Errorf("scenario %q: %w", s.Name, ErrEmptyMap)
	}
	if len(s.Spawns) == 0 {
		return fmt.Errorf("scenario %q: %w", s.Name, ErrNoUnits)
	}
	switch n := len(s.Factions); {
	case n > 2:
		return fmt.Errorf("scenario %q: %w: %v", s.Name, ErrTooManyFactions, s.Factions)
	case n < 2 && !allowOneSided:
		return fmt.Errorf("scenario %q: %w, found %v", s.Name, ErrMissingFaction, s.Factions)
	}
	if s.HitPoints < 0 {
		return fmt.Errorf("scenario %q: hit_points must be >= 0, got %d", s.Name, s.HitPoints)
	}
	for f, p := range s.AttackPowers {
		if !s.HasFaction(f) {
			return fmt.Errorf("scenario %q: attack power set for faction %s which has no units", s.Name, f)
		}
		if p <= 0 {
			return fmt.Errorf("scenario %q: attack power for %s must be > 0, got %d", s.Name, f, p)
		}
	}
	return nil
}
