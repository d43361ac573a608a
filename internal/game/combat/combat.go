// Package combat runs grid battles: attack resolution, the round loop, whole
// battles and the attack power search built on top of them.
package combat

import (
	"errors"
	"maps"

	"github.com/cory-johannsen/skirmish/internal/game/unit"
)

const (
	// DefaultHitPoints is the starting hit points of every unit.
	DefaultHitPoints = 200
	// DefaultAttackPower is the damage dealt by one attack.
	DefaultAttackPower = 3
)

var (
	// ErrStalemate is returned when a full round passes with no move and no
	// attack while opposing units remain. The board can never change again.
	ErrStalemate = errors.New("battle is stalemated")
	// ErrRoundLimit is returned when a battle reaches its configured round cap
	// undecided.
	ErrRoundLimit = errors.New("battle exceeded round limit")
	// ErrNoWinningPower is returned when no attack power in the searched range
	// lets the boosted faction win without losses.
	ErrNoWinningPower = errors.New("no attack power in range avoids casualties")
	// ErrUnknownFaction is returned when a search boosts a faction with no units.
	ErrUnknownFaction = errors.New("faction has no units on the map")
)

// Powers maps factions to the damage their attacks deal.
type Powers struct {
	// Default applies to every faction absent from ByFaction.
	Default int
	// ByFaction overrides Default per faction.
	ByFaction map[unit.Faction]int
}

// DefaultPowers returns every faction at DefaultAttackPower.
func DefaultPowers() Powers {
	return Powers{Default: DefaultAttackPower}
}

// For returns the attack power of f.
func (p Powers) For(f unit.Faction) int {
	if v, ok := p.ByFaction[f]; ok {
		return v
	}
	return p.Default
}

// With returns a copy of p with f's power set to power. p is not modified.
func (p Powers) With(f unit.Faction, power int) Powers {
	out := Powers{Default: p.Default, ByFaction: make(map[unit.Faction]int, len(p.ByFaction)+1)}
	maps.Copy(out.ByFaction, p.ByFaction)
	out.ByFaction[f] = power
	return out
}
