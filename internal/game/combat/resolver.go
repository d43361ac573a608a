package combat

import (
	"github.com/cory-johannsen/skirmish/internal/game/grid"
	"github.com/cory-johannsen/skirmish/internal/game/unit"
)

// AttackResult holds the outcome of a single attack.
type AttackResult struct {
	// Attacker is the attacking unit's handle.
	Attacker unit.Handle
	// Target is the defending unit's handle.
	Target unit.Handle
	// TargetPos is where the target stood when hit.
	TargetPos grid.Pos
	// TargetFaction is the defender's faction.
	TargetFaction unit.Faction
	// Damage is the attack power applied.
	Damage int
	// RemainingHP is the target's hit points after the hit; <= 0 when killed.
	RemainingHP int
	// Killed reports whether the target was removed from the board.
	Killed bool
}

// SelectTarget picks the adjacent enemy of h with the fewest hit points,
// breaking ties by reading order.
//
// Precondition: h is alive.
// Postcondition: Returns (target, true), or ok == false when no enemy is adjacent.
func SelectTarget(s *unit.Set, h unit.Handle) (unit.Handle, bool) {
	u, _ := s.Get(h)
	best, bestHP := unit.None, 0
	// Offsets are in reading order, so the first minimum found wins ties.
	for _, d := range grid.Offsets {
		other, ok := s.At(u.Pos.Add(d))
		if !ok {
			continue
		}
		o, _ := s.Get(other)
		if o.Faction == u.Faction {
			continue
		}
		if best == unit.None || o.HP < bestHP {
			best, bestHP = other, o.HP
		}
	}
	return best, best != unit.None
}

// ResolveAttack deals power damage from attacker to target and removes the
// target when its hit points drop to zero or below.
//
// Precondition: attacker and target are alive and adjacent; power >= 0.
// Postcondition: Returns the populated AttackResult, or an error wrapping
// unit.ErrInvariant when the board rejects the hit.
func ResolveAttack(s *unit.Set, attacker, target unit.Handle, power int) (AttackResult, error) {
	t, _ := s.Get(target)
	remaining, killed, err := s.Damage(target, power)
	if err != nil {
		return AttackResult{}, err
	}
	return AttackResult{
		Attacker:      attacker,
		Target:        target,
		TargetPos:     t.Pos,
		TargetFaction: t.Faction,
		Damage:        power,
		RemainingHP:   remaining,
		Killed:        killed,
	}, nil
}
