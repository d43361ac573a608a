package combat

import (
	"fmt"

	"github.com/cory-johannsen/skirmish/internal/game/grid"
	"github.com/cory-johannsen/skirmish/internal/game/path"
	"github.com/cory-johannsen/skirmish/internal/game/unit"
)

// EventKind identifies what a unit did during its turn.
type EventKind int

const (
	EventMove EventKind = iota
	EventAttack
)

// String returns the human-readable name of the EventKind.
func (k EventKind) String() string {
	switch k {
	case EventMove:
		return "move"
	case EventAttack:
		return "attack"
	default:
		return "unknown"
	}
}

// RoundEvent records one move or attack made during a round.
type RoundEvent struct {
	Kind    EventKind
	Actor   unit.Handle
	Faction unit.Faction
	// From and To are the actor's squares before and after a move. For an
	// attack both hold the actor's square.
	From grid.Pos
	To   grid.Pos
	// Attack is nil for moves.
	Attack    *AttackResult
	Narrative string
}

// RoundResult summarizes one pass over the units.
type RoundResult struct {
	// Round is the battle's completed round count after this pass. Filled in
	// by Battle; ResolveRound leaves it zero.
	Round int
	// Completed is false when the pass stopped early: a unit found no enemies
	// at the start of its turn, or Halt stopped it.
	Completed bool
	// Halted is true when RoundOptions.Halt stopped the pass.
	Halted bool
	Moves  int
	// Attacks counts every attack, lethal or not.
	Attacks int
	// Kills counts units removed this pass, by faction.
	Kills map[unit.Faction]int
	// Events is populated only when RoundOptions.Record is set.
	Events []RoundEvent
}

// RoundOptions adjusts ResolveRound.
type RoundOptions struct {
	// Record keeps a RoundEvent for every move and attack.
	Record bool
	// Halt is consulted after every attack; returning true stops the pass
	// immediately. May be nil.
	Halt func(AttackResult) bool
}

// ResolveRound gives every unit alive at the start of the round one turn, in
// reading order of their starting squares. A turn is: end the round if no
// enemy is left; otherwise move one step toward the nearest reachable enemy
// unless one is already adjacent; then attack the weakest adjacent enemy.
// Units killed earlier in the round are skipped.
//
// Precondition: s and powers must be valid; s is owned by the caller for the
// duration of the call.
// Postcondition: Returns the RoundResult with board changes applied in place,
// or an error wrapping unit.ErrInvariant if the board rejected a move or hit.
func ResolveRound(s *unit.Set, powers Powers, opts RoundOptions) (RoundResult, error) {
	res := RoundResult{Kills: make(map[unit.Faction]int)}

	for _, h := range s.LivingInReadingOrder() {
		if !s.Alive(h) {
			continue
		}
		actor, _ := s.Get(h)
		if !s.HasEnemies(actor.Faction) {
			return res, nil
		}

		if step, ok := path.NextStep(s, h); ok {
			from := actor.Pos
			if err := s.Move(h, step); err != nil {
				return res, fmt.Errorf("round turn of unit %d: %w", h, err)
			}
			actor.Pos = step
			res.Moves++
			if opts.Record {
				res.Events = append(res.Events, RoundEvent{
					Kind:      EventMove,
					Actor:     h,
					Faction:   actor.Faction,
					From:      from,
					To:        step,
					Narrative: fmt.Sprintf("%s%s moves to %s.", actor.Faction, from, step),
				})
			}
		}

		target, ok := SelectTarget(s, h)
		if !ok {
			continue
		}
		r, err := ResolveAttack(s, h, target, powers.For(actor.Faction))
		if err != nil {
			return res, fmt.Errorf("round turn of unit %d: %w", h, err)
		}
		res.Attacks++
		if r.Killed {
			res.Kills[r.TargetFaction]++
		}
		if opts.Record {
			res.Events = append(res.Events, RoundEvent{
				Kind:      EventAttack,
				Actor:     h,
				Faction:   actor.Faction,
				From:      actor.Pos,
				To:        actor.Pos,
				Attack:    &r,
				Narrative: attackNarrative(actor, r),
			})
		}
		if opts.Halt != nil && opts.Halt(r) {
			res.Halted = true
			return res, nil
		}
	}

	res.Completed = true
	return res, nil
}

func attackNarrative(actor unit.Unit, r AttackResult) string {
	if r.Killed {
		return fmt.Sprintf("%s%s kills %s%s.", actor.Faction, actor.Pos, r.TargetFaction, r.TargetPos)
	}
	return fmt.Sprintf("%s%s hits %s%s for %d (%d left).", actor.Faction, actor.Pos, r.TargetFaction, r.TargetPos, r.Damage, r.RemainingHP)
}
