package combat

import (
	"context"
	"fmt"
	"maps"

	"github.com/google/uuid"

	"github.com/cory-johannsen/skirmish/internal/game/scenario"
	"github.com/cory-johannsen/skirmish/internal/game/unit"
)

// Observer is called after every Step with the round just resolved.
type Observer func(b *Battle, res RoundResult)

type battleOptions struct {
	powers          Powers
	hitPoints       int
	maxRounds       int
	detectStalemate bool
	stopOnCasualty  unit.Faction
	observers       []Observer
	record          bool
}

// Option configures a Battle.
type Option func(*battleOptions)

// WithPowers sets the attack powers. Per-faction powers from the scenario
// still take precedence over p.Default but not over p.ByFaction.
func WithPowers(p Powers) Option {
	return func(o *battleOptions) { o.powers = p }
}

// WithHitPoints sets the starting hit points for units the scenario does not
// override.
func WithHitPoints(hp int) Option {
	return func(o *battleOptions) { o.hitPoints = hp }
}

// WithMaxRounds stops an undecided battle with ErrRoundLimit after n
// completed rounds. n <= 0 disables the cap.
func WithMaxRounds(n int) Option {
	return func(o *battleOptions) { o.maxRounds = n }
}

// WithStalemateDetection enables or disables ErrStalemate.
func WithStalemateDetection(on bool) Option {
	return func(o *battleOptions) { o.detectStalemate = on }
}

// WithStopOnCasualty ends the battle as soon as a unit of f dies. The battle
// is then reported as aborted.
func WithStopOnCasualty(f unit.Faction) Option {
	return func(o *battleOptions) { o.stopOnCasualty = f }
}

// WithObserver registers fn to run after every round. Observers run in
// registration order.
func WithObserver(fn Observer) Option {
	return func(o *battleOptions) { o.observers = append(o.observers, fn) }
}

// WithEventLog keeps per-turn RoundEvents in every RoundResult.
func WithEventLog() Option {
	return func(o *battleOptions) { o.record = true }
}

// Outcome is the final state of a battle.
type Outcome struct {
	BattleID uuid.UUID
	// Rounds is the number of fully completed rounds.
	Rounds int
	// HitPoints is the sum of the hit points of every surviving unit.
	HitPoints int
	// Score is Rounds * HitPoints.
	Score int
	// Winner is the only faction with survivors; zero when the battle was
	// aborted undecided.
	Winner unit.Faction
	// Survivors counts living units per faction.
	Survivors map[unit.Faction]int
	// Casualties counts dead units per faction.
	Casualties map[unit.Faction]int
	// Aborted is true when WithStopOnCasualty ended the battle.
	Aborted bool
}

// Battle is one simulation of a scenario. It owns its unit.Set exclusively
// and is not safe for concurrent use.
type Battle struct {
	// ID correlates the log lines of one battle.
	ID uuid.UUID
	// Scenario is the layout the battle started from.
	Scenario *scenario.Scenario

	units      *unit.Set
	opts       battleOptions
	rounds     int
	over       bool
	aborted    bool
	casualties map[unit.Faction]int
}

// resolveOptions applies opts over the defaults.
func resolveOptions(opts []Option) battleOptions {
	o := battleOptions{
		powers:          DefaultPowers(),
		hitPoints:       DefaultHitPoints,
		detectStalemate: true,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// NewBattle builds a battle with a fresh board from sc.
//
// Precondition: sc must be a validated scenario.
// Postcondition: Returns a Battle at round 0 or a non-nil error.
func NewBattle(sc *scenario.Scenario, opts ...Option) (*Battle, error) {
	o := resolveOptions(opts)
	if len(sc.AttackPowers) > 0 {
		merged := Powers{Default: o.powers.Default, ByFaction: maps.Clone(sc.AttackPowers)}
		maps.Copy(merged.ByFaction, o.powers.ByFaction)
		o.powers = merged
	}

	units, err := sc.NewUnits(o.hitPoints)
	if err != nil {
		return nil, fmt.Errorf("placing units for scenario %q: %w", sc.Name, err)
	}
	return &Battle{
		ID:         uuid.New(),
		Scenario:   sc,
		units:      units,
		opts:       o,
		casualties: make(map[unit.Faction]int),
	}, nil
}

// Units returns the live board. Callers must not mutate it.
func (b *Battle) Units() *unit.Set { return b.units }

// Round returns the number of completed rounds.
func (b *Battle) Round() int { return b.rounds }

// Over reports whether the battle has ended.
func (b *Battle) Over() bool { return b.over }

// Powers returns the attack powers in effect.
func (b *Battle) Powers() Powers { return b.opts.powers }

// decided reports whether at most one faction has living units.
func (b *Battle) decided() bool {
	alive := 0
	for _, f := range b.units.Factions() {
		if b.units.CountByFaction(f) > 0 {
			alive++
		}
	}
	return alive <= 1
}

// Step resolves one round. A round that ends early because a unit found no
// enemies finishes the battle without counting.
//
// Postcondition: Returns the RoundResult, or an error (ErrStalemate,
// ErrRoundLimit or a wrapped unit.ErrInvariant) that also ends the battle.
// Calling Step on a finished battle returns a zero result and no error.
func (b *Battle) Step() (RoundResult, error) {
	if b.over {
		return RoundResult{Round: b.rounds}, nil
	}

	ropts := RoundOptions{Record: b.opts.record}
	if f := b.opts.stopOnCasualty; f != 0 {
		ropts.Halt = func(r AttackResult) bool { return r.Killed && r.TargetFaction == f }
	}

	res, err := ResolveRound(b.units, b.opts.powers, ropts)
	for f, n := range res.Kills {
		b.casualties[f] += n
	}
	if err != nil {
		b.over = true
		return res, err
	}

	var stepErr error
	switch {
	case res.Halted:
		b.over = true
		b.aborted = true
	case !res.Completed:
		b.over = true
	default:
		b.rounds++
		switch {
		case b.opts.detectStalemate && res.Moves == 0 && res.Attacks == 0:
			b.over = true
			stepErr = fmt.Errorf("battle %s after round %d: %w", b.ID, b.rounds, ErrStalemate)
		case b.opts.maxRounds > 0 && b.rounds >= b.opts.maxRounds && !b.decided():
			b.over = true
			stepErr = fmt.Errorf("battle %s after round %d: %w", b.ID, b.rounds, ErrRoundLimit)
		}
	}
	res.Round = b.rounds

	for _, fn := range b.opts.observers {
		fn(b, res)
	}
	return res, stepErr
}

// Run steps the battle until it ends.
//
// Precondition: ctx must be non-nil.
// Postcondition: Returns the final Outcome, or the Outcome so far and a
// non-nil error when a step fails or ctx is cancelled between rounds.
func (b *Battle) Run(ctx context.Context) (Outcome, error) {
	for !b.over {
		if err := ctx.Err(); err != nil {
			return b.Outcome(), fmt.Errorf("battle %s interrupted at round %d: %w", b.ID, b.rounds, err)
		}
		if _, err := b.Step(); err != nil {
			return b.Outcome(), err
		}
	}
	return b.Outcome(), nil
}

// Outcome reports the battle's current result. It is final once Over is true.
func (b *Battle) Outcome() Outcome {
	out := Outcome{
		BattleID:   b.ID,
		Rounds:     b.rounds,
		HitPoints:  b.units.TotalHitPoints(),
		Survivors:  make(map[unit.Faction]int),
		Casualties: maps.Clone(b.casualties),
		Aborted:    b.aborted,
	}
	out.Score = out.Rounds * out.HitPoints
	for _, f := range b.units.Factions() {
		if n := b.units.CountByFaction(f); n > 0 {
			out.Survivors[f] = n
		}
	}
	if len(out.Survivors) == 1 {
		for f := range out.Survivors {
			out.Winner = f
		}
	}
	return out
}
