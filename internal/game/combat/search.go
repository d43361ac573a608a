package combat

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/skirmish/internal/config"
	"github.com/cory-johannsen/skirmish/internal/game/scenario"
	"github.com/cory-johannsen/skirmish/internal/game/unit"
)

// Strategy selects how Search walks the attack power range.
type Strategy string

const (
	// StrategyLinear tries every power from the start upward.
	StrategyLinear Strategy = "linear"
	// StrategyBisect probes exponentially then binary searches. It assumes
	// success is monotonic in attack power.
	StrategyBisect Strategy = "bisect"
)

// ParseStrategy converts a config string to a Strategy.
//
// Postcondition: Returns a known Strategy or a non-nil error.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyLinear, StrategyBisect:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown search strategy %q", s)
	}
}

// SearchOptions configures Search.
type SearchOptions struct {
	// Faction is the boosted faction.
	Faction unit.Faction
	// Start is the first power tried.
	Start int
	// Max is the last power tried; 0 uses the opponents' largest starting
	// hit points, past which every hit kills and more power changes nothing.
	Max      int
	Strategy Strategy
	// Workers is the number of attempts run at once by the linear strategy.
	Workers int
	// StopOnCasualty ends each attempt at the boosted faction's first loss.
	StopOnCasualty bool
}

// SearchOptionsFromConfig converts the search section of the configuration.
//
// Postcondition: Returns usable SearchOptions or a non-nil error.
func SearchOptionsFromConfig(cfg config.SearchConfig) (SearchOptions, error) {
	f, err := unit.ParseFaction(cfg.Faction)
	if err != nil {
		return SearchOptions{}, fmt.Errorf("search.faction: %w", err)
	}
	strategy, err := ParseStrategy(cfg.Strategy)
	if err != nil {
		return SearchOptions{}, err
	}
	return SearchOptions{
		Faction:        f,
		Start:          cfg.StartPower,
		Max:            cfg.MaxPower,
		Strategy:       strategy,
		Workers:        cfg.Workers,
		StopOnCasualty: cfg.StopOnCasualty,
	}, nil
}

// Attempt is the result of one battle at one attack power.
type Attempt struct {
	Power int
	// Success is true when the boosted faction lost no unit.
	Success  bool
	Rounds   int
	Score    int
	Outcome  Outcome
	BattleID uuid.UUID
}

// SearchResult is the outcome at the lowest successful power.
type SearchResult struct {
	Power   int
	Outcome Outcome
	// Attempts lists every battle run, sorted by power.
	Attempts []Attempt
}

// searcher runs and memoizes attempts for one Search call.
type searcher struct {
	engine *Engine
	sc     *scenario.Scenario
	opts   SearchOptions
	extra  []Option

	mu       sync.Mutex
	attempts map[int]Attempt
}

func (s *searcher) attempt(ctx context.Context, power int) (Attempt, error) {
	s.mu.Lock()
	if a, ok := s.attempts[power]; ok {
		s.mu.Unlock()
		return a, nil
	}
	s.mu.Unlock()

	opts := slices.Clone(s.extra)
	opts = append(opts, func(o *battleOptions) { o.powers = o.powers.With(s.opts.Faction, power) })
	if s.opts.StopOnCasualty {
		opts = append(opts, WithStopOnCasualty(s.opts.Faction))
	}
	out, err := s.engine.Simulate(ctx, s.sc, opts...)
	if err != nil {
		return Attempt{}, fmt.Errorf("attempt at power %d: %w", power, err)
	}

	a := Attempt{
		Power:    power,
		Success:  !out.Aborted && out.Casualties[s.opts.Faction] == 0,
		Rounds:   out.Rounds,
		Score:    out.Score,
		Outcome:  out,
		BattleID: out.BattleID,
	}
	s.engine.logger.Info("search attempt",
		zap.String("scenario", s.sc.Name),
		zap.String("faction", s.opts.Faction.String()),
		zap.Int("power", power),
		zap.Bool("success", a.Success),
		zap.Int("rounds", a.Rounds),
		zap.Int("score", a.Score),
		zap.Int("active_battles", s.engine.Active()),
	)

	s.mu.Lock()
	s.attempts[power] = a
	s.mu.Unlock()
	return a, nil
}

func (s *searcher) result(power int) SearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := slices.Sorted(maps.Keys(s.attempts))
	res := SearchResult{Power: power, Outcome: s.attempts[power].Outcome}
	for _, k := range keys {
		res.Attempts = append(res.Attempts, s.attempts[k])
	}
	return res
}

// Search finds the lowest attack power for opts.Faction with which that
// faction wins without losing a unit, and reports the outcome at that power.
// Every attempt is an independent battle from the original layout; extra
// options apply to each of them.
//
// Precondition: ctx must be non-nil; sc must be a validated scenario.
// Postcondition: Returns the SearchResult, or an error: ErrUnknownFaction,
// ErrNoWinningPower, or the first attempt failure (which cancels the rest).
func (e *Engine) Search(ctx context.Context, sc *scenario.Scenario, opts SearchOptions, extra ...Option) (SearchResult, error) {
	if !sc.HasFaction(opts.Faction) {
		return SearchResult{}, fmt.Errorf("searching %q for faction %s: %w", sc.Name, opts.Faction, ErrUnknownFaction)
	}
	if opts.Start < 1 {
		opts.Start = 1
	}
	if opts.Max <= 0 {
		hp := resolveOptions(append(e.baseOptions(), extra...)).hitPoints
		opts.Max = sc.MaxOpponentHitPoints(opts.Faction, hp)
	}
	opts.Max = max(opts.Max, opts.Start)
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyLinear
	}

	s := &searcher{
		engine:   e,
		sc:       sc,
		opts:     opts,
		extra:    extra,
		attempts: make(map[int]Attempt),
	}

	var (
		power int
		err   error
	)
	switch opts.Strategy {
	case StrategyLinear:
		power, err = s.linear(ctx)
	case StrategyBisect:
		power, err = s.bisect(ctx)
	default:
		err = fmt.Errorf("unknown search strategy %q", opts.Strategy)
	}
	if err != nil {
		return s.result(0), err
	}

	res := s.result(power)
	e.logger.Info("search finished",
		zap.String("scenario", sc.Name),
		zap.String("faction", opts.Faction.String()),
		zap.Int("power", res.Power),
		zap.Int("score", res.Outcome.Score),
		zap.Int("attempts", len(res.Attempts)),
	)
	return res, nil
}

// linear tries powers in ascending windows of Workers concurrent attempts and
// returns the lowest success.
func (s *searcher) linear(ctx context.Context) (int, error) {
	for lo := s.opts.Start; lo <= s.opts.Max; lo += s.opts.Workers {
		hi := min(lo+s.opts.Workers-1, s.opts.Max)

		g, gctx := errgroup.WithContext(ctx)
		for p := lo; p <= hi; p++ {
			g.Go(func() error {
				_, err := s.attempt(gctx, p)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}

		for p := lo; p <= hi; p++ {
			if a, _ := s.attempt(ctx, p); a.Success {
				return p, nil
			}
		}
	}
	return 0, s.exhausted()
}

// bisect doubles the step from Start until an attempt succeeds, then binary
// searches the last failing gap.
func (s *searcher) bisect(ctx context.Context) (int, error) {
	a, err := s.attempt(ctx, s.opts.Start)
	if err != nil {
		return 0, err
	}
	if a.Success {
		return s.opts.Start, nil
	}

	lo, hi := s.opts.Start, 0 // lo fails, hi succeeds
	for step := 1; hi == 0; step *= 2 {
		p := min(lo+step, s.opts.Max)
		a, err := s.attempt(ctx, p)
		if err != nil {
			return 0, err
		}
		if a.Success {
			hi = p
			break
		}
		if p == s.opts.Max {
			return 0, s.exhausted()
		}
		lo = p
	}

	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		a, err := s.attempt(ctx, mid)
		if err != nil {
			return 0, err
		}
		if a.Success {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi, nil
}

func (s *searcher) exhausted() error {
	return fmt.Errorf("powers %d..%d for faction %s: %w", s.opts.Start, s.opts.Max, s.opts.Faction, ErrNoWinningPower)
}

