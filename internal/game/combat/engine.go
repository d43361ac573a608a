package combat

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/config"
	"github.com/cory-johannsen/skirmish/internal/game/scenario"
)

// Engine runs battles with shared rule settings and tracks the ones in
// progress, keyed by battle ID. All methods are safe for concurrent use.
type Engine struct {
	cfg    config.SimulationConfig
	logger *zap.Logger

	mu      sync.RWMutex
	battles map[uuid.UUID]*Battle
}

// NewEngine creates an Engine applying cfg to every battle it starts.
//
// Precondition: cfg must be valid; logger must be non-nil.
// Postcondition: Returns a non-nil Engine ready for use.
func NewEngine(cfg config.SimulationConfig, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		logger:  logger,
		battles: make(map[uuid.UUID]*Battle),
	}
}

// baseOptions turns the engine's configuration into battle options. Options
// passed by callers are applied after these and win.
func (e *Engine) baseOptions() []Option {
	return []Option{
		WithHitPoints(e.cfg.HitPoints),
		WithPowers(Powers{Default: e.cfg.AttackPower}),
		WithMaxRounds(e.cfg.MaxRounds),
		WithStalemateDetection(e.cfg.DetectStalemate),
	}
}

// NewBattle creates a battle with the engine's settings followed by opts.
//
// Precondition: sc must be a validated scenario.
// Postcondition: Returns a Battle at round 0 or a non-nil error.
func (e *Engine) NewBattle(sc *scenario.Scenario, opts ...Option) (*Battle, error) {
	all := append(e.baseOptions(), opts...)
	all = append(all, WithObserver(e.logRound))
	return NewBattle(sc, all...)
}

func (e *Engine) logRound(b *Battle, res RoundResult) {
	if ce := e.logger.Check(zap.DebugLevel, "round resolved"); ce != nil {
		fields := []zap.Field{
			zap.String("battle_id", b.ID.String()),
			zap.Int("round", res.Round),
			zap.Bool("completed", res.Completed),
			zap.Int("moves", res.Moves),
			zap.Int("attacks", res.Attacks),
		}
		for _, f := range b.units.Factions() {
			fields = append(fields, zap.Int("living_"+f.String(), b.units.CountByFaction(f)))
		}
		ce.Write(fields...)
	}
}

// GetBattle returns the battle in progress with the given ID.
//
// Postcondition: Returns (battle, true) if found, or (nil, false) otherwise.
func (e *Engine) GetBattle(id uuid.UUID) (*Battle, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.battles[id]
	return b, ok
}

// Active returns the number of battles in progress.
func (e *Engine) Active() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.battles)
}

func (e *Engine) register(b *Battle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.battles[b.ID] = b
}

func (e *Engine) unregister(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.battles, id)
}

// Simulate runs one battle of sc to the end.
//
// Precondition: ctx must be non-nil; sc must be a validated scenario.
// Postcondition: Returns the final Outcome, or a non-nil error when the
// battle could not finish.
func (e *Engine) Simulate(ctx context.Context, sc *scenario.Scenario, opts ...Option) (Outcome, error) {
	b, err := e.NewBattle(sc, opts...)
	if err != nil {
		return Outcome{}, err
	}
	e.register(b)
	defer e.unregister(b.ID)

	out, err := b.Run(ctx)
	if err != nil {
		e.logger.Warn("battle failed",
			zap.String("battle_id", b.ID.String()),
			zap.String("scenario", sc.Name),
			zap.Int("rounds", out.Rounds),
			zap.Error(err),
		)
		return out, err
	}

	e.logger.Info("battle finished",
		zap.String("battle_id", b.ID.String()),
		zap.String("scenario", sc.Name),
		zap.Int("rounds", out.Rounds),
		zap.Int("hit_points", out.HitPoints),
		zap.Int("score", out.Score),
		zap.String("winner", out.Winner.String()),
		zap.Any("casualties", casualtyFields(out)),
		zap.Bool("aborted", out.Aborted),
	)
	return out, nil
}

func casualtyFields(out Outcome) map[string]int {
	m := make(map[string]int, len(out.Casualties))
	for f, n := range out.Casualties {
		m[f.String()] = n
	}
	return m
}
