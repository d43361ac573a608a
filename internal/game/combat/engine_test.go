package combat_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/skirmish/internal/config"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/scenario"
)

func newEngine(t *testing.T) *combat.Engine {
	t.Helper()
	return combat.NewEngine(config.Default().Simulation, zap.NewNop())
}

func TestEngine_Simulate(t *testing.T) {
	eng := newEngine(t)
	out, err := eng.Simulate(context.Background(), scenario.MustParse(sampleMap))
	require.NoError(t, err)
	assert.Equal(t, 27730, out.Score)
	assert.Equal(t, 0, eng.Active(), "finished battles are unregistered")
}

func TestEngine_AppliesConfig(t *testing.T) {
	cfg := config.Default().Simulation
	cfg.AttackPower = 200
	eng := combat.NewEngine(cfg, zap.NewNop())

	b, err := eng.NewBattle(scenario.MustParse(sampleMap))
	require.NoError(t, err)
	assert.Equal(t, 200, b.Powers().For('G'))

	b, err = eng.NewBattle(scenario.MustParse(sampleMap), combat.WithPowers(combat.Powers{Default: 9}))
	require.NoError(t, err)
	assert.Equal(t, 9, b.Powers().For('G'), "caller options override the engine's")
}

func TestEngine_StalemateFromConfig(t *testing.T) {
	cfg := config.Default().Simulation
	cfg.DetectStalemate = false
	cfg.MaxRounds = 3
	eng := combat.NewEngine(cfg, zap.NewNop())

	out, err := eng.Simulate(context.Background(), scenario.MustParse("#######\n#E.#.G#\n#######\n"))
	assert.ErrorIs(t, err, combat.ErrRoundLimit)
	assert.Equal(t, 3, out.Rounds)
}

func TestEngine_GetBattleDuringRun(t *testing.T) {
	eng := newEngine(t)
	seen := false
	_, err := eng.Simulate(context.Background(), scenario.MustParse(sampleMap),
		combat.WithObserver(func(b *combat.Battle, _ combat.RoundResult) {
			if seen {
				return
			}
			got, ok := eng.GetBattle(b.ID)
			assert.True(t, ok)
			assert.Same(t, b, got)
			assert.Equal(t, 1, eng.Active())
			seen = true
		}))
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestEngine_Logging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	eng := combat.NewEngine(config.Default().Simulation, zap.New(core))

	out, err := eng.Simulate(context.Background(), scenario.MustParse(sampleMap, scenario.WithName("sample")))
	require.NoError(t, err)

	assert.Equal(t, 48, logs.FilterMessage("round resolved").Len())
	finished := logs.FilterMessage("battle finished").All()
	require.Len(t, finished, 1)
	fields := finished[0].ContextMap()
	assert.Equal(t, "sample", fields["scenario"])
	assert.Equal(t, int64(out.Score), fields["score"])
	assert.Equal(t, out.BattleID.String(), fields["battle_id"])
	assert.Equal(t, "G", fields["winner"])
}
