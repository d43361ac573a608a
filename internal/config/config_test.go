package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Simulation: SimulationConfig{
			HitPoints:       200,
			AttackPower:     3,
			DetectStalemate: true,
		},
		Search: SearchConfig{
			Faction:        "E",
			StartPower:     4,
			Strategy:       "linear",
			Workers:        1,
			StopOnCasualty: true,
		},
		Render: RenderConfig{HitPoints: true},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 200, cfg.Simulation.HitPoints)
	assert.Equal(t, 3, cfg.Simulation.AttackPower)
	assert.Equal(t, 0, cfg.Simulation.MaxRounds)
	assert.True(t, cfg.Simulation.DetectStalemate)
	assert.Equal(t, "E", cfg.Search.Faction)
	assert.Equal(t, 4, cfg.Search.StartPower)
	assert.Equal(t, "linear", cfg.Search.Strategy)
	assert.Equal(t, 1, cfg.Search.Workers)
	assert.True(t, cfg.Search.StopOnCasualty)
	assert.False(t, cfg.Render.Color)
	assert.True(t, cfg.Render.HitPoints)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
logging:
  level: debug
  format: console
simulation:
  hit_points: 300
  max_rounds: 500
search:
  faction: G
  strategy: bisect
  workers: 4
render:
  color: true
  palette:
    G: yellow
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 300, cfg.Simulation.HitPoints)
	assert.Equal(t, 3, cfg.Simulation.AttackPower, "unset keys keep their defaults")
	assert.Equal(t, 500, cfg.Simulation.MaxRounds)
	assert.Equal(t, "G", cfg.Search.Faction)
	assert.Equal(t, "bisect", cfg.Search.Strategy)
	assert.Equal(t, 4, cfg.Search.Workers)
	assert.True(t, cfg.Render.Color)
	assert.Equal(t, map[string]string{"g": "yellow"}, cfg.Render.Palette, "viper lower-cases map keys")
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Search, cfg.Search)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SKIRMISH_SIMULATION_ATTACK_POWER", "7")
	t.Setenv("SKIRMISH_SEARCH_STRATEGY", "bisect")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Simulation.AttackPower)
	assert.Equal(t, "bisect", cfg.Search.Strategy)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  strategy: random\n  workers: 0\n"), 0644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.strategy")
	assert.Contains(t, err.Error(), "search.workers")
}

func TestValidateLoggingLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), "level %q should be valid", level)
	}
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingFormat(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		cfg := validConfig()
		cfg.Logging.Format = format
		assert.NoError(t, cfg.Validate(), "format %q should be valid", format)
	}
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidateSimulation(t *testing.T) {
	cfg := validConfig()
	cfg.Simulation.HitPoints = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Simulation.AttackPower = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Simulation.MaxRounds = -1
	assert.Error(t, cfg.Validate())
}

func TestValidateSearchFaction(t *testing.T) {
	for _, f := range []string{"", "e", "EG", "1"} {
		cfg := validConfig()
		cfg.Search.Faction = f
		assert.Error(t, cfg.Validate(), "faction %q should be rejected", f)
	}
}

func TestValidateSearchStrategy(t *testing.T) {
	for _, s := range []string{"linear", "bisect"} {
		cfg := validConfig()
		cfg.Search.Strategy = s
		assert.NoError(t, cfg.Validate(), "strategy %q should be valid", s)
	}
	cfg := validConfig()
	cfg.Search.Strategy = "random"
	assert.Error(t, cfg.Validate())
}

func TestValidateSearchMaxBelowStart(t *testing.T) {
	cfg := validConfig()
	cfg.Search.StartPower = 10
	cfg.Search.MaxPower = 5
	assert.Error(t, cfg.Validate())
}

// Property-based tests

func TestPropertyPositivePowersAccepted(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.IntRange(1, 500).Draw(t, "start")
		maxPower := rapid.OneOf(rapid.Just(0), rapid.IntRange(start, 1000)).Draw(t, "max")
		cfg := validConfig()
		cfg.Search.StartPower = start
		cfg.Search.MaxPower = maxPower
		if err := cfg.Validate(); err != nil {
			t.Fatalf("valid powers start=%d max=%d rejected: %v", start, maxPower, err)
		}
	})
}

func TestPropertyNonPositiveWorkersRejected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		workers := rapid.IntRange(-100, 0).Draw(t, "workers")
		cfg := validConfig()
		cfg.Search.Workers = workers
		if err := cfg.Validate(); err == nil {
			t.Fatalf("invalid workers %d accepted", workers)
		}
	})
}
