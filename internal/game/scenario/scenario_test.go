package scenario_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/skirmish/internal/game/grid"
	"github.com/cory-johannsen/skirmish/internal/game/scenario"
	"github.com/cory-johannsen/skirmish/internal/game/unit"
)

const sampleMap = `
#######
#.G...#
#...EG#
#.#.#G#
#..G#E#
#.....#
#######
`

func TestParseString_Sample(t *testing.T) {
	s, err := scenario.ParseString(sampleMap)
	require.NoError(t, err)

	assert.Equal(t, 7, s.Map.Width())
	assert.Equal(t, 7, s.Map.Height())
	assert.Equal(t, []unit.Faction{'E', 'G'}, s.Factions)
	require.Len(t, s.Spawns, 6)
	assert.Equal(t, unit.Spawn{Faction: 'G', Pos: grid.Pos{X: 2, Y: 1}}, s.Spawns[0])
	assert.Equal(t, unit.Spawn{Faction: 'E', Pos: grid.Pos{X: 4, Y: 2}}, s.Spawns[1])
	assert.Equal(t, unit.Spawn{Faction: 'E', Pos: grid.Pos{X: 5, Y: 4}}, s.Spawns[5])

	assert.Equal(t, grid.Wall, s.Map.At(grid.Pos{X: 2, Y: 3}))
	assert.Equal(t, grid.Empty, s.Map.At(grid.Pos{X: 2, Y: 1}), "unit squares are floor")
}

func TestParseString_CRLFAndSurroundingBlankLines(t *testing.T) {
	text := "\r\n\r\n#####\r\n#E.G#\r\n#####\r\n\r\n"
	s, err := scenario.ParseString(text)
	require.NoError(t, err)
	assert.Equal(t, 5, s.Map.Width())
	assert.Equal(t, 3, s.Map.Height())
	assert.Len(t, s.Spawns, 2)
}

func TestParseString_Errors(t *testing.T) {
	cases := []struct {
		name string
		text string
		want error
	}{
		{"empty", "", scenario.ErrEmptyMap},
		{"only blank lines", "\n  \n\n", scenario.ErrEmptyMap},
		{"ragged", "#####\n#E.G#\n####\n", scenario.ErrRaggedRows},
		{"blank line inside", "#####\n\n#E.G#\n#####\n", scenario.ErrRaggedRows},
		{"lower case", "#####\n#e.G#\n#####\n", scenario.ErrUnknownCell},
		{"digit", "#####\n#E1G#\n#####\n", scenario.ErrUnknownCell},
		{"three factions", "######\n#EGX.#\n######\n", scenario.ErrTooManyFactions},
		{"one faction", "#####\n#E.E#\n#####\n", scenario.ErrMissingFaction},
		{"no units", "#####\n#...#\n#####\n", scenario.ErrNoUnits},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := scenario.ParseString(tc.text)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParseString_UnknownCellReportsLocation(t *testing.T) {
	_, err := scenario.ParseString("\n#####\n#E?G#\n#####\n")
	require.ErrorIs(t, err, scenario.ErrUnknownCell)
	assert.Contains(t, err.Error(), "line 3, column 3")
}

func TestParseString_AllowOneSided(t *testing.T) {
	s, err := scenario.ParseString("#####\n#E.E#\n#####\n", scenario.AllowOneSided())
	require.NoError(t, err)
	assert.Equal(t, []unit.Faction{'E'}, s.Factions)
	assert.Empty(t, s.Opponents('E'))
}

func TestScenario_NewUnits(t *testing.T) {
	s := scenario.MustParse(sampleMap)
	set, err := s.NewUnits(200)
	require.NoError(t, err)
	assert.Equal(t, 6*200, set.TotalHitPoints())

	s.HitPoints = 50
	set, err = s.NewUnits(200)
	require.NoError(t, err)
	assert.Equal(t, 6*50, set.TotalHitPoints())
	assert.Equal(t, 50, s.MaxOpponentHitPoints('E', 200))
}

func TestScenario_Validate_AttackPowers(t *testing.T) {
	s := scenario.MustParse(sampleMap)
	s.AttackPowers = map[unit.Faction]int{'X': 3}
	assert.Error(t, s.Validate(false))

	s.AttackPowers = map[unit.Faction]int{'E': 0}
	assert.Error(t, s.Validate(false))

	s.AttackPowers = map[unit.Faction]int{'E': 4}
	assert.NoError(t, s.Validate(false))
}

func TestLoadFromFile_Text(t *testing.T) {
	s, err := scenario.LoadFromFile(filepath.Join("testdata", "sample.txt"))
	require.NoError(t, err)
	assert.Equal(t, "sample", s.Name)
	assert.Len(t, s.Spawns, 6)
}

func TestLoadFromFile_YAML(t *testing.T) {
	s, err := scenario.LoadFromFile(filepath.Join("testdata", "sample.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sample", s.Name)
	assert.Equal(t, "Six units in a small walled room.", s.Description)
	assert.Equal(t, 200, s.HitPoints)
	assert.Equal(t, map[unit.Faction]int{'E': 15}, s.AttackPowers)
	assert.Len(t, s.Spawns, 6)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := scenario.LoadFromFile(filepath.Join("testdata", "nope.txt"))
	assert.Error(t, err)
}

func TestLoadFromBytes_InvalidYAML(t *testing.T) {
	_, err := scenario.LoadFromBytes([]byte("not: [valid yaml"))
	assert.Error(t, err)
}

func TestLoadFromBytes_BadFactionKey(t *testing.T) {
	data := `
scenario:
  name: bad
  attack_power:
    elf: 4
  map: |
    #####
    #E.G#
    #####
`
	_, err := scenario.LoadFromBytes([]byte(data))
	assert.Error(t, err)
}

func TestLoadFromBytes_OneSidedFlag(t *testing.T) {
	data := `
scenario:
  name: lonely
  one_sided: true
  map: |
    #####
    #G.G#
    #####
`
	s, err := scenario.LoadFromBytes([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, []unit.Faction{'G'}, s.Factions)
}

func TestLoadDir(t *testing.T) {
	all, err := scenario.LoadDir("testdata")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "corridor", all[0].Name)
	assert.Equal(t, "sample", all[1].Name)
}

func TestLoadDir_Empty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644))
	_, err := scenario.LoadDir(dir)
	assert.Error(t, err)
}

func TestProperty_ParsePreservesLayout(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		w := rapid.IntRange(3, 12).Draw(rt, "w")
		h := rapid.IntRange(3, 12).Draw(rt, "h")
		rows := make([]string, h)
		for y := range rows {
			var b strings.Builder
			for x := 0; x < w; x++ {
				b.WriteByte(rapid.SampledFrom([]byte("#..EG")).Draw(rt, "cell"))
			}
			rows[y] = b.String()
		}
		text := strings.Join(rows, "\n")

		var hasE, hasG bool
		units := 0
		for _, r := range rows {
			hasE = hasE || strings.ContainsRune(r, 'E')
			hasG = hasG || strings.ContainsRune(r, 'G')
			units += strings.Count(r, "E") + strings.Count(r, "G")
		}

		s, err := scenario.ParseString(text)
		if !hasE || !hasG {
			assert.Error(rt, err)
			return
		}
		require.NoError(rt, err)
		require.Len(rt, s.Spawns, units)
		for i := 1; i < len(s.Spawns); i++ {
			assert.True(rt, grid.ReadingLess(s.Spawns[i-1].Pos, s.Spawns[i].Pos))
		}
		for _, sp := range s.Spawns {
			assert.Equal(rt, byte(sp.Faction), rows[sp.Pos.Y][sp.Pos.X])
		}
		for y, r := range rows {
			for x := 0; x < w; x++ {
				wantWall := r[x] == '#'
				assert.Equal(rt, wantWall, s.Map.At(grid.Pos{X: x, Y: y}) == grid.Wall)
			}
		}
	})
}

func TestLoadFromBytes_UnitOverlay(t *testing.T) {
	data := `
scenario:
  name: overlay
  map: |
    ######
    #E...#
    ######
  units:
    - faction: G
      x: 4
      y: 1
      hit_points: 9
    - faction: E
      x: 1
      y: 1
      hit_points: 30
`
	s, err := scenario.LoadFromBytes([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, []unit.Faction{'E', 'G'}, s.Factions)
	assert.Equal(t, []unit.Spawn{
		{Faction: 'E', Pos: grid.Pos{X: 1, Y: 1}, HP: 30},
		{Faction: 'G', Pos: grid.Pos{X: 4, Y: 1}, HP: 9},
	}, s.Spawns)
	assert.Equal(t, 30, s.MaxOpponentHitPoints('G', 200))
}

func TestLoadFromBytes_UnitOnWall(t *testing.T) {
	data := `
scenario:
  name: walled
  map: |
    #####
    #E.G#
    #####
  units:
    - faction: G
      x: 0
      y: 0
`
	_, err := scenario.LoadFromBytes([]byte(data))
	assert.ErrorIs(t, err, scenario.ErrUnitOnWall)
}
