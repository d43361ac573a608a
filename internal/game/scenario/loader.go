package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/skirmish/internal/game/grid"
	"github.com/cory-johannsen/skirmish/internal/game/unit"
)

// yamlScenarioFile is the top-level YAML structure for scenario files.
type yamlScenarioFile struct {
	Scenario yamlScenario `yaml:"scenario"`
}

// yamlScenario is the YAML representation of a scenario.
type yamlScenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	HitPoints   int            `yaml:"hit_points"`
	AttackPower map[string]int `yaml:"attack_power"`
	OneSided    bool           `yaml:"one_sided"`
	Map         string         `yaml:"map"`
	Units       []yamlUnit     `yaml:"units"`
}

// yamlUnit places or adjusts a single unit on top of the map.
type yamlUnit struct {
	Faction   string `yaml:"faction"`
	X         int    `yaml:"x"`
	Y         int    `yaml:"y"`
	HitPoints int    `yaml:"hit_points"`
}

// IsYAML reports whether path names a YAML scenario file rather than a plain
// text map.
func IsYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadFromFile reads a scenario from path. YAML files are decoded with
// LoadFromBytes; anything else is parsed as a plain text map.
//
// Precondition: path must point to a readable file.
// Postcondition: Returns a validated Scenario or a non-nil error.
func LoadFromFile(path string, opts ...Option) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file %s: %w", path, err)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	opts = append([]Option{WithName(base)}, opts...)
	if IsYAML(path) {
		return LoadFromBytes(data, opts...)
	}
	s, err := ParseString(string(data), opts...)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return s, nil
}

// LoadFromBytes parses and validates a scenario from YAML bytes.
//
// Precondition: data must be valid YAML conforming to the scenario schema.
// Postcondition: Returns a validated Scenario or a non-nil error.
func LoadFromBytes(data []byte, opts ...Option) (*Scenario, error) {
	var file yamlScenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", err)
	}
	return convertYAMLScenario(file.Scenario, opts)
}

// LoadDir loads every YAML scenario in dir, sorted by file name.
//
// Precondition: dir must be a valid directory path.
// Postcondition: Returns all validated scenarios or the first error encountered.
func LoadDir(dir string, opts ...Option) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario directory %s: %w", dir, err)
	}

	var out []*Scenario
	for _, entry := range entries {
		if entry.IsDir() || !IsYAML(entry.Name()) {
			continue
		}
		s, err := LoadFromFile(filepath.Join(dir, entry.Name()), opts...)
		if err != nil {
			return nil, fmt.Errorf("loading scenario from %s: %w", entry.Name(), err)
		}
		out = append(out, s)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}
	return out, nil
}

func convertYAMLScenario(ys yamlScenario, opts []Option) (*Scenario, error) {
	if ys.Name != "" {
		opts = append(opts, WithName(ys.Name))
	}
	if ys.OneSided {
		opts = append(opts, AllowOneSided())
	}
	o := collectOptions(opts)

	layout := append(slices.Clone(opts), func(po *parseOptions) { po.deferValidation = true })
	s, err := ParseString(ys.Map, layout...)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: map: %w", o.name, err)
	}
	s.Description = strings.TrimSpace(ys.Description)
	s.HitPoints = ys.HitPoints

	if len(ys.AttackPower) > 0 {
		s.AttackPowers = make(map[unit.Faction]int, len(ys.AttackPower))
		for letter, power := range ys.AttackPower {
			f, err := unit.ParseFaction(letter)
			if err != nil {
				return nil, fmt.Errorf("scenario %q: attack_power: %w", o.name, err)
			}
			s.AttackPowers[f] = power
		}
	}

	for i, yu := range ys.Units {
		if err := s.overlay(yu); err != nil {
			return nil, fmt.Errorf("scenario %q: units[%d]: %w", o.name, i, err)
		}
	}
	if len(ys.Units) > 0 {
		slices.SortFunc(s.Spawns, func(a, b unit.Spawn) int { return grid.CompareReading(a.Pos, b.Pos) })
		set := make(map[unit.Faction]bool)
		for _, sp := range s.Spawns {
			set[sp.Faction] = true
		}
		s.Factions = sortedFactions(set)
	}

	if err := s.Validate(o.allowOneSided); err != nil {
		return nil, fmt.Errorf("validating scenario: %w", err)
	}
	return s, nil
}

// overlay applies one YAML unit entry. A unit already drawn on the map at the
// same square must share the faction and only has its hit points adjusted;
// otherwise the square must be floor and a new unit is spawned there.
func (s *Scenario) overlay(yu yamlUnit) error {
	f, err := unit.ParseFaction(yu.Faction)
	if err != nil {
		return err
	}
	if yu.HitPoints < 0 {
		return fmt.Errorf("hit_points must be >= 0, got %d", yu.HitPoints)
	}
	p := grid.Pos{X: yu.X, Y: yu.Y}
	if !s.Map.IsOpen(p) {
		return fmt.Errorf("%w at %s", ErrUnitOnWall, p)
	}
	for i := range s.Spawns {
		if s.Spawns[i].Pos != p {
			continue
		}
		if s.Spawns[i].Faction != f {
			return fmt.Errorf("square %s already holds a unit of faction %s", p, s.Spawns[i].Faction)
		}
		s.Spawns[i].HP = yu.HitPoints
		return nil
	}
	s.Spawns = append(s.Spawns, unit.Spawn{Faction: f, Pos: p, HP: yu.HitPoints})
	return nil
}
