package scenario

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/cory-johannsen/skirmish/internal/game/grid"
	"github.com/cory-johannsen/skirmish/internal/game/unit"
)

type parseOptions struct {
	allowOneSided bool
	name          string

	// deferValidation leaves Validate to a caller that still edits the spawns.
	deferValidation bool
}

// Option adjusts parsing.
type Option func(*parseOptions)

// AllowOneSided accepts maps whose units all belong to one faction. Such a
// battle is over before its first round.
func AllowOneSided() Option {
	return func(o *parseOptions) { o.allowOneSided = true }
}

// WithName sets the scenario name used in errors and logs.
func WithName(name string) Option {
	return func(o *parseOptions) { o.name = name }
}

func collectOptions(opts []Option) parseOptions {
	var o parseOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Parse reads a text battle map: '#' is a wall, '.' is floor and an upper-case
// letter is a unit of that faction standing on floor. Blank lines before and
// after the grid are ignored; blank lines inside it are not.
//
// Precondition: r must be non-nil.
// Postcondition: Returns a validated Scenario or an error wrapping one of the
// package's malformed-input errors.
func Parse(r io.Reader, opts ...Option) (*Scenario, error) {
	o := collectOptions(opts)

	var rows []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		rows = append(rows, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading map: %w", err)
	}
	first := slices.IndexFunc(rows, func(s string) bool { return strings.TrimSpace(s) != "" })
	if first < 0 {
		return nil, ErrEmptyMap
	}
	last := len(rows) - 1
	for strings.TrimSpace(rows[last]) == "" {
		last--
	}
	rows = rows[first : last+1]

	width := len(rows[0])
	height := len(rows)
	cells := make([]grid.Cell, 0, width*height)
	var spawns []unit.Spawn
	factions := make(map[unit.Faction]bool)

	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("line %d: %w: expected %d columns, got %d", first+y+1, ErrRaggedRows, width, len(row))
		}
		for x := 0; x < len(row); x++ {
			ch := row[x]
			switch {
			case ch == '#':
				cells = append(cells, grid.Wall)
			case ch == '.':
				cells = append(cells, grid.Empty)
			case unit.Faction(ch).Valid():
				cells = append(cells, grid.Empty)
				f := unit.Faction(ch)
				factions[f] = true
				spawns = append(spawns, unit.Spawn{Faction: f, Pos: grid.Pos{X: x, Y: y}})
			default:
				return nil, fmt.Errorf("line %d, column %d: %w %q", first+y+1, x+1, ErrUnknownCell, ch)
			}
		}
	}

	m, err := grid.New(width, height, cells)
	if err != nil {
		return nil, fmt.Errorf("building map: %w", err)
	}
	s := &Scenario{
		Name:     o.name,
		Map:      m,
		Spawns:   spawns,
		Factions: sortedFactions(factions),
	}
	if o.deferValidation {
		return s, nil
	}
	if err := s.Validate(o.allowOneSided); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseString parses a map held in memory.
func ParseString(text string, opts ...Option) (*Scenario, error) {
	return Parse(strings.NewReader(text), opts...)
}

// MustParse parses text and panics on error. Intended for tests and
// package-level fixtures.
func MustParse(text string, opts ...Option) *Scenario {
	s, err := ParseString(text, opts...)
	if err != nil {
		panic("scenario: MustParse: " + err.Error())
	}
	return s
}

func sortedFactions(set map[unit.Faction]bool) []unit.Faction {
	out := make([]unit.Faction, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}
