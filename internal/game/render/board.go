// Package render draws battle boards as text.
package render

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/skirmish/internal/game/grid"
	"github.com/cory-johannsen/skirmish/internal/game/unit"
)

// Options controls Board output.
type Options struct {
	// HitPoints appends "   G(200), E(197)" to rows holding units.
	HitPoints bool
	// Color styles walls and faction letters with ANSI codes.
	Color bool
	// Palette maps factions to ANSI colors. Factions missing from it cycle
	// through DefaultPalette.
	Palette map[unit.Faction]string
}

// DefaultPalette is used for factions without an explicit color.
var DefaultPalette = []string{Green, Red, Cyan, Yellow, Magenta, Blue}

var colorNames = map[string]string{
	"red":     Red,
	"green":   Green,
	"yellow":  Yellow,
	"blue":    Blue,
	"magenta": Magenta,
	"cyan":    Cyan,
	"bold":    Bold,
	"dim":     Dim,
}

// ParsePalette converts a faction letter to color name mapping, as read from
// configuration, into a Palette. Letters and names are case-insensitive.
//
// Postcondition: Returns the Palette (nil for an empty input) or a non-nil
// error naming the first bad entry.
func ParsePalette(named map[string]string) (map[unit.Faction]string, error) {
	if len(named) == 0 {
		return nil, nil
	}
	out := make(map[unit.Faction]string, len(named))
	for letter, name := range named {
		f, err := unit.ParseFaction(strings.ToUpper(letter))
		if err != nil {
			return nil, fmt.Errorf("palette: %w", err)
		}
		code, ok := colorNames[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("palette: unknown color %q for faction %s", name, f)
		}
		out[f] = code
	}
	return out, nil
}

func (o Options) colorOf(f unit.Faction, factions []unit.Faction) string {
	if c, ok := o.Palette[f]; ok {
		return c
	}
	for i, other := range factions {
		if other == f {
			return DefaultPalette[i%len(DefaultPalette)]
		}
	}
	return Bold
}

// Board renders the walls, floor and living units of s, one line per map row,
// each line terminated by a newline.
//
// Precondition: s must be non-nil.
// Postcondition: With Color off the output contains only '#', '.', faction
// letters, annotations and newlines.
func Board(s *unit.Set, opts Options) string {
	m := s.Map()
	factions := s.Factions()

	var b strings.Builder
	var notes []string
	for y := 0; y < m.Height(); y++ {
		notes = notes[:0]
		for x := 0; x < m.Width(); x++ {
			p := grid.Pos{X: x, Y: y}
			if h, ok := s.At(p); ok {
				u, _ := s.Get(h)
				letter := u.Faction.String()
				if opts.Color {
					letter = Colorize(opts.colorOf(u.Faction, factions), letter)
				}
				b.WriteString(letter)
				if opts.HitPoints {
					notes = append(notes, fmt.Sprintf("%s(%d)", u.Faction, u.HP))
				}
				continue
			}
			cell := m.At(p).String()
			if opts.Color && m.At(p) == grid.Wall {
				cell = Colorize(BrightBlack, cell)
			}
			b.WriteString(cell)
		}
		if len(notes) > 0 {
			b.WriteString("   ")
			b.WriteString(strings.Join(notes, ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
