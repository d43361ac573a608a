package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/skirmish/internal/config"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/render"
	"github.com/cory-johannsen/skirmish/internal/game/scenario"
	"github.com/cory-johannsen/skirmish/internal/game/unit"
	"github.com/cory-johannsen/skirmish/internal/observability"
)

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen, color.Bold)
)

// rootFlags holds the persistent flags shared by every subcommand.
type rootFlags struct {
	configPath string
	power      int
	oneSided   bool
}

// app is the per-invocation wiring built from the configuration.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	engine *combat.Engine
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// setup loads the configuration, applies persistent flag overrides and builds
// the logger and engine. Logs go to the command's error stream.
func (f *rootFlags) setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if f.power < 0 {
		return nil, fmt.Errorf("--power must be >= 1, got %d", f.power)
	}
	if f.power > 0 {
		cfg.Simulation.AttackPower = f.power
	}

	logger, err := observability.NewLoggerTo(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return &app{
		cfg:    cfg,
		logger: logger,
		engine: combat.NewEngine(cfg.Simulation, logger),
	}, nil
}

func (f *rootFlags) scenarioOptions() []scenario.Option {
	if f.oneSided {
		return []scenario.Option{scenario.AllowOneSided()}
	}
	return nil
}

func (f *rootFlags) loadScenario(path string) (*scenario.Scenario, error) {
	sc, err := scenario.LoadFromFile(path, f.scenarioOptions()...)
	if err != nil {
		return nil, fmt.Errorf("loading map: %w", err)
	}
	return sc, nil
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "skirmish",
		Short: "Simulate grid battles between factions",
		Long: `skirmish runs turn-based battles on a walled grid map. Units move toward
the nearest reachable enemy and attack the weakest adjacent one until a single
faction is left. The outcome score is the number of completed rounds times the
hit points left on the board.

A map is either a plain text board ('#' wall, '.' floor, a capital letter per
unit) or a .yaml/.yml scenario file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to configuration file (defaults and SKIRMISH_* environment when empty)")
	root.PersistentFlags().IntVarP(&flags.power, "power", "p", 0, "base attack power of every unit (0 keeps the configured value)")
	root.PersistentFlags().BoolVar(&flags.oneSided, "one-sided", false, "accept maps holding a single faction")

	root.AddCommand(
		newOutcomeCmd(flags),
		newSearchCmd(flags),
		newShowCmd(flags),
		newBatchCmd(flags),
	)
	return root
}

func newOutcomeCmd(flags *rootFlags) *cobra.Command {
	var report bool
	cmd := &cobra.Command{
		Use:   "outcome <map>",
		Short: "Print the outcome score of a battle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			sc, err := flags.loadScenario(args[0])
			if err != nil {
				return err
			}
			out, err := a.engine.Simulate(cmd.Context(), sc)
			if err != nil {
				return fmt.Errorf("simulating %s: %w", sc.Name, err)
			}

			w := cmd.OutOrStdout()
			if !report {
				fmt.Fprintln(w, out.Score)
				return nil
			}
			titleColor.Fprintf(w, "Battle %s\n", sc.Name)
			if err := writeOutcomeTable(w, []*scenario.Scenario{sc}, []combat.Outcome{out}); err != nil {
				return err
			}
			successColor.Fprintf(w, "Outcome: %d rounds * %d hit points = %d\n", out.Rounds, out.HitPoints, out.Score)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&report, "report", "r", false, "print a summary table instead of the bare score")
	return cmd
}

func newSearchCmd(flags *rootFlags) *cobra.Command {
	var (
		report   bool
		faction  string
		start    int
		maxPower int
		strategy string
		workers  int
	)
	cmd := &cobra.Command{
		Use:   "search <map>",
		Short: "Find the lowest attack power with which a faction wins without losses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			fs := cmd.Flags()
			if fs.Changed("faction") {
				a.cfg.Search.Faction = faction
			}
			if fs.Changed("start") {
				a.cfg.Search.StartPower = start
			}
			if fs.Changed("max") {
				a.cfg.Search.MaxPower = maxPower
			}
			if fs.Changed("strategy") {
				a.cfg.Search.Strategy = strategy
			}
			if fs.Changed("workers") {
				a.cfg.Search.Workers = workers
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			opts, err := combat.SearchOptionsFromConfig(a.cfg.Search)
			if err != nil {
				return err
			}

			sc, err := flags.loadScenario(args[0])
			if err != nil {
				return err
			}
			res, err := a.engine.Search(cmd.Context(), sc, opts)
			w := cmd.OutOrStdout()
			if report && len(res.Attempts) > 0 {
				titleColor.Fprintf(w, "Attack power search for %s on %s\n", opts.Faction, sc.Name)
				if terr := writeAttemptTable(w, opts.Faction, res.Attempts); terr != nil {
					return terr
				}
			}
			if err != nil {
				return fmt.Errorf("searching %s: %w", sc.Name, err)
			}

			if !report {
				fmt.Fprintln(w, res.Outcome.Score)
				return nil
			}
			successColor.Fprintf(w, "Minimum attack power for %s: %d (outcome %d)\n", opts.Faction, res.Power, res.Outcome.Score)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.BoolVarP(&report, "report", "r", false, "print every attempt instead of the bare score")
	fs.StringVarP(&faction, "faction", "f", "", "faction whose attack power is raised (config search.faction)")
	fs.IntVar(&start, "start", 0, "first attack power tried (config search.start_power)")
	fs.IntVar(&maxPower, "max", 0, "last attack power tried, 0 for the opponents' hit points (config search.max_power)")
	fs.StringVarP(&strategy, "strategy", "s", "", "linear or bisect (config search.strategy)")
	fs.IntVarP(&workers, "workers", "w", 0, "attempts simulated at once (config search.workers)")
	return cmd
}

func newShowCmd(flags *rootFlags) *cobra.Command {
	var (
		useColor bool
		rounds   int
		events   bool
	)
	cmd := &cobra.Command{
		Use:   "show <map>",
		Short: "Print the board after every round of a battle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if cmd.Flags().Changed("color") {
				a.cfg.Render.Color = useColor
			}
			if rounds < 0 {
				return fmt.Errorf("--rounds must be >= 0, got %d", rounds)
			}

			sc, err := flags.loadScenario(args[0])
			if err != nil {
				return err
			}

			palette, err := render.ParsePalette(a.cfg.Render.Palette)
			if err != nil {
				return fmt.Errorf("render.palette: %w", err)
			}

			w := cmd.OutOrStdout()
			ropts := render.Options{
				HitPoints: a.cfg.Render.HitPoints,
				Color:     a.cfg.Render.Color,
				Palette:   palette,
			}
			printRound := func(b *combat.Battle, res combat.RoundResult) {
				if res.Completed {
					titleColor.Fprintf(w, "After %d round%s:\n", res.Round, plural(res.Round))
				} else {
					titleColor.Fprintf(w, "Combat ends during round %d:\n", res.Round+1)
				}
				for _, ev := range res.Events {
					fmt.Fprintf(w, "  %s\n", ev.Narrative)
				}
				fmt.Fprint(w, render.Board(b.Units(), ropts))
				fmt.Fprintln(w)
			}

			bopts := []combat.Option{combat.WithObserver(printRound)}
			if events {
				bopts = append(bopts, combat.WithEventLog())
			}
			b, err := a.engine.NewBattle(sc, bopts...)
			if err != nil {
				return err
			}

			titleColor.Fprintln(w, "Initially:")
			fmt.Fprint(w, render.Board(b.Units(), ropts))
			fmt.Fprintln(w)

			ctx := cmd.Context()
			for !b.Over() && (rounds == 0 || b.Round() < rounds) {
				if err := ctx.Err(); err != nil {
					return err
				}
				if _, err := b.Step(); err != nil {
					return fmt.Errorf("simulating %s: %w", sc.Name, err)
				}
			}
			if b.Over() {
				out := b.Outcome()
				successColor.Fprintf(w, "Outcome: %d rounds * %d hit points = %d\n", out.Rounds, out.HitPoints, out.Score)
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.BoolVar(&useColor, "color", false, "colour walls and faction letters (config render.color)")
	fs.IntVarP(&rounds, "rounds", "n", 0, "stop after this many rounds, 0 for the whole battle")
	fs.BoolVarP(&events, "events", "e", false, "list every move and attack above each board")
	return cmd
}

func newBatchCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Simulate every YAML scenario in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			scs, err := scenario.LoadDir(args[0], flags.scenarioOptions()...)
			if err != nil {
				return fmt.Errorf("loading scenarios: %w", err)
			}

			outs := make([]combat.Outcome, len(scs))
			g, gctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(a.cfg.Search.Workers)
			for i, sc := range scs {
				g.Go(func() error {
					out, err := a.engine.Simulate(gctx, sc)
					if err != nil {
						return fmt.Errorf("simulating %s: %w", sc.Name, err)
					}
					outs[i] = out
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			titleColor.Fprintf(w, "%d scenario%s from %s\n", len(scs), plural(len(scs)), args[0])
			return writeOutcomeTable(w, scs, outs)
		},
	}
	return cmd
}

func writeOutcomeTable(w io.Writer, scs []*scenario.Scenario, outs []combat.Outcome) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Scenario", "Rounds", "Hit Points", "Score", "Winner", "Survivors", "Casualties"}),
	)
	for i, out := range outs {
		winner := out.Winner.String()
		if winner == "" {
			winner = "-"
		}
		row := []string{
			scs[i].Name,
			strconv.Itoa(out.Rounds),
			strconv.Itoa(out.HitPoints),
			strconv.Itoa(out.Score),
			winner,
			formatCounts(out.Survivors),
			formatCounts(out.Casualties),
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func writeAttemptTable(w io.Writer, f unit.Faction, attempts []combat.Attempt) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Power", "Result", "Rounds", "Hit Points", "Score", f.String() + " Lost", "Battle"}),
	)
	for _, at := range attempts {
		result := "lost units"
		switch {
		case at.Success:
			result = "flawless"
		case at.Outcome.Aborted:
			result = "stopped"
		}
		row := []string{
			strconv.Itoa(at.Power),
			result,
			strconv.Itoa(at.Rounds),
			strconv.Itoa(at.Outcome.HitPoints),
			strconv.Itoa(at.Score),
			strconv.Itoa(at.Outcome.Casualties[f]),
			at.BattleID.String()[:8],
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// formatCounts renders per-faction counts as "E:2 G:0" in faction order.
func formatCounts(m map[unit.Faction]int) string {
	if len(m) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(m))
	for _, f := range slices.Sorted(maps.Keys(m)) {
		parts = append(parts, fmt.Sprintf("%s:%d", f, m[f]))
	}
	return strings.Join(parts, " ")
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
