// Command tttarena plays two AI difficulties against each other and prints
// the results.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/muesli/termenv"
	"github.com/spf13/pflag"
	"github.com/twipi/tttai/ai"
	"github.com/twipi/tttai/arena"
	"github.com/twipi/tttai/mcts"
	"github.com/twipi/tttai/solver"
)

var (
	xDifficulty = ai.Medium
	oDifficulty = ai.Hard
	games       = 100
	concurrency = 0
	seed        uint64
	iterations  = mcts.DefaultIterations
	exploration = mcts.DefaultExplorationConstant
	reward      = mcts.RewardMover.String()
	csvPath     = ""
	debug       = false
)

func init() {
	pflag.VarP(&xDifficulty, "x-difficulty", "x", "difficulty of the X player (easy, medium, hard)")
	pflag.VarP(&oDifficulty, "o-difficulty", "o", "difficulty of the O player (easy, medium, hard)")
	pflag.IntVarP(&games, "games", "n", games, "number of games to play")
	pflag.IntVarP(&concurrency, "concurrency", "j", concurrency, "games played at once, 0 for GOMAXPROCS")
	pflag.Uint64Var(&seed, "seed", seed, "random seed, 0 for a seed from the clock")
	pflag.IntVar(&iterations, "mcts-iterations", iterations, "MCTS simulations per move")
	pflag.Float64Var(&exploration, "mcts-exploration", exploration, "MCTS exploration constant")
	pflag.StringVar(&reward, "mcts-reward", reward, "MCTS rollout reward scheme (mover, decisive)")
	pflag.StringVar(&csvPath, "csv", csvPath, "write game records to this CSV file")
	pflag.BoolVar(&debug, "debug", debug, "enable debug logging")
	pflag.Parse()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	logger := slog.Default()

	os.Exit(start(ctx, logger))
}

func start(ctx context.Context, logger *slog.Logger) int {
	scheme, err := mcts.ParseRewardScheme(reward)
	if err != nil {
		logger.Error(
			"invalid reward scheme",
			"err", err)
		return 2
	}

	began := time.Now()
	table := solver.Default()
	logger.Debug(
		"built outcome table",
		"positions", table.Visited(),
		"took", time.Since(began))

	cfg := arena.DefaultConfig()
	cfg.Games = games
	cfg.Concurrency = concurrency
	cfg.Seed = seed
	cfg.Policy = ai.Config{
		MCTS: mcts.Config{
			Iterations:          iterations,
			ExplorationConstant: exploration,
			Reward:              scheme,
		},
		Table: table,
	}

	m := arena.Matchup{X: xDifficulty, O: oDifficulty}

	logger.Info(
		"starting arena",
		"matchup", m,
		"games", games,
		"seed", seed)

	began = time.Now()
	summary, records, err := arena.Run(ctx, m, cfg)
	if err != nil {
		logger.Error(
			"arena failed",
			"matchup", m,
			"err", err)
		return 1
	}

	logger.Info(
		"arena finished",
		"matchup", m,
		"took", time.Since(began))

	printSummary(termenv.NewOutput(os.Stdout), m, summary)

	if csvPath != "" {
		if err := writeRecords(csvPath, records); err != nil {
			logger.Error(
				"failed to write records",
				"path", csvPath,
				"err", err)
			return 1
		}
		logger.Info(
			"wrote records",
			"path", csvPath,
			"records", len(records))
	}

	return 0
}

func printSummary(out *termenv.Output, m arena.Matchup, s arena.Summary) {
	fmt.Fprintln(out, out.String(m.String()).Bold())

	line := func(label string, n int, color string) {
		pct := 0.0
		if s.Games > 0 {
			pct = 100 * float64(n) / float64(s.Games)
		}
		fmt.Fprintf(out, "  %s %4d  (%5.1f%%)\n",
			out.String(fmt.Sprintf("%-14s", label)).Foreground(out.Color(color)),
			n, pct)
	}

	line(fmt.Sprintf("X (%s)", m.X), s.XWins, "1")
	line(fmt.Sprintf("O (%s)", m.O), s.OWins, "4")
	line("draws", s.Draws, "8")
}

func writeRecords(path string, records []arena.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create records file: %w", err)
	}
	defer f.Close()

	if err := arena.WriteCSV(f, records); err != nil {
		return err
	}
	return f.Close()
}
