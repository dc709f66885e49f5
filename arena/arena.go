// Package arena plays policies against each other and records the games.
package arena

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/twipi/tttai/ai"
	"github.com/twipi/tttai/game"
	"github.com/twipi/tttai/solver"
	"golang.org/x/sync/errgroup"
)

// Matchup names the policies playing each side.
type Matchup struct {
	X ai.Difficulty
	O ai.Difficulty
}

func (m Matchup) String() string {
	return fmt.Sprintf("%s-vs-%s", m.X, m.O)
}

// Config configures a run.
type Config struct {
	// Games is the number of games to play.
	Games int
	// Concurrency is the number of games played at once. Zero uses
	// GOMAXPROCS.
	Concurrency int
	// Seed seeds every game's policies. Zero picks a seed from the clock.
	Seed uint64
	// Policy is the base policy configuration.
	Policy ai.Config
}

// DefaultConfig returns the default arena configuration.
func DefaultConfig() Config {
	return Config{
		Games:  100,
		Policy: ai.DefaultConfig(),
	}
}

// Record is one finished game.
type Record struct {
	Game     int
	Matchup  Matchup
	Winner   game.Player
	Outcome  solver.Outcome
	Moves    []int
	Board    game.Board
	Duration time.Duration
}

// Summary counts the results of a run.
type Summary struct {
	Games int
	XWins int
	OWins int
	Draws int
}

func (s *Summary) add(r Record) {
	s.Games++
	switch r.Winner {
	case game.PlayerX:
		s.XWins++
	case game.PlayerO:
		s.OWins++
	default:
		s.Draws++
	}
}

// Run plays cfg.Games games of m. Game i seeds X with Seed+2i and O with
// Seed+2i+1. Records are returned in game order.
func Run(ctx context.Context, m Matchup, cfg Config) (Summary, []Record, error) {
	if cfg.Games < 0 {
		return Summary{}, nil, fmt.Errorf("invalid number of games %d", cfg.Games)
	}
	for _, d := range []*ai.Difficulty{&m.X, &m.O} {
		parsed, err := ai.ParseDifficulty(string(*d))
		if err != nil {
			return Summary{}, nil, err
		}
		*d = parsed
	}

	if cfg.Policy.Table == nil {
		cfg.Policy.Table = solver.Default()
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	records := make([]Record, cfg.Games)

	errg, ctx := errgroup.WithContext(ctx)
	errg.SetLimit(concurrency)

	for i := range cfg.Games {
		errg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			r, err := playGame(i, m, cfg)
			if err != nil {
				return fmt.Errorf("game %d: %w", i, err)
			}

			records[i] = r
			return nil
		})
	}

	if err := errg.Wait(); err != nil {
		return Summary{}, nil, err
	}

	var summary Summary
	for _, r := range records {
		summary.add(r)
	}

	return summary, records, nil
}

func playGame(i int, m Matchup, cfg Config) (Record, error) {
	xcfg := cfg.Policy
	xcfg.Seed = cfg.Seed + 2*uint64(i)
	x, err := ai.New(m.X, xcfg)
	if err != nil {
		return Record{}, err
	}

	ocfg := cfg.Policy
	ocfg.Seed = cfg.Seed + 2*uint64(i) + 1
	o, err := ai.New(m.O, ocfg)
	if err != nil {
		return Record{}, err
	}

	players := map[game.Player]*ai.AI{
		game.PlayerX: ai.NewAI(x, game.PlayerX),
		game.PlayerO: ai.NewAI(o, game.PlayerO),
	}

	start := time.Now()
	s := game.NewState()
	moves := make([]int, 0, game.NumCells)

	for !s.IsTerminal() {
		move, ok := players[s.Turn()].NextMove(s)
		if !ok {
			return Record{}, fmt.Errorf("%s did not move on %s", s.Turn(), s.Board().Compact())
		}

		s, err = s.Apply(move)
		if err != nil {
			return Record{}, err
		}
		moves = append(moves, move)
	}

	return Record{
		Game:     i,
		Matchup:  m,
		Winner:   s.Winner(),
		Outcome:  solver.WinFor(s.Winner()),
		Moves:    moves,
		Board:    s.Board(),
		Duration: time.Since(start),
	}, nil
}
