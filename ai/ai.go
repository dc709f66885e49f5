// Package ai implements the move policies an AI player can use, one per
// difficulty.
package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/twipi/tttai/game"
	"github.com/twipi/tttai/mcts"
	"github.com/twipi/tttai/solver"
	"golang.org/x/exp/rand"
)

// Policy picks a move for the player to move in a position.
type Policy interface {
	// NextMove returns a legal move for s. If s has no legal moves, it
	// returns false.
	NextMove(s game.State) (int, bool)
}

// Difficulty names a policy.
type Difficulty string

const (
	// Easy plays uniformly random moves.
	Easy Difficulty = "easy"
	// Medium searches with Monte Carlo Tree Search.
	Medium Difficulty = "medium"
	// Hard plays perfectly from the precomputed outcome table.
	Hard Difficulty = "hard"
)

// Difficulties returns all difficulties from easiest to hardest.
func Difficulties() []Difficulty {
	return []Difficulty{Easy, Medium, Hard}
}

// ParseDifficulty parses a difficulty name. The aliases "random", "mcts" and
// "perfect" are accepted as well.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy", "random":
		return Easy, nil
	case "medium", "mcts":
		return Medium, nil
	case "hard", "perfect":
		return Hard, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q, expected one of easy, medium, hard", s)
	}
}

// String implements [pflag.Value].
func (d Difficulty) String() string { return string(d) }

// Set implements [pflag.Value].
func (d *Difficulty) Set(s string) error {
	v, err := ParseDifficulty(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Type implements [pflag.Value].
func (d *Difficulty) Type() string { return "difficulty" }

// Config configures the policies created by [New].
type Config struct {
	// MCTS is the search configuration of the Medium policy.
	MCTS mcts.Config
	// Seed seeds the random source of Easy and Medium policies. Zero picks a
	// seed from the clock.
	Seed uint64
	// Table is the outcome table of the Hard policy. Nil uses
	// [solver.Default].
	Table *solver.Table
}

// DefaultConfig returns the default policy configuration.
func DefaultConfig() Config {
	return Config{MCTS: mcts.DefaultConfig()}
}

func (c Config) rand() *rand.Rand {
	seed := c.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewSource(seed))
}

// New creates the policy for the given difficulty. Policies that use
// randomness own their random source and are not safe for concurrent use.
func New(d Difficulty, cfg Config) (Policy, error) {
	switch d {
	case Easy:
		return NewRandom(cfg.rand()), nil
	case Medium:
		return NewTree(cfg.MCTS, cfg.rand()), nil
	case Hard:
		return NewPerfect(cfg.Table), nil
	default:
		return nil, fmt.Errorf("unknown difficulty %q", d)
	}
}

// Random plays uniformly random legal moves.
type Random struct {
	rng *rand.Rand
}

// NewRandom creates a random policy drawing from rng.
func NewRandom(rng *rand.Rand) *Random {
	return &Random{rng: rng}
}

// NextMove implements [Policy].
func (r *Random) NextMove(s game.State) (int, bool) {
	if s.IsTerminal() {
		return 0, false
	}
	return game.RandomMove(s, r.rng)
}

// Perfect plays the move with the best guaranteed outcome.
type Perfect struct {
	table *solver.Table
}

// NewPerfect creates a perfect policy reading from table. If table is nil,
// the process-wide table is used.
func NewPerfect(table *solver.Table) *Perfect {
	if table == nil {
		table = solver.Default()
	}
	return &Perfect{table: table}
}

// NextMove implements [Policy].
func (p *Perfect) NextMove(s game.State) (int, bool) {
	if s.IsTerminal() {
		return 0, false
	}
	return p.table.BestMove(s)
}

// Table returns the outcome table the policy reads from.
func (p *Perfect) Table() *solver.Table { return p.table }

// Tree plays the most visited move of a fresh Monte Carlo search per call.
type Tree struct {
	cfg mcts.Config
	rng *rand.Rand
}

// NewTree creates a search policy with the given configuration and random
// source.
func NewTree(cfg mcts.Config, rng *rand.Rand) *Tree {
	return &Tree{cfg: cfg, rng: rng}
}

// Search runs a full search rooted at s.
func (t *Tree) Search(s game.State) mcts.Result {
	return mcts.Search(s, mcts.WithConfig(t.cfg), mcts.WithRand(t.rng))
}

// NextMove implements [Policy].
func (t *Tree) NextMove(s game.State) (int, bool) {
	if s.IsTerminal() {
		return 0, false
	}
	res := t.Search(s)
	return res.Move, res.OK
}

// AI represents an AI player playing one side of a game.
type AI struct {
	policy Policy
	player game.Player
}

// NewAI creates a new AI player for p.
func NewAI(policy Policy, p game.Player) *AI {
	return &AI{policy: policy, player: p}
}

// Player returns the side the AI plays.
func (a *AI) Player() game.Player { return a.player }

// NextMove returns the next move that the AI should make.
// If the game is over or it is not the AI's turn, return false.
func (a *AI) NextMove(s game.State) (int, bool) {
	if s.Turn() != a.player || s.IsTerminal() {
		return 0, false
	}
	return a.policy.NextMove(s)
}

// MakeMove plays the AI's next move on s.
// Returns false if no move was made.
func (a *AI) MakeMove(s game.State) (game.State, bool) {
	move, ok := a.NextMove(s)
	if !ok {
		return s, false
	}
	next, err := s.Apply(move)
	if err != nil {
		return s, false
	}
	return next, true
}
