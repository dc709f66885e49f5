// Package mcts implements Monte Carlo Tree Search with UCB1 selection over
// Tic-Tac-Toe positions.
//
// A [Tree] is built for a single search and discarded afterwards. Nodes live
// in a flat slice and refer to each other by index.
package mcts

import (
	"fmt"
	"math"
	"time"

	"github.com/twipi/tttai/game"
	"golang.org/x/exp/rand"
)

const (
	// DefaultIterations is the default simulation budget per search.
	DefaultIterations = 2000
	// DefaultExplorationConstant is the default UCB1 exploration weight.
	DefaultExplorationConstant = math.Sqrt2
)

// RewardScheme decides how a finished rollout is scored for the player who
// moved into the expanded node.
type RewardScheme uint8

const (
	// RewardMover scores a rollout 1 if the player who moved into the node
	// won, 0.5 on a draw and 0 if the opponent won.
	RewardMover RewardScheme = iota
	// RewardDecisive scores any decisive rollout 1 and a draw 0.5, regardless
	// of who won.
	RewardDecisive
)

// String returns the string representation of the scheme.
func (r RewardScheme) String() string {
	switch r {
	case RewardMover:
		return "mover"
	case RewardDecisive:
		return "decisive"
	default:
		return fmt.Sprintf("RewardScheme(%d)", uint8(r))
	}
}

// ParseRewardScheme parses the output of [RewardScheme.String].
func ParseRewardScheme(s string) (RewardScheme, error) {
	switch s {
	case "mover":
		return RewardMover, nil
	case "decisive":
		return RewardDecisive, nil
	default:
		return 0, fmt.Errorf("unknown reward scheme %q", s)
	}
}

// Config holds the tunable parameters of a search.
type Config struct {
	// Iterations is the number of select/expand/simulate/backpropagate cycles.
	Iterations int `json:"iterations"`
	// ExplorationConstant is C in the UCB1 formula.
	ExplorationConstant float64 `json:"exploration_constant"`
	// Reward is the rollout scoring scheme.
	Reward RewardScheme `json:"-"`
}

// DefaultConfig returns the default search configuration.
func DefaultConfig() Config {
	return Config{
		Iterations:          DefaultIterations,
		ExplorationConstant: DefaultExplorationConstant,
		Reward:              RewardMover,
	}
}

// Option configures a search.
type Option func(t *Tree)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(t *Tree) {
		t.cfg = cfg
	}
}

// WithIterations sets the simulation budget. Negative values are ignored;
// zero runs no simulations.
func WithIterations(iterations int) Option {
	return func(t *Tree) {
		if iterations >= 0 {
			t.cfg.Iterations = iterations
		}
	}
}

// WithExplorationConstant sets the UCB1 exploration weight. Negative values
// are ignored.
func WithExplorationConstant(c float64) Option {
	return func(t *Tree) {
		if c >= 0 {
			t.cfg.ExplorationConstant = c
		}
	}
}

// WithReward sets the rollout scoring scheme.
func WithReward(scheme RewardScheme) Option {
	return func(t *Tree) {
		t.cfg.Reward = scheme
	}
}

// WithRand sets the random source used for rollouts. A nil source is
// ignored.
func WithRand(rng *rand.Rand) Option {
	return func(t *Tree) {
		if rng != nil {
			t.rng = rng
		}
	}
}

// Node is one visited position of the search tree.
type Node struct {
	State game.State
	// Move is the cell played to reach this node from its parent. It is -1
	// for the root.
	Move int
	// Parent is the index of the parent node, -1 for the root.
	Parent   int
	Children []int
	Visits   int
	Reward   float64
	// Untried holds the legal moves not yet expanded into children.
	Untried []int
}

func (n *Node) terminal() bool {
	return n.State.IsTerminal()
}

func (n *Node) expanded() bool {
	return len(n.Untried) == 0
}

// Tree is a search tree rooted at a single position. It is not safe for
// concurrent use.
type Tree struct {
	cfg   Config
	rng   *rand.Rand
	nodes []Node
	runs  int
}

// NewTree creates a tree rooted at s.
func NewTree(s game.State, opts ...Option) *Tree {
	t := &Tree{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(t)
	}
	if t.rng == nil {
		t.rng = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}
	t.nodes = []Node{newNode(s, -1, -1)}
	return t
}

func newNode(s game.State, parent, move int) Node {
	var untried []int
	if !s.IsTerminal() {
		untried = s.LegalMoves()
	}
	return Node{
		State:   s,
		Move:    move,
		Parent:  parent,
		Untried: untried,
	}
}

// Config returns the configuration of the tree.
func (t *Tree) Config() Config { return t.cfg }

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// Iterations returns the number of simulations run so far.
func (t *Tree) Iterations() int { return t.runs }

// Node returns the node at index i. Index 0 is the root.
func (t *Tree) Node(i int) *Node { return &t.nodes[i] }

// Root returns the root node.
func (t *Tree) Root() *Node { return &t.nodes[0] }

// Run performs the configured number of simulations.
func (t *Tree) Run() {
	for range t.cfg.Iterations {
		t.Step()
	}
}

// Step performs a single select/expand/simulate/backpropagate cycle.
func (t *Tree) Step() {
	leaf := t.expand(t.selectNode())
	reward := t.simulate(leaf)
	t.backpropagate(leaf, reward)
	t.runs++
}

// selectNode descends from the root through fully expanded nodes, always
// taking the child with the highest UCB1 score.
func (t *Tree) selectNode() int {
	i := 0
	for {
		n := &t.nodes[i]
		if n.terminal() || !n.expanded() {
			return i
		}
		i = t.bestChild(i)
	}
}

// bestChild returns the child of i with the highest UCB1 score. A child with
// no visits is returned immediately.
func (t *Tree) bestChild(i int) int {
	parent := &t.nodes[i]
	lnParent := math.Log(float64(parent.Visits))

	best, bestScore := -1, math.Inf(-1)
	for _, c := range parent.Children {
		child := &t.nodes[c]
		if child.Visits == 0 {
			return c
		}

		visits := float64(child.Visits)
		score := child.Reward/visits + t.cfg.ExplorationConstant*math.Sqrt(lnParent/visits)
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

// expand adds a child for the last untried move of i and returns its index.
// Terminal nodes are returned unchanged.
func (t *Tree) expand(i int) int {
	n := &t.nodes[i]
	if n.terminal() {
		return i
	}
	if len(n.Untried) == 0 {
		panic(fmt.Sprintf("mcts: expanding node %d with no untried moves", i))
	}

	move := n.Untried[len(n.Untried)-1]
	n.Untried = n.Untried[:len(n.Untried)-1]

	next, err := n.State.Apply(move)
	if err != nil {
		panic(fmt.Sprintf("mcts: untried move %d rejected: %v", move, err))
	}

	child := len(t.nodes)
	// n must not be used past this append, it may move the backing array.
	t.nodes = append(t.nodes, newNode(next, i, move))
	t.nodes[i].Children = append(t.nodes[i].Children, child)
	return child
}

// simulate plays a random game from node i and scores it for the player who
// moved into i.
func (t *Tree) simulate(i int) float64 {
	n := &t.nodes[i]
	mover := n.State.Turn().Opponent()
	end := game.Playout(n.State, t.rng)
	return score(end.Winner(), mover, t.cfg.Reward)
}

func score(winner, mover game.Player, scheme RewardScheme) float64 {
	switch {
	case winner == game.NoPlayer:
		return 0.5
	case scheme == RewardDecisive:
		return 1
	case winner == mover:
		return 1
	default:
		return 0
	}
}

// backpropagate credits reward to i and its ancestors, flipping it at every
// ply.
func (t *Tree) backpropagate(i int, reward float64) {
	for i >= 0 {
		n := &t.nodes[i]
		n.Visits++
		n.Reward += reward
		reward = 1 - reward
		i = n.Parent
	}
}

// BestMove returns the move leading to the most visited child of the root,
// or false if the root has no children.
func (t *Tree) BestMove() (int, bool) {
	root := t.Root()
	best := -1
	for _, c := range root.Children {
		if best == -1 || t.nodes[c].Visits > t.nodes[best].Visits {
			best = c
		}
	}
	if best == -1 {
		return 0, false
	}
	return t.nodes[best].Move, true
}
