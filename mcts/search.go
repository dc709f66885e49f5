package mcts

import "github.com/twipi/tttai/game"

// ChildStats summarizes one child of the root after a search.
type ChildStats struct {
	Move   int     `json:"move"`
	Visits int     `json:"visits"`
	Reward float64 `json:"reward"`
	// WinRate is Reward/Visits from the point of view of the player to move
	// at the root.
	WinRate float64 `json:"win_rate"`
}

// Result is the outcome of a search.
type Result struct {
	// Move is the chosen move. It is only meaningful if OK is true.
	Move int  `json:"move"`
	OK   bool `json:"ok"`
	// Iterations is the number of simulations that were run.
	Iterations int `json:"iterations"`
	// Nodes is the size of the tree when the search ended.
	Nodes int `json:"nodes"`
	// Children lists the root's children in expansion order.
	Children []ChildStats `json:"children"`
}

// Result returns the current search result of the tree.
func (t *Tree) Result() Result {
	move, ok := t.BestMove()
	root := t.Root()

	children := make([]ChildStats, 0, len(root.Children))
	for _, c := range root.Children {
		child := &t.nodes[c]
		stats := ChildStats{
			Move:   child.Move,
			Visits: child.Visits,
			Reward: child.Reward,
		}
		if child.Visits > 0 {
			stats.WinRate = child.Reward / float64(child.Visits)
		}
		children = append(children, stats)
	}

	return Result{
		Move:       move,
		OK:         ok,
		Iterations: t.runs,
		Nodes:      len(t.nodes),
		Children:   children,
	}
}

// Search runs a full search rooted at s and returns its result. The tree is
// discarded afterwards.
func Search(s game.State, opts ...Option) Result {
	t := NewTree(s, opts...)
	t.Run()
	return t.Result()
}
