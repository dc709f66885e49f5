// Package solver precomputes the game-theoretic outcome of every Tic-Tac-Toe
// position reachable from the empty board and picks moves from it.
package solver

import (
	"fmt"
	"sync"

	"github.com/twipi/tttai/game"
)

// Outcome is the result of a position under optimal play by both sides.
type Outcome uint8

const (
	// Ongoing marks table entries that were never computed. The solver never
	// assigns it to a visited position.
	Ongoing Outcome = iota
	XWins
	OWins
	Draw
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case XWins:
		return "x-wins"
	case OWins:
		return "o-wins"
	case Draw:
		return "draw"
	default:
		return "ongoing"
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "x-wins":
		*o = XWins
	case "o-wins":
		*o = OWins
	case "draw":
		*o = Draw
	case "ongoing":
		*o = Ongoing
	default:
		return fmt.Errorf("unknown outcome %q", text)
	}
	return nil
}

// WinFor returns the outcome of p winning.
func WinFor(p game.Player) Outcome {
	switch p {
	case game.PlayerX:
		return XWins
	case game.PlayerO:
		return OWins
	default:
		return Draw
	}
}

// Winner returns the winning player of the outcome, or NoPlayer for draws and
// unknown outcomes.
func (o Outcome) Winner() game.Player {
	switch o {
	case XWins:
		return game.PlayerX
	case OWins:
		return game.PlayerO
	default:
		return game.NoPlayer
	}
}

// rank orders outcomes from the point of view of the mover: a win ranks 2, a
// draw 1 and a loss 0. Unknown outcomes rank below everything.
func rank(o Outcome, mover game.Player) int {
	switch o {
	case Ongoing:
		return -1
	case Draw:
		return 1
	case WinFor(mover):
		return 2
	default:
		return 0
	}
}

// Table holds the outcome of every position indexed by [game.Board.Index].
// It is read-only once built and safe for concurrent use.
type Table struct {
	outcomes [game.NumIndices]Outcome
}

// Build computes the outcome table by backward induction from the empty
// board. Every position reachable in a legal game is populated; the rest stay
// [Ongoing].
func Build() *Table {
	t := new(Table)
	solve(game.NewState(), &t.outcomes)

	// Short-circuiting on wins skips the siblings of a winning move, so sweep
	// the index space for reachable positions the first pass never entered.
	for idx := range game.NumIndices {
		if t.outcomes[idx] != Ongoing {
			continue
		}
		s, ok := reachableState(idx)
		if !ok {
			continue
		}
		solve(s, &t.outcomes)
	}
	return t
}

// reachableState decodes idx with the player to move implied by the piece
// count and reports whether the position can occur in a legal game.
func reachableState(idx int) (game.State, bool) {
	b, err := game.BoardFromIndex(idx)
	if err != nil {
		return game.State{}, false
	}
	turn := game.PlayerX
	if b.Count(game.PlayerX) > b.Count(game.PlayerO) {
		turn = game.PlayerO
	}
	s, err := game.NewStateFrom(b, turn)
	if err != nil || s.CheckReachable() != nil {
		return game.State{}, false
	}
	return s, true
}

// solve returns the outcome of s, memoizing every visited position in memo.
func solve(s game.State, memo *[game.NumIndices]Outcome) Outcome {
	idx := s.Index()
	if o := memo[idx]; o != Ongoing {
		return o
	}

	var best Outcome
	if winner := s.Winner(); winner != game.NoPlayer {
		best = WinFor(winner)
	} else if s.IsTerminal() {
		best = Draw
	} else {
		mover := s.Turn()
		bestRank := -1
		for _, move := range s.LegalMoves() {
			next, err := s.Apply(move)
			if err != nil {
				panic(fmt.Sprintf("solver: legal move %d rejected: %v", move, err))
			}

			o := solve(next, memo)
			if r := rank(o, mover); r > bestRank {
				best, bestRank = o, r
				if r == 2 {
					break
				}
			}
		}
	}

	memo[idx] = best
	return best
}

// At returns the outcome stored for the given board index. Out-of-range
// indices report [Ongoing].
func (t *Table) At(idx int) Outcome {
	if idx < 0 || idx >= game.NumIndices {
		return Ongoing
	}
	return t.outcomes[idx]
}

// Outcome returns the outcome of the given board.
func (t *Table) Outcome(b game.Board) Outcome {
	return t.outcomes[b.Index()]
}

// Visited returns the number of populated positions.
func (t *Table) Visited() int {
	var n int
	for _, o := range t.outcomes {
		if o != Ongoing {
			n++
		}
	}
	return n
}

// Default returns the process-wide table, building it on first use.
var Default = sync.OnceValue(Build)
