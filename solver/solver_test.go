package solver

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twipi/tttai/game"
)

// reachablePositions is the number of distinct positions that can occur in a
// game of Tic-Tac-Toe, counting the empty board and stopping at wins.
const reachablePositions = 5478

func mustState(t *testing.T, board string, turn game.Player) game.State {
	t.Helper()
	b, err := game.ParseBoard(board)
	require.NoError(t, err)
	s, err := game.NewStateFrom(b, turn)
	require.NoError(t, err)
	return s
}

func TestBuild(t *testing.T) {
	table := Build()

	assert.Equal(t, Draw, table.Outcome(game.Board{}), "empty board is a theoretical draw")
	assert.Equal(t, reachablePositions, table.Visited())
	assert.Same(t, Default(), Default(), "default table is built once")
}

func TestBuildCoversReachable(t *testing.T) {
	table := Default()

	var reachable int
	for idx := range game.NumIndices {
		b, err := game.BoardFromIndex(idx)
		require.NoError(t, err)

		turn := game.PlayerX
		if b.Count(game.PlayerX) > b.Count(game.PlayerO) {
			turn = game.PlayerO
		}
		s, err := game.NewStateFrom(b, turn)
		require.NoError(t, err)

		if s.CheckReachable() != nil {
			assert.Equal(t, Ongoing, table.At(idx), "unreachable board %s", b.Compact())
			continue
		}

		reachable++
		o := table.At(idx)
		require.NotEqual(t, Ongoing, o, "reachable board %s", b.Compact())

		switch winner := s.Winner(); {
		case winner != game.NoPlayer:
			assert.Equal(t, WinFor(winner), o, "won board %s", b.Compact())
		case s.IsTerminal():
			assert.Equal(t, Draw, o, "full board %s", b.Compact())
		}
	}
	assert.Equal(t, reachablePositions, reachable)
}

func TestOutcomes(t *testing.T) {
	table := Default()

	tests := []struct {
		board   string
		outcome Outcome
	}{
		{"X........", Draw},
		{"XO.......", XWins},
		{"X../.O./...", Draw},
		{"X../O../...", XWins},
		{"XX./OO./...", XWins},
		{"XX./OO./..X", OWins},
		{"XXX/OO./...", XWins},
		{"XOX/XOO/OXX", Draw},
	}

	for _, test := range tests {
		t.Run(test.board, func(t *testing.T) {
			b, err := game.ParseBoard(test.board)
			require.NoError(t, err)
			assert.Equal(t, test.outcome, table.Outcome(b))
		})
	}
}

func TestBestMove(t *testing.T) {
	table := Default()

	t.Run("immediate win", func(t *testing.T) {
		s := mustState(t, "XX./OO./...", game.PlayerX)
		move, ok := table.BestMove(s)
		require.True(t, ok)
		assert.Equal(t, 2, move)
	})

	t.Run("block", func(t *testing.T) {
		s := mustState(t, "XX./.O./...", game.PlayerO)
		move, ok := table.BestMove(s)
		require.True(t, ok)
		assert.Equal(t, 2, move)
	})

	t.Run("first of equal moves", func(t *testing.T) {
		move, ok := table.BestMove(game.NewState())
		require.True(t, ok)
		assert.Equal(t, 0, move, "every opening draws, so the first cell is chosen")
	})

	t.Run("terminal", func(t *testing.T) {
		_, ok := table.BestMove(mustState(t, "XOX/XOO/OXX", game.PlayerO))
		assert.False(t, ok)
	})

	t.Run("won with empty cells", func(t *testing.T) {
		_, ok := table.BestMove(mustState(t, "XXX/OO./...", game.PlayerO))
		assert.False(t, ok, "no move is played after a win")
	})
}

func TestRank(t *testing.T) {
	table := Default()
	s := mustState(t, "XX./OO./...", game.PlayerX)

	ranked := table.Rank(s)
	require.Len(t, ranked, 5)
	assert.Equal(t, MoveOutcome{Move: 2, Outcome: XWins}, ranked[0])
	for _, mo := range ranked {
		assert.Contains(t, s.LegalMoves(), mo.Move)
		assert.NotEqual(t, Ongoing, mo.Outcome, "move %d", mo.Move)
	}
}

func TestSelfPlay(t *testing.T) {
	table := Default()

	for opening := range game.NumCells {
		t.Run(fmt.Sprintf("start(%d)", opening), func(t *testing.T) {
			s, err := game.NewState().Apply(opening)
			require.NoError(t, err)

			for !s.IsTerminal() {
				move, ok := table.BestMove(s)
				require.True(t, ok)
				s, err = s.Apply(move)
				require.NoError(t, err)
			}

			assert.Equal(t, game.NoPlayer, s.Winner(),
				"game should always end in a draw, got\n%s", s.Board())
		})
	}
}

// exhaust plays every possible line of the opponent against the table and
// reports each terminal state reached.
func exhaust(t *testing.T, table *Table, s game.State, ai game.Player, visit func(game.State)) {
	if s.IsTerminal() {
		visit(s)
		return
	}

	if s.Turn() == ai {
		move, ok := table.BestMove(s)
		require.True(t, ok)
		next, err := s.Apply(move)
		require.NoError(t, err)
		exhaust(t, table, next, ai, visit)
		return
	}

	for _, move := range s.LegalMoves() {
		next, err := s.Apply(move)
		require.NoError(t, err)
		exhaust(t, table, next, ai, visit)
	}
}

func TestNeverLoses(t *testing.T) {
	table := Default()

	for _, ai := range []game.Player{game.PlayerX, game.PlayerO} {
		t.Run(ai.String(), func(t *testing.T) {
			var games, wins int
			exhaust(t, table, game.NewState(), ai, func(end game.State) {
				games++
				switch end.Winner() {
				case ai:
					wins++
				case ai.Opponent():
					t.Errorf("%s lost:\n%s", ai, end.Board())
				}
			})
			assert.Positive(t, games)
			assert.Positive(t, wins, "suboptimal opponents should be punished")
		})
	}
}

func TestOutcomeText(t *testing.T) {
	for _, o := range []Outcome{Ongoing, XWins, OWins, Draw} {
		text, err := o.MarshalText()
		require.NoError(t, err)

		var got Outcome
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, o, got)
	}

	var o Outcome
	assert.Error(t, o.UnmarshalText([]byte("x-loses")))
}
