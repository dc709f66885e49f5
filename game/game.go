// Package game implements the rules of 3×3 Tic-Tac-Toe as an immutable game
// state.
package game

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidMove is returned when a move targets a cell outside the board
	// or a cell that is already occupied.
	ErrInvalidMove = errors.New("invalid move")
	// ErrInvalidBoard is returned when a board or state cannot be constructed
	// from the given input.
	ErrInvalidBoard = errors.New("invalid board")
	// ErrUnreachable is returned by [State.CheckReachable] for positions that
	// cannot occur in a game started from the empty board.
	ErrUnreachable = errors.New("position is unreachable")
)

// Player represents a player. Its value doubles as the base-3 digit of a
// cell in [Board.Index].
type Player uint8

const (
	NoPlayer Player = iota
	PlayerX
	PlayerO
)

// String returns the string representation of the player.
func (p Player) String() string {
	switch p {
	case PlayerX:
		return "X"
	case PlayerO:
		return "O"
	default:
		return " "
	}
}

// Opponent returns the opponent of the player.
func (p Player) Opponent() Player {
	switch p {
	case PlayerX:
		return PlayerO
	case PlayerO:
		return PlayerX
	default:
		return NoPlayer
	}
}

// IsValid returns true if the player is one of the three cell values.
func (p Player) IsValid() bool {
	return p <= PlayerO
}

// ParsePlayer parses "X" or "O" (case-insensitive). An empty string parses
// as [NoPlayer].
func ParsePlayer(s string) (Player, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "X":
		return PlayerX, nil
	case "O":
		return PlayerO, nil
	case "":
		return NoPlayer, nil
	default:
		return NoPlayer, fmt.Errorf("invalid player %q", s)
	}
}

const (
	// NumCells is the number of cells on the board.
	NumCells = 9
	// NumIndices is the number of encodable boards, 3^9.
	NumIndices = 19683
)

// CellAt returns the cell index for the given row and column.
// If the coordinates are invalid, returns an error.
func CellAt(row, col int) (int, error) {
	if row < 0 || row > 2 || col < 0 || col > 2 {
		return 0, fmt.Errorf("invalid position: (%d, %d)", row, col)
	}
	return row*3 + col, nil
}

// lines lists the 8 winning lines in scan order: rows, columns, diagonals.
var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Board represents a Tic-Tac-Toe board in row-major order.
type Board [NumCells]Player

func (b Board) String() string {
	var s strings.Builder
	s.WriteByte('[')
	for r := range 3 {
		if r > 0 {
			s.WriteByte(' ')
		}

		s.WriteByte('[')
		for c := range 2 {
			s.WriteString(b[r*3+c].String())
			s.WriteByte(' ')
		}
		s.WriteString(b[r*3+2].String())
		s.WriteString("]")

		if r < 2 {
			s.WriteString("\n")
		} else {
			s.WriteByte(']')
		}
	}
	return s.String()
}

// At returns the player at the given cell.
func (b Board) At(cell int) Player {
	if cell < 0 || cell >= NumCells {
		return NoPlayer
	}
	return b[cell]
}

// Count returns the number of cells held by p.
func (b Board) Count(p Player) int {
	var n int
	for _, c := range b {
		if c == p {
			n++
		}
	}
	return n
}

// Winner returns the symbol of the first complete line in scan order, or
// NoPlayer.
func (b Board) Winner() Player {
	for _, l := range lines {
		if b[l[0]] != NoPlayer && b[l[0]] == b[l[1]] && b[l[1]] == b[l[2]] {
			return b[l[0]]
		}
	}
	return NoPlayer
}

// completes returns true if p has at least one complete line.
func (b Board) completes(p Player) bool {
	for _, l := range lines {
		if b[l[0]] == p && b[l[1]] == p && b[l[2]] == p {
			return true
		}
	}
	return false
}

// IsFull returns true if no cell is empty.
func (b Board) IsFull() bool {
	for _, c := range b {
		if c == NoPlayer {
			return false
		}
	}
	return true
}

// Index returns the base-3 encoding of the board: the sum of value(i)·3^i.
func (b Board) Index() int {
	var idx int
	for i := NumCells - 1; i >= 0; i-- {
		idx = idx*3 + int(b[i])
	}
	return idx
}

// BoardFromIndex decodes a base-3 board index.
func BoardFromIndex(idx int) (Board, error) {
	if idx < 0 || idx >= NumIndices {
		return Board{}, fmt.Errorf("%w: index %d out of range", ErrInvalidBoard, idx)
	}
	var b Board
	for i := range NumCells {
		b[i] = Player(idx % 3)
		idx /= 3
	}
	return b, nil
}

// State is an immutable game position: a board and the player to move.
// Transitions return a new State and never modify the receiver.
type State struct {
	board Board
	turn  Player
}

// NewState returns the initial position: an empty board with X to move.
func NewState() State {
	return State{turn: PlayerX}
}

// NewStateFrom creates a state from the given board and player to move.
// The player to move is taken as given, not derived from the piece count.
func NewStateFrom(b Board, turn Player) (State, error) {
	for i, c := range b {
		if !c.IsValid() {
			return State{}, fmt.Errorf("%w: cell %d holds %d", ErrInvalidBoard, i, c)
		}
	}
	if turn != PlayerX && turn != PlayerO {
		return State{}, fmt.Errorf("%w: no player to move", ErrInvalidBoard)
	}
	return State{board: b, turn: turn}, nil
}

func (s State) String() string {
	return fmt.Sprintf("%s to move:\n%s", s.turn, s.board)
}

// Board returns a copy of the board.
func (s State) Board() Board { return s.board }

// Turn returns the player to move.
func (s State) Turn() Player { return s.turn }

// At returns the player at the given cell.
func (s State) At(cell int) Player { return s.board.At(cell) }

// Index returns the base-3 index of the board.
func (s State) Index() int { return s.board.Index() }

// Winner returns the winner of the position, if any.
func (s State) Winner() Player { return s.board.Winner() }

// LegalMoves returns the empty cells in ascending order.
func (s State) LegalMoves() []int {
	moves := make([]int, 0, NumCells)
	for i, c := range s.board {
		if c == NoPlayer {
			moves = append(moves, i)
		}
	}
	return moves
}

// IsTerminal returns true if the game has a winner or no moves remain.
func (s State) IsTerminal() bool {
	return s.board.Winner() != NoPlayer || s.board.IsFull()
}

// Apply places the mover's symbol at the given cell and returns the
// resulting state with the turn passed to the opponent.
func (s State) Apply(cell int) (State, error) {
	if cell < 0 || cell >= NumCells {
		return State{}, fmt.Errorf("%w: cell %d out of range", ErrInvalidMove, cell)
	}
	if s.turn != PlayerX && s.turn != PlayerO {
		return State{}, fmt.Errorf("%w: no player to move", ErrInvalidMove)
	}
	if s.board[cell] != NoPlayer {
		return State{}, fmt.Errorf("%w: cell %d is taken by %s", ErrInvalidMove, cell, s.board[cell])
	}
	next := s
	next.board[cell] = s.turn
	next.turn = s.turn.Opponent()
	return next, nil
}

// CheckReachable returns [ErrUnreachable] if the position cannot arise from
// the empty board with X moving first. Positions past a win are accepted only
// when the win was completed by the last move.
func (s State) CheckReachable() error {
	crosses, noughts := s.board.Count(PlayerX), s.board.Count(PlayerO)
	switch s.turn {
	case PlayerX:
		if crosses != noughts {
			return fmt.Errorf("%w: X to move with %d X and %d O", ErrUnreachable, crosses, noughts)
		}
	case PlayerO:
		if crosses != noughts+1 {
			return fmt.Errorf("%w: O to move with %d X and %d O", ErrUnreachable, crosses, noughts)
		}
	default:
		return fmt.Errorf("%w: no player to move", ErrInvalidBoard)
	}
	xWon, oWon := s.board.completes(PlayerX), s.board.completes(PlayerO)
	switch {
	case xWon && oWon:
		return fmt.Errorf("%w: both players completed a line", ErrUnreachable)
	case xWon && s.turn != PlayerO:
		return fmt.Errorf("%w: play continued after X won", ErrUnreachable)
	case oWon && s.turn != PlayerX:
		return fmt.Errorf("%w: play continued after O won", ErrUnreachable)
	}
	return nil
}
