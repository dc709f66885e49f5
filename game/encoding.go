package game

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseBoard parses a board written as 9 cell symbols in row-major order.
// X and O (any case) are pieces; '.', '-' and '_' are empty cells. Spaces and
// '/' are ignored so that "XX./OO./..." and "XX.OO...." are equivalent.
func ParseBoard(s string) (Board, error) {
	var b Board
	var n int
	for _, r := range s {
		var p Player
		switch r {
		case ' ', '/', '\n', '\t':
			continue
		case 'x', 'X':
			p = PlayerX
		case 'o', 'O':
			p = PlayerO
		case '.', '-', '_':
			p = NoPlayer
		default:
			return Board{}, fmt.Errorf("%w: unexpected symbol %q", ErrInvalidBoard, r)
		}
		if n >= NumCells {
			return Board{}, fmt.Errorf("%w: more than %d cells", ErrInvalidBoard, NumCells)
		}
		b[n] = p
		n++
	}
	if n != NumCells {
		return Board{}, fmt.Errorf("%w: got %d cells, want %d", ErrInvalidBoard, n, NumCells)
	}
	return b, nil
}

// Compact returns the board in the single-line form accepted by [ParseBoard],
// with '.' for empty cells.
func (b Board) Compact() string {
	var s strings.Builder
	s.Grow(NumCells)
	for _, c := range b {
		if c == NoPlayer {
			s.WriteByte('.')
		} else {
			s.WriteString(c.String())
		}
	}
	return s.String()
}

// MarshalText implements [encoding.TextMarshaler]. NoPlayer encodes as an
// empty string.
func (p Player) MarshalText() ([]byte, error) {
	if p == NoPlayer {
		return []byte{}, nil
	}
	if !p.IsValid() {
		return nil, fmt.Errorf("invalid player %d", p)
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (p *Player) UnmarshalText(text []byte) error {
	v, err := ParsePlayer(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MarshalJSON encodes the board as an array of 9 entries, each "X", "O" or
// null.
func (b Board) MarshalJSON() ([]byte, error) {
	cells := make([]*string, NumCells)
	for i, c := range b {
		if c == NoPlayer {
			continue
		}
		s := c.String()
		cells[i] = &s
	}
	return json.Marshal(cells)
}

// UnmarshalJSON decodes the form written by [Board.MarshalJSON]. Empty
// strings are accepted as empty cells.
func (b *Board) UnmarshalJSON(data []byte) error {
	var cells []*string
	if err := json.Unmarshal(data, &cells); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBoard, err)
	}
	if len(cells) != NumCells {
		return fmt.Errorf("%w: got %d cells, want %d", ErrInvalidBoard, len(cells), NumCells)
	}
	var out Board
	for i, c := range cells {
		if c == nil {
			continue
		}
		p, err := ParsePlayer(*c)
		if err != nil {
			return fmt.Errorf("%w: cell %d: %w", ErrInvalidBoard, i, err)
		}
		out[i] = p
	}
	*b = out
	return nil
}
