package solver

import "github.com/twipi/tttai/game"

// MoveOutcome pairs a legal move with the outcome of the position it leads
// to.
type MoveOutcome struct {
	Move    int     `json:"move"`
	Outcome Outcome `json:"outcome"`
}

// Rank returns every legal move of s in ascending order together with the
// table outcome of the resulting position.
func (t *Table) Rank(s game.State) []MoveOutcome {
	moves := s.LegalMoves()
	ranked := make([]MoveOutcome, 0, len(moves))
	for _, move := range moves {
		next, err := s.Apply(move)
		if err != nil {
			continue
		}
		ranked = append(ranked, MoveOutcome{
			Move:    move,
			Outcome: t.Outcome(next.Board()),
		})
	}
	return ranked
}

// BestMove returns the move realizing the best guaranteed outcome for the
// player to move. Ties go to the first move in ascending cell order, and a
// winning move is taken as soon as it is found. It returns false if s is
// terminal, including won boards that still have empty cells.
func (t *Table) BestMove(s game.State) (int, bool) {
	if s.IsTerminal() {
		return 0, false
	}

	mover := s.Turn()
	bestMove, bestRank := 0, -2
	for _, move := range s.LegalMoves() {
		next, err := s.Apply(move)
		if err != nil {
			continue
		}

		r := rank(t.Outcome(next.Board()), mover)
		if r > bestRank {
			bestMove, bestRank = move, r
			if r == 2 {
				break
			}
		}
	}
	return bestMove, bestRank > -2
}
