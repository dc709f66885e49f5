package game

import "golang.org/x/exp/rand"

// RandomMove picks a legal move uniformly at random. It returns false if the
// state has no legal moves.
func RandomMove(s State, rng *rand.Rand) (int, bool) {
	moves := s.LegalMoves()
	if len(moves) == 0 {
		return 0, false
	}
	return moves[rng.Intn(len(moves))], true
}

// Playout plays uniformly random moves for both sides until the game ends
// and returns the terminal state.
func Playout(s State, rng *rand.Rand) State {
	for !s.IsTerminal() {
		move, _ := RandomMove(s, rng)
		next, err := s.Apply(move)
		if err != nil {
			panic("game: random move rejected: " + err.Error())
		}
		s = next
	}
	return s
}
