package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/twipi/tttai/ai"
	"github.com/twipi/tttai/game"
	"github.com/twipi/tttai/solver"
)

const (
	humanPlayer = game.PlayerX
	aiPlayer    = game.PlayerO
)

var errGameOver = errors.New("the game is already over")

// session is one running game between a phone number and the AI. The human
// always plays X and moves first.
type session struct {
	mu         sync.Mutex
	State      game.State
	AI         *ai.AI
	Difficulty ai.Difficulty
	StartedAt  time.Time
}

func newSession(policy ai.Policy, d ai.Difficulty, now time.Time) *session {
	return &session{
		State:      game.NewState(),
		AI:         ai.NewAI(policy, aiPlayer),
		Difficulty: d,
		StartedAt:  now,
	}
}

// turn is the result of one human move and the AI's reply.
type turn struct {
	// Human is the board after the human's move.
	Human game.Board
	// AI is the board after the AI's reply. It is only set if AIMoved.
	AI      game.Board
	AIMove  int
	AIMoved bool
	Ended   bool
	Winner  game.Player
}

// play applies the human's move at cell and lets the AI reply. The session is
// left untouched if the move is invalid.
func (s *session) play(cell int) (turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State.IsTerminal() {
		return turn{}, errGameOver
	}

	next, err := s.State.Apply(cell)
	if err != nil {
		return turn{}, err
	}

	s.State = next
	t := turn{Human: next.Board()}

	if !next.IsTerminal() {
		move, ok := s.AI.NextMove(next)
		if ok {
			after, err := next.Apply(move)
			if err != nil {
				return t, fmt.Errorf("AI played an invalid move: %w", err)
			}
			s.State = after
			t.AI = after.Board()
			t.AIMove = move
			t.AIMoved = true
		}
	}

	t.Ended = s.State.IsTerminal()
	t.Winner = s.State.Winner()
	return t, nil
}

// hint returns the perfect move for the human along with its outcome.
func (s *session) hint(table *solver.Table) (solver.MoveOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State.IsTerminal() || s.State.Turn() != humanPlayer {
		return solver.MoveOutcome{}, false
	}
	move, ok := table.BestMove(s.State)
	if !ok {
		return solver.MoveOutcome{}, false
	}
	next, err := s.State.Apply(move)
	if err != nil {
		return solver.MoveOutcome{}, false
	}
	return solver.MoveOutcome{Move: move, Outcome: table.Outcome(next.Board())}, true
}

// result returns the result label of a finished session.
func (s *session) result() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return solver.WinFor(s.State.Winner()).String()
}

// expired returns true if the session was started more than ttl before now.
func (s *session) expired(now time.Time, ttl time.Duration) bool {
	return s.StartedAt.Add(ttl).Before(now)
}
