package service

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twipi/tttai/ai"
	"github.com/twipi/tttai/game"
	"github.com/twipi/tttai/metrics"
	"github.com/twipi/tttai/solver"
)

func perfectSession() *session {
	return newSession(ai.NewPerfect(solver.Default()), ai.Hard, time.Now())
}

func TestSessionPlay(t *testing.T) {
	gm := perfectSession()

	tr, err := gm.play(4)
	require.NoError(t, err)
	assert.Equal(t, humanPlayer, tr.Human.At(4))
	assert.Equal(t, 1, tr.Human.Count(humanPlayer))
	assert.Equal(t, 0, tr.Human.Count(aiPlayer))

	require.True(t, tr.AIMoved)
	assert.Equal(t, aiPlayer, tr.AI.At(tr.AIMove))
	assert.Equal(t, 1, tr.AI.Count(aiPlayer))
	assert.False(t, tr.Ended)
	assert.Equal(t, humanPlayer, gm.State.Turn(), "human to move again")
}

func TestSessionInvalidMove(t *testing.T) {
	gm := perfectSession()

	tr, err := gm.play(4)
	require.NoError(t, err)
	before := gm.State

	for _, cell := range []int{4, tr.AIMove, -1, game.NumCells} {
		_, err := gm.play(cell)
		assert.ErrorIs(t, err, game.ErrInvalidMove, "cell %d", cell)
		assert.Equal(t, before, gm.State, "state must not change on cell %d", cell)
	}
}

func TestSessionPlaysToDraw(t *testing.T) {
	gm := perfectSession()
	table := solver.Default()

	var last turn
	for !gm.State.IsTerminal() {
		move, ok := table.BestMove(gm.State)
		require.True(t, ok)

		tr, err := gm.play(move)
		require.NoError(t, err)
		last = tr
	}

	assert.True(t, last.Ended)
	assert.Equal(t, game.NoPlayer, last.Winner)
	assert.Equal(t, "draw", gm.result())

	_, err := gm.play(0)
	assert.ErrorIs(t, err, errGameOver)

	_, ok := gm.hint(table)
	assert.False(t, ok, "no hint for a finished game")
}

func TestSessionHumanWins(t *testing.T) {
	gm := newSession(ai.NewRandom(nil), ai.Easy, time.Now())

	b, err := game.ParseBoard("XX./OO./...")
	require.NoError(t, err)
	gm.State, err = game.NewStateFrom(b, humanPlayer)
	require.NoError(t, err)

	tr, err := gm.play(2)
	require.NoError(t, err)
	assert.False(t, tr.AIMoved, "the AI does not move after the game ends")
	assert.True(t, tr.Ended)
	assert.Equal(t, humanPlayer, tr.Winner)
	assert.Equal(t, "x-wins", gm.result())
}

func TestSessionHint(t *testing.T) {
	gm := perfectSession()
	table := solver.Default()

	b, err := game.ParseBoard("XX./OO./...")
	require.NoError(t, err)
	gm.State, err = game.NewStateFrom(b, humanPlayer)
	require.NoError(t, err)

	h, ok := gm.hint(table)
	require.True(t, ok)
	assert.Equal(t, 2, h.Move)
	assert.Equal(t, solver.XWins, h.Outcome)
	assert.Equal(t, "Try position 3, it wins with perfect play.", hintMessage(h))
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	gm := newSession(ai.NewPerfect(nil), ai.Hard, now)

	assert.False(t, gm.expired(now.Add(time.Hour), gameExpiry))
	assert.True(t, gm.expired(now.Add(gameExpiry+time.Minute), gameExpiry))
}

func TestSweep(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := DefaultConfig()
	cfg.Metrics = metrics.New(reg)

	svc := NewService(cfg, slog.Default())

	now := time.Now()
	fresh, err := svc.newSession(ai.Hard)
	require.NoError(t, err)
	stale, err := svc.newSession(ai.Easy)
	require.NoError(t, err)
	stale.StartedAt = now.Add(-2 * gameExpiry)

	svc.games.Store("+15550001", fresh)
	svc.games.Store("+15550002", stale)

	svc.sweep(now)

	_, ok := svc.games.Load("+15550001")
	assert.True(t, ok, "fresh game is kept")
	_, ok = svc.games.Load("+15550002")
	assert.False(t, ok, "stale game is deleted")

	expected := `
# HELP tttai_sessions_active Number of running SMS game sessions.
# TYPE tttai_sessions_active gauge
tttai_sessions_active 1
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected), "tttai_sessions_active")
	assert.NoError(t, err)
}

func TestParsePosition(t *testing.T) {
	for in, want := range map[string]int{"1": 0, " 5 ": 4, "9": 8} {
		got, err := parsePosition(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	for _, bad := range []string{"", "0", "10", "-3", "five"} {
		_, err := parsePosition(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestDrawBoard(t *testing.T) {
	b, err := game.ParseBoard("X../.O./..X")
	require.NoError(t, err)

	msg := drawBoard("You just placed:", b)
	lines := strings.Split(msg, "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Equal(t, "You just placed:", lines[0])
	assert.Equal(t, "❌⬜⬜", lines[2])
	assert.Equal(t, "⬜⚫⬜", lines[3])
	assert.Equal(t, "⬜⬜❌", lines[4])
}

func TestGameOverMessage(t *testing.T) {
	assert.Contains(t, gameOverMessage(humanPlayer), "Well played")
	assert.Contains(t, gameOverMessage(aiPlayer), "⚫ wins")
	assert.Contains(t, gameOverMessage(game.NoPlayer), "draw")
}
