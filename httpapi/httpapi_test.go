package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twipi/tttai/ai"
	"github.com/twipi/tttai/game"
	"github.com/twipi/tttai/mcts"
	"github.com/twipi/tttai/metrics"
	"github.com/twipi/tttai/solver"
)

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandler(cfg, slog.Default()))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	return resp.StatusCode, data
}

func TestMove(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := DefaultConfig()
	cfg.Metrics = metrics.New(reg)
	srv := newTestServer(t, cfg)

	status, body := do(t, srv, "POST", "/v1/move", `{
		"board": ["X","X",null,"O","O",null,null,null,null],
		"turn": "X",
		"difficulty": "hard"
	}`)
	require.Equal(t, http.StatusOK, status, string(body))

	var resp MoveResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, 2, resp.Move)
	assert.Equal(t, ai.Hard, resp.Difficulty)
	assert.Equal(t, game.PlayerX, resp.Winner)
	assert.True(t, resp.Terminal)
	assert.Equal(t, solver.XWins, resp.Outcome)
	assert.Equal(t, "XXXOO....", resp.Board.Compact())

	count, err := testutil.GatherAndCount(reg, "tttai_moves_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMoveDifficulties(t *testing.T) {
	srv := newTestServer(t, DefaultConfig())

	for _, d := range ai.Difficulties() {
		t.Run(string(d), func(t *testing.T) {
			status, body := do(t, srv, "POST", "/v1/move", `{
				"board": [null,null,null,null,"X",null,null,null,null],
				"turn": "O",
				"difficulty": "`+string(d)+`",
				"iterations": 200,
				"seed": 7
			}`)
			require.Equal(t, http.StatusOK, status, string(body))

			var resp MoveResponse
			require.NoError(t, json.Unmarshal(body, &resp))
			assert.NotEqual(t, 4, resp.Move)
			assert.Equal(t, game.PlayerO, resp.Board.At(resp.Move))
			assert.False(t, resp.Terminal)
		})
	}
}

func TestMoveRejects(t *testing.T) {
	srv := newTestServer(t, DefaultConfig())

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"board":`, http.StatusBadRequest},
		{"unknown field", `{"board":[null,null,null,null,null,null,null,null,null],"turn":"X","foo":1}`, http.StatusBadRequest},
		{"short board", `{"board":["X"],"turn":"O"}`, http.StatusBadRequest},
		{"no turn", `{"board":[null,null,null,null,null,null,null,null,null]}`, http.StatusBadRequest},
		{"unreachable", `{"board":["X","X",null,null,null,null,null,null,null],"turn":"O"}`, http.StatusBadRequest},
		{"terminal", `{"board":["X","X","X","O","O",null,null,null,null],"turn":"O"}`, http.StatusBadRequest},
		{"bad difficulty", `{"board":[null,null,null,null,null,null,null,null,null],"turn":"X","difficulty":"nightmare"}`, http.StatusBadRequest},
		{"too many iterations", `{"board":[null,null,null,null,null,null,null,null,null],"turn":"X","iterations":100000000}`, http.StatusBadRequest},
		{"zero budget", `{"board":[null,null,null,null,null,null,null,null,null],"turn":"X","difficulty":"medium","iterations":0}`, http.StatusUnprocessableEntity},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			status, body := do(t, srv, "POST", "/v1/move", test.body)
			assert.Equal(t, test.want, status, string(body))

			var resp errorResponse
			require.NoError(t, json.Unmarshal(body, &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t, DefaultConfig())

	status, body := do(t, srv, "POST", "/v1/search", `{
		"board": [null,null,null,null,null,null,null,null,null],
		"turn": "X",
		"iterations": 500,
		"seed": 42
	}`)
	require.Equal(t, http.StatusOK, status, string(body))

	var res mcts.Result
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.OK)
	assert.Equal(t, 500, res.Iterations)
	assert.Len(t, res.Children, game.NumCells)

	visits := 0
	for _, c := range res.Children {
		visits += c.Visits
	}
	assert.Equal(t, 500, visits)
}

func TestOutcome(t *testing.T) {
	srv := newTestServer(t, DefaultConfig())

	status, body := do(t, srv, "GET", "/v1/outcome?board=XX./OO./...&turn=X", "")
	require.Equal(t, http.StatusOK, status, string(body))

	var resp OutcomeResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, solver.XWins, resp.Outcome)
	require.Len(t, resp.Moves, 5)
	assert.Equal(t, solver.MoveOutcome{Move: 2, Outcome: solver.XWins}, resp.Moves[0])

	status, body = do(t, srv, "GET", "/v1/outcome?board=XXX/OO./...&turn=O", "")
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, solver.XWins, resp.Outcome)
	assert.Empty(t, resp.Moves)

	status, _ = do(t, srv, "GET", "/v1/outcome?board=XX.......&turn=X", "")
	assert.Equal(t, http.StatusBadRequest, status, "unreachable position")

	status, _ = do(t, srv, "GET", "/v1/outcome?board=XX&turn=X", "")
	assert.Equal(t, http.StatusBadRequest, status, "short board")
}

func TestDifficulties(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Difficulty = ai.Medium
	srv := newTestServer(t, cfg)

	status, body := do(t, srv, "GET", "/v1/difficulties", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"difficulties":["easy","medium","hard"],"default":"medium"}`, string(body))
}

func TestNotFound(t *testing.T) {
	srv := newTestServer(t, DefaultConfig())

	status, body := do(t, srv, "GET", "/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.JSONEq(t, `{"error":"not found"}`, string(body))

	status, _ = do(t, srv, "GET", "/v1/move", "")
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, DefaultConfig())

	req, err := http.NewRequest("OPTIONS", srv.URL+"/v1/move", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
