// Package httpapi serves the move selectors over a small JSON API.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/twipi/tttai/ai"
	"github.com/twipi/tttai/game"
	"github.com/twipi/tttai/mcts"
	"github.com/twipi/tttai/metrics"
	"github.com/twipi/tttai/solver"
	"golang.org/x/exp/rand"
)

const (
	maxBodySize = 1 << 16
	// MaxIterations caps the search budget a single request may ask for.
	MaxIterations = 200_000
)

var errBadRequest = errors.New("bad request")

// Config configures the API handler.
type Config struct {
	// Difficulty is used when a request does not name one.
	Difficulty ai.Difficulty
	// Policy is the base policy configuration. Requests may override the
	// search budget, the exploration constant and the seed.
	Policy ai.Config
	// AllowedOrigins lists the CORS origins. Empty allows any origin.
	AllowedOrigins []string
	// Metrics records every computed move. It may be nil.
	Metrics *metrics.Metrics
}

// DefaultConfig returns the default API configuration.
func DefaultConfig() Config {
	return Config{
		Difficulty: ai.Hard,
		Policy:     ai.DefaultConfig(),
	}
}

// Handler is the JSON API handler.
type Handler struct {
	r      chi.Router
	cfg    Config
	table  *solver.Table
	logger *slog.Logger
}

var _ http.Handler = (*Handler)(nil)

// NewHandler creates a new API handler. Routes are rooted at /v1.
func NewHandler(cfg Config, logger *slog.Logger) *Handler {
	if cfg.Policy.Table == nil {
		cfg.Policy.Table = solver.Default()
	}
	if cfg.Difficulty == "" {
		cfg.Difficulty = ai.Hard
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	h := &Handler{
		cfg:    cfg,
		table:  cfg.Policy.Table,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/move", h.move)
		r.Post("/search", h.search)
		r.Get("/outcome", h.outcome)
		r.Get("/difficulties", h.difficulties)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})

	h.r = r
	return h
}

// ServeHTTP implements [http.Handler].
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.r.ServeHTTP(w, r)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		h.logger.Debug(
			"handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"took", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// MoveRequest is the body of POST /v1/move and POST /v1/search.
type MoveRequest struct {
	Board      game.Board  `json:"board"`
	Turn       game.Player `json:"turn"`
	Difficulty string      `json:"difficulty,omitempty"`
	// Iterations overrides the search budget of the medium difficulty.
	Iterations *int `json:"iterations,omitempty"`
	// Exploration overrides the UCB1 exploration constant.
	Exploration *float64 `json:"exploration,omitempty"`
	// Seed makes randomized policies reproducible. Zero picks a fresh seed.
	Seed uint64 `json:"seed,omitempty"`
}

// MoveResponse is the response of POST /v1/move.
type MoveResponse struct {
	Move       int            `json:"move"`
	Difficulty ai.Difficulty  `json:"difficulty"`
	Board      game.Board     `json:"board"`
	Winner     game.Player    `json:"winner"`
	Terminal   bool           `json:"terminal"`
	Outcome    solver.Outcome `json:"outcome"`
}

// OutcomeResponse is the response of GET /v1/outcome.
type OutcomeResponse struct {
	Outcome solver.Outcome       `json:"outcome"`
	Moves   []solver.MoveOutcome `json:"moves"`
}

// DifficultiesResponse is the response of GET /v1/difficulties.
type DifficultiesResponse struct {
	Difficulties []ai.Difficulty `json:"difficulties"`
	Default      ai.Difficulty   `json:"default"`
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request) {
	req, s, err := h.decodeMove(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	d := h.cfg.Difficulty
	if req.Difficulty != "" {
		d, err = ai.ParseDifficulty(req.Difficulty)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	cfg, err := h.policyConfig(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	policy, err := ai.New(d, cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	policy = ai.Instrument(policy, d, h.cfg.Metrics)

	move, ok := policy.NextMove(s)
	if !ok {
		// Only a search with a zero budget gets here.
		writeError(w, http.StatusUnprocessableEntity, errors.New("no move was chosen"))
		return
	}

	next, err := s.Apply(move)
	if err != nil {
		h.logger.Error(
			"policy chose an invalid move",
			"difficulty", d,
			"board", s.Board().Compact(),
			"move", move,
			"err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, MoveResponse{
		Move:       move,
		Difficulty: d,
		Board:      next.Board(),
		Winner:     next.Winner(),
		Terminal:   next.IsTerminal(),
		Outcome:    h.table.Outcome(next.Board()),
	})
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	req, s, err := h.decodeMove(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	cfg, err := h.policyConfig(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	start := time.Now()
	res := mcts.Search(s,
		mcts.WithConfig(cfg.MCTS),
		mcts.WithRand(rand.New(rand.NewSource(seed))))
	if res.OK {
		h.cfg.Metrics.ObserveMove(string(ai.Medium), time.Since(start))
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) outcome(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	b, err := game.ParseBoard(q.Get("board"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	turn, err := game.ParsePlayer(q.Get("turn"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s, err := reachableState(b, turn)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	moves := h.table.Rank(s)
	if s.IsTerminal() {
		moves = []solver.MoveOutcome{}
	}

	writeJSON(w, http.StatusOK, OutcomeResponse{
		Outcome: h.table.Outcome(b),
		Moves:   moves,
	})
}

func (h *Handler) difficulties(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DifficultiesResponse{
		Difficulties: ai.Difficulties(),
		Default:      h.cfg.Difficulty,
	})
}

// decodeMove decodes a move request and validates that its position can be
// played from.
func (h *Handler) decodeMove(w http.ResponseWriter, r *http.Request) (MoveRequest, game.State, error) {
	var req MoveRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, game.State{}, fmt.Errorf("%w: invalid payload: %w", errBadRequest, err)
	}

	s, err := reachableState(req.Board, req.Turn)
	if err != nil {
		return req, game.State{}, err
	}
	if s.IsTerminal() {
		return req, game.State{}, fmt.Errorf("%w: the game is already over", errBadRequest)
	}

	return req, s, nil
}

func reachableState(b game.Board, turn game.Player) (game.State, error) {
	s, err := game.NewStateFrom(b, turn)
	if err != nil {
		return s, err
	}
	if err := s.CheckReachable(); err != nil {
		return s, err
	}
	return s, nil
}

// policyConfig applies the overrides of req to the base policy configuration.
func (h *Handler) policyConfig(req MoveRequest) (ai.Config, error) {
	cfg := h.cfg.Policy
	if req.Iterations != nil {
		if *req.Iterations < 0 || *req.Iterations > MaxIterations {
			return cfg, fmt.Errorf("%w: iterations must be within [0, %d]", errBadRequest, MaxIterations)
		}
		cfg.MCTS.Iterations = *req.Iterations
	}
	if req.Exploration != nil {
		if *req.Exploration < 0 {
			return cfg, fmt.Errorf("%w: exploration must not be negative", errBadRequest)
		}
		cfg.MCTS.ExplorationConstant = *req.Exploration
	}
	if req.Seed != 0 {
		cfg.Seed = req.Seed
	}
	return cfg, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
