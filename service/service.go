// Package service implements the Tic-tac-toe Twicmd service played over SMS.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	_ "embed"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/twipi/pubsub"
	"github.com/twipi/tttai/ai"
	"github.com/twipi/tttai/game"
	"github.com/twipi/tttai/metrics"
	"github.com/twipi/tttai/solver"
	"github.com/twipi/twipi/proto/out/twicmdproto"
	"github.com/twipi/twipi/proto/out/twismsproto"
	"github.com/twipi/twipi/twicmd"
	"github.com/twipi/twipi/twisms"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/encoding/prototext"
)

//go:embed service.txtpb
var servicePrototext []byte

var service = (func() *twicmdproto.Service {
	service := new(twicmdproto.Service)
	opts := prototext.UnmarshalOptions{DiscardUnknown: true}
	if err := opts.Unmarshal(servicePrototext, service); err != nil {
		panic(fmt.Sprintf("failed to unmarshal service proto: %v", err))
	}
	return service
})()

const (
	gameExpiry    = 24 * time.Hour
	sweepInterval = 4 * time.Hour
)

// Config configures the service.
type Config struct {
	// Difficulty is used when a game is started without one.
	Difficulty ai.Difficulty
	// Policy configures the AI policies. Its seed, if any, is offset per game.
	Policy ai.Config
	// Metrics records moves, games and sessions. It may be nil.
	Metrics *metrics.Metrics
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		Difficulty: ai.Hard,
		Policy:     ai.DefaultConfig(),
	}
}

// Service is the main running Tic-tac-toe Twicmd service.
type Service struct {
	sendCh  chan *twismsproto.Message
	sendSub pubsub.Subscriber[*twismsproto.Message]
	games   *xsync.MapOf[string, *session]
	table   *solver.Table
	cfg     Config
	seq     atomic.Uint64
	logger  *slog.Logger
}

var (
	_ twicmd.Service           = (*Service)(nil)
	_ twisms.MessageSubscriber = (*Service)(nil)
)

// NewService creates a new service.
func NewService(cfg Config, logger *slog.Logger) *Service {
	if cfg.Policy.Table == nil {
		cfg.Policy.Table = solver.Default()
	}
	if cfg.Difficulty == "" {
		cfg.Difficulty = ai.Hard
	}
	return &Service{
		sendCh: make(chan *twismsproto.Message),
		games:  xsync.NewMapOf[string, *session](),
		table:  cfg.Policy.Table,
		cfg:    cfg,
		logger: logger,
	}
}

// Name implements [twicmd.Service].
func (s *Service) Name() string {
	return service.Name
}

// Service implements [twicmd.Service].
func (s *Service) Service(ctx context.Context) (*twicmdproto.Service, error) {
	return service, nil
}

// Execute implements [twicmd.Service].
func (s *Service) Execute(ctx context.Context, req *twicmdproto.ExecuteRequest) (*twicmdproto.ExecuteResponse, error) {
	args := twicmd.MapArguments(req.Command.Arguments)

	switch req.Command.Command {
	case "start":
		d, err := s.difficulty(args["difficulty"])
		if err != nil {
			return twicmd.StatusResponse("Unknown difficulty. Please pick easy, medium or hard."), nil
		}

		s.logger.Debug(
			"starting new game",
			"phone_number", req.Message.From,
			"difficulty", d)

		gm, err := s.newSession(d)
		if err != nil {
			return nil, err
		}

		board := gm.State.Board()

		old, overridden := s.games.LoadAndStore(req.Message.From, gm)
		if overridden {
			s.cfg.Metrics.SessionEnded()
			s.logger.Debug(
				"overriding game",
				"phone_number", req.Message.From,
				"difficulty", old.Difficulty)
			s.sendCh <- twisms.NewReplyingMessage(req.Message, textBody(fmt.Sprintf(
				"An existing game was overridden. A new %s game has started. It is now your turn.", d,
			)))
		} else {
			s.sendCh <- twisms.NewReplyingMessage(req.Message, textBody(fmt.Sprintf(
				"A new %s game has started. It is now your turn.", d,
			)))
		}

		s.sendCh <- twisms.NewReplyingMessage(req.Message, drawBoardMessage("", board))
		return nil, nil

	case "place":
		s.logger.Debug(
			"placing piece",
			"phone_number", req.Message.From,
			"position", args["position"])

		gm, ok := s.games.Load(req.Message.From)
		if !ok {
			return twicmd.StatusResponse("No game found. Please start a new game."), nil
		}

		cell, err := parsePosition(args["position"])
		if err != nil {
			return twicmd.StatusResponse("Invalid position. Please provide a number between 1 and 9."), nil
		}

		t, err := gm.play(cell)
		switch {
		case errors.Is(err, errGameOver):
			return twicmd.StatusResponse("The game is over. Please start a new game."), nil
		case errors.Is(err, game.ErrInvalidMove):
			return twicmd.StatusResponse("Invalid move. Please try again."), nil
		case err != nil:
			s.logger.Error(
				"failed to play turn",
				"phone_number", req.Message.From,
				"err", err)
			return nil, err
		}

		s.sendCh <- twisms.NewReplyingMessage(req.Message, drawBoardMessage("You just placed:", t.Human))
		if t.AIMoved {
			s.sendCh <- twisms.NewReplyingMessage(req.Message, drawBoardMessage("In return, the AI placed:", t.AI))
		}

		if t.Ended {
			s.cfg.Metrics.GameFinished(gm.result())
			return twicmd.TextResponse(gameOverMessage(t.Winner)), nil
		}

		return nil, nil

	case "hint":
		gm, ok := s.games.Load(req.Message.From)
		if !ok {
			return twicmd.StatusResponse("No game found. Please start a new game."), nil
		}

		h, ok := gm.hint(s.table)
		if !ok {
			return twicmd.StatusResponse("There is nothing to hint right now."), nil
		}

		return twicmd.TextResponse(hintMessage(h)), nil

	default:
		return nil, fmt.Errorf("unknown command: %q", req.Command.Command)
	}
}

func (s *Service) difficulty(arg string) (ai.Difficulty, error) {
	if strings.TrimSpace(arg) == "" {
		return s.cfg.Difficulty, nil
	}
	return ai.ParseDifficulty(arg)
}

func (s *Service) newSession(d ai.Difficulty) (*session, error) {
	cfg := s.cfg.Policy
	if cfg.Seed != 0 {
		// Keep games reproducible without handing every game the same seed.
		cfg.Seed += s.seq.Add(1)
	}

	policy, err := ai.New(d, cfg)
	if err != nil {
		return nil, err
	}

	s.cfg.Metrics.SessionStarted()
	return newSession(ai.Instrument(policy, d, s.cfg.Metrics), d, time.Now()), nil
}

// parsePosition parses a 1-based board position into a cell index.
func parsePosition(arg string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, err
	}
	if n < 1 || n > game.NumCells {
		return 0, fmt.Errorf("position %d out of range", n)
	}
	return n - 1, nil
}

var playerUnicode = map[game.Player]string{
	game.PlayerX:  "❌",
	game.PlayerO:  "⚫",
	game.NoPlayer: "⬜",
}

func textBody(text string) *twismsproto.MessageBody {
	return &twismsproto.MessageBody{
		Text: &twismsproto.TextBody{Text: text},
	}
}

func drawBoardMessage(prefix string, board game.Board) *twismsproto.MessageBody {
	return textBody(drawBoard(prefix, board))
}

func drawBoard(prefix string, board game.Board) string {
	var s strings.Builder
	if prefix != "" {
		s.WriteString(prefix)
		s.WriteString("\n\n")
	}
	for r := range 3 {
		for c := range 3 {
			s.WriteString(playerUnicode[board[r*3+c]])
		}
		s.WriteString("\n")
	}
	s.WriteString("❌ is your piece.\n")
	s.WriteString("⚫ is the AI's piece.")
	return s.String()
}

func gameOverMessage(winner game.Player) string {
	switch winner {
	case humanPlayer:
		return fmt.Sprintf("The game is over. %s wins! Well played.", playerUnicode[winner])
	case aiPlayer:
		return fmt.Sprintf("The game is over. %s wins!", playerUnicode[winner])
	default:
		return "The game is over. It's a draw!"
	}
}

func hintMessage(h solver.MoveOutcome) string {
	var verdict string
	switch h.Outcome {
	case solver.WinFor(humanPlayer):
		verdict = "it wins with perfect play"
	case solver.Draw:
		verdict = "it holds the draw"
	default:
		verdict = "but the AI can still win"
	}
	return fmt.Sprintf("Try position %d, %s.", h.Move+1, verdict)
}

// Start runs the message fan-out and the expiry sweep until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	errg, ctx := errgroup.WithContext(ctx)

	errg.Go(func() error {
		return s.sendSub.Listen(ctx, s.sendCh)
	})

	errg.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()

			case now := <-ticker.C:
				s.sweep(now)
			}
		}
	})

	return errg.Wait()
}

// sweep deletes sessions older than gameExpiry.
func (s *Service) sweep(now time.Time) {
	s.games.Range(func(key string, value *session) bool {
		if !value.expired(now, gameExpiry) {
			return true
		}

		if s.deleteExpired(key, now) {
			s.logger.Debug(
				"game expired, deleting",
				"phone_number", key,
				"started_at", value.StartedAt)
			s.cfg.Metrics.SessionEnded()
		}
		return true
	})
}

// deleteExpired deletes the session under key if it is still expired. A game
// started since the sweep first saw the key is kept.
func (s *Service) deleteExpired(key string, now time.Time) bool {
	var deleted bool
	s.games.Compute(key, func(current *session, loaded bool) (*session, bool) {
		deleted = loaded && current.expired(now, gameExpiry)
		return current, !loaded || deleted
	})
	return deleted
}

// SubscribeMessages implements [twisms.MessageSubscriber].
func (s *Service) SubscribeMessages(ch chan<- *twismsproto.Message, filters *twismsproto.MessageFilters) {
	s.sendSub.Subscribe(ch, func(msg *twismsproto.Message) bool {
		return twisms.FilterMessage(filters, msg)
	})
}

// UnsubscribeMessages implements [twisms.MessageSubscriber].
func (s *Service) UnsubscribeMessages(ch chan<- *twismsproto.Message) {
	s.sendSub.Unsubscribe(ch)
}
