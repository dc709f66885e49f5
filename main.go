package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/twipi/tttai/ai"
	"github.com/twipi/tttai/httpapi"
	"github.com/twipi/tttai/mcts"
	"github.com/twipi/tttai/metrics"
	"github.com/twipi/tttai/service"
	"github.com/twipi/tttai/solver"
	twicmdhttp "github.com/twipi/twipi/twicmd/http"
	"golang.org/x/sync/errgroup"
	"libdb.so/hserve"
)

var (
	listenAddr     = ":8080"
	difficulty     = ai.Hard
	mctsIterations = mcts.DefaultIterations
	mctsExploring  = mcts.DefaultExplorationConstant
	seed           uint64
	allowedOrigins []string
	debug          = false
)

func init() {
	pflag.StringVarP(&listenAddr, "listen-addr", "l", listenAddr, "address to listen on")
	pflag.VarP(&difficulty, "difficulty", "d", "default AI difficulty (easy, medium, hard)")
	pflag.IntVar(&mctsIterations, "mcts-iterations", mctsIterations, "MCTS simulations per move on medium difficulty")
	pflag.Float64Var(&mctsExploring, "mcts-exploration", mctsExploring, "MCTS exploration constant")
	pflag.Uint64Var(&seed, "seed", seed, "random seed for the AI, 0 for a seed from the clock")
	pflag.StringSliceVar(&allowedOrigins, "allowed-origins", allowedOrigins, "CORS origins allowed to use the JSON API")
	pflag.BoolVar(&debug, "debug", debug, "enable debug logging")
	pflag.Parse()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	logger := slog.Default()

	os.Exit(start(ctx, logger))
}

func start(ctx context.Context, logger *slog.Logger) int {
	began := time.Now()
	table := solver.Default()
	logger.Info(
		"built outcome table",
		"positions", table.Visited(),
		"took", time.Since(began))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	policy := ai.DefaultConfig()
	policy.MCTS.Iterations = mctsIterations
	policy.MCTS.ExplorationConstant = mctsExploring
	policy.Seed = seed
	policy.Table = table

	errg, ctx := errgroup.WithContext(ctx)

	svc := service.NewService(service.Config{
		Difficulty: difficulty,
		Policy:     policy,
		Metrics:    m,
	}, logger.With("component", "service"))
	errg.Go(func() error { return svc.Start(ctx) })

	handler := twicmdhttp.NewHandler(svc, logger.With("component", "http"))
	errg.Go(func() error {
		<-ctx.Done()
		if err := handler.Close(); err != nil {
			logger.Error(
				"failed to close http service handler",
				"err", err)
		}
		return ctx.Err()
	})

	api := httpapi.NewHandler(httpapi.Config{
		Difficulty:     difficulty,
		Policy:         policy,
		AllowedOrigins: allowedOrigins,
		Metrics:        m,
	}, logger.With("component", "api"))

	errg.Go(func() error {
		r := http.NewServeMux()
		r.Handle("GET /health", http.HandlerFunc(healthCheck))
		r.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		r.Handle("/api/", http.StripPrefix("/api", api))
		r.Handle("/", handler)

		logger.Info(
			"listening via HTTP",
			"addr", listenAddr,
			"difficulty", difficulty,
			"allowed_origins", strings.Join(allowedOrigins, ","))

		if err := hserve.ListenAndServe(ctx, listenAddr, r); err != nil {
			logger.Error(
				"failed to listen and serve",
				"err", err)
			return err
		}

		return ctx.Err()
	})

	if err := errg.Wait(); err != nil {
		logger.Error(
			"service error",
			"err", err)
		return 1
	}

	return 0
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
