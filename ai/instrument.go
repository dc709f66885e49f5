package ai

import (
	"time"

	"github.com/twipi/tttai/game"
	"github.com/twipi/tttai/metrics"
)

type instrumented struct {
	Policy
	difficulty Difficulty
	metrics    *metrics.Metrics
}

// Instrument wraps p so that every computed move is recorded in m under the
// given difficulty. A nil m returns p unchanged.
func Instrument(p Policy, d Difficulty, m *metrics.Metrics) Policy {
	if m == nil {
		return p
	}
	return instrumented{Policy: p, difficulty: d, metrics: m}
}

func (p instrumented) NextMove(s game.State) (int, bool) {
	start := time.Now()
	move, ok := p.Policy.NextMove(s)
	if ok {
		p.metrics.ObserveMove(string(p.difficulty), time.Since(start))
	}
	return move, ok
}
