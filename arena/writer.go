package arena

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/twipi/tttai/game"
)

var recordHeader = []string{"game", "x", "o", "winner", "outcome", "moves", "board", "duration"}

// WriteCSV writes records as CSV with a header row. Moves are written as
// space-separated cell indices.
func WriteCSV(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(recordHeader); err != nil {
		return fmt.Errorf("failed to write records header: %w", err)
	}

	for _, r := range records {
		moves := make([]string, len(r.Moves))
		for i, m := range r.Moves {
			moves[i] = strconv.Itoa(m)
		}

		row := []string{
			strconv.Itoa(r.Game),
			string(r.Matchup.X),
			string(r.Matchup.O),
			winnerLabel(r),
			r.Outcome.String(),
			strings.Join(moves, " "),
			r.Board.Compact(),
			r.Duration.String(),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write record row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush records: %w", err)
	}
	return nil
}

func winnerLabel(r Record) string {
	if r.Winner == game.NoPlayer {
		return "none"
	}
	return r.Winner.String()
}
