// Package obs contains observability utilities such as logging.
package obs

import (
	"log/slog"
	"os"
)

// NewLogger returns a JSON logger at info level, tagged with this
// instance's shard index so interleaved multi-instance logs stay readable.
func NewLogger(instanceIndex int) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(h).With("instance", instanceIndex)
}
