package pgwire

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hexpg/pgwire/message"
)

// debugEnabled reports whether DEBUG_PG_SERVER requests verbose,
// human-readable logging of every decoded command and emitted response.
// The variable is read again on every call.
func debugEnabled() bool {
	v := os.Getenv("DEBUG_PG_SERVER")
	return v == "true" || v == "1"
}

func debugLevel() slog.Level {
	if debugEnabled() {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// logCommand emits a compact, human-readable dump of a decoded command when
// debug logging is enabled.
func logCommand(ctx context.Context, logger *slog.Logger, cmd message.Command, raw []byte) {
	if !debugEnabled() {
		return
	}
	logger.DebugContext(ctx, "decoded command",
		slog.String("code", cmd.Code().String()),
		slog.String("type", fmt.Sprintf("%T", cmd)),
		slog.Int("bytes", len(raw)))
}

// logResponse emits a compact, human-readable dump of an emitted response
// when debug logging is enabled.
func logResponse(ctx context.Context, logger *slog.Logger, resp message.Response) {
	if !debugEnabled() {
		return
	}
	logger.DebugContext(ctx, "emitted response",
		slog.String("code", resp.Code().String()),
		slog.String("type", fmt.Sprintf("%T", resp)))
}
