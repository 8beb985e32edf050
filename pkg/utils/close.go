package utils

import (
	"io"
	"log/slog"
)

// CloseAndLog closes a resource and logs any error. It is meant for defer
// statements where the error cannot be handled except by logging.
// Example: defer utils.CloseAndLog(rows)
func CloseAndLog(closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		slog.Error("deferred close failed", "error", err)
	}
}
