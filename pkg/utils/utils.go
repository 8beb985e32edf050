// Package utils contains some common utilities used by all other packages.
package utils

import "log/slog"

// ErrInErr handles an error raised while already handling another one,
// such as closing a handle after a failed ping. There is nothing left to
// do with it except log it.
func ErrInErr(err error) {
	if err != nil {
		slog.Warn("error while handling a previous error", "error", err)
	}
}
