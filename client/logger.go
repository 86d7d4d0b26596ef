package client

import "github.com/famomatic/mediaresolve/internal/types"

// Logger is an optional package logger used for non-fatal warnings and
// resolution traces. If it also has a ForContext(context.Context) Logger
// method, each resolution logs through the logger it returns, tagged with
// the request id.
type Logger = types.Logger

type nopLogger struct{}

func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Debugf(string, ...any) {}
