// Package notify delivers fire-and-forget notices (the toasts of the web app)
// to whichever front end a user is on.
package notify

import (
	"context"
	"log"
)

// Level is the severity of a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a short message for one user.
type Notice struct {
	UserID  string
	Level   Level
	Title   string
	Message string
}

// Sink receives notices. Implementations must not block for long and never
// report delivery failures back to the caller.
type Sink interface {
	Notify(ctx context.Context, n Notice)
}

// LogSink writes notices to the process log.
type LogSink struct{}

func (LogSink) Notify(_ context.Context, n Notice) {
	log.Printf("[%s] %s (user %s): %s", n.Level, n.Title, n.UserID, n.Message)
}

// Func adapts a plain function to a Sink.
type Func func(ctx context.Context, n Notice)

func (f Func) Notify(ctx context.Context, n Notice) {
	f(ctx, n)
}
