package loop

import (
	"bufio"
	"context"
	"io"
	"strings"

	logx "staywatch/pkg/logx"
)

// Listener reads trigger commands line by line (normally from stdin) and
// enqueues them on the loop. Matching is case-insensitive after trimming;
// unrecognized lines are logged and ignored.
type Listener struct {
	loop          *Loop
	dailyCommand  string
	weeklyCommand string
	log           logx.Logger
}

func NewListener(l *Loop, dailyCommand, weeklyCommand string, log logx.Logger) *Listener {
	if dailyCommand == "" {
		dailyCommand = "run"
	}
	if weeklyCommand == "" {
		weeklyCommand = "runweekly"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Listener{loop: l, dailyCommand: dailyCommand, weeklyCommand: weeklyCommand, log: log}
}

// Listen consumes r until EOF or read error. Reading stdin is not
// interruptible, so cancellation is checked between lines; the process exits
// before a blocked Read matters.
func (ln *Listener) Listen(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case strings.EqualFold(line, ln.dailyCommand):
			ln.log.Info("manual daily trigger")
			ln.loop.Enqueue(Trigger{Cadence: "daily", Source: "manual"})
		case strings.EqualFold(line, ln.weeklyCommand):
			ln.log.Info("manual weekly trigger")
			ln.loop.Enqueue(Trigger{Cadence: "weekly", Source: "manual"})
		default:
			ln.log.Warn("unknown command ignored", logx.String("input", line))
		}
	}
	if err := scanner.Err(); err != nil {
		ln.log.Warn("command listener read error", logx.Err(err))
	}
	return nil
}
