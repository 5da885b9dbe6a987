package notify

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	logx "staywatch/pkg/logx"
)

// Gateway fans a message out to every configured channel, behind a shared
// rate limit. Channel failures are logged and joined into the returned error;
// one dead channel never blocks the others.
type Gateway struct {
	senders []Sender
	limiter *rate.Limiter
	log     logx.Logger
}

func NewGateway(ratePerSec int, log logx.Logger, senders ...Sender) *Gateway {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Gateway{
		senders: senders,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		log:     log,
	}
}

// Channels returns the configured channel names.
func (g *Gateway) Channels() []string {
	names := make([]string, 0, len(g.senders))
	for _, s := range g.senders {
		names = append(names, s.Name())
	}
	return names
}

// Send delivers m through every channel.
func (g *Gateway) Send(ctx context.Context, m Message) error {
	if len(g.senders) == 0 {
		// No channels configured: alerts land in the log only.
		g.log.Warn("notification dropped (no channels configured)", logx.String("text", m.Text))
		return nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}

	var errs []error
	for _, s := range g.senders {
		if err := s.Send(ctx, m); err != nil {
			g.log.Warn("notification channel failed", logx.String("channel", s.Name()), logx.Err(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendAlert delivers a plain alert string. Implements the Gateway interfaces
// of the watchdog and heartbeat packages.
func (g *Gateway) SendAlert(ctx context.Context, msg string) error {
	return g.Send(ctx, Message{Text: msg})
}
