package notify

import (
	"context"
	"errors"
	"testing"

	logx "staywatch/pkg/logx"
)

type fakeSender struct {
	name string
	err  error
	sent []Message
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) Send(_ context.Context, m Message) error {
	f.sent = append(f.sent, m)
	return f.err
}

func TestGatewayFanout(t *testing.T) {
	t.Parallel()
	a := &fakeSender{name: "a"}
	b := &fakeSender{name: "b"}
	g := NewGateway(10, logx.Nop(), a, b)

	if err := g.Send(context.Background(), Message{Text: "hello"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Fatalf("fanout incomplete: a=%d b=%d", len(a.sent), len(b.sent))
	}
}

func TestGatewayOneDeadChannelDoesNotBlockOthers(t *testing.T) {
	t.Parallel()
	dead := &fakeSender{name: "dead", err: errors.New("unreachable")}
	live := &fakeSender{name: "live"}
	g := NewGateway(10, logx.Nop(), dead, live)

	err := g.Send(context.Background(), Message{Text: "alert"})
	if err == nil {
		t.Fatal("expected joined error from the dead channel")
	}
	if len(live.sent) != 1 {
		t.Fatal("live channel skipped after dead channel failed")
	}
}

func TestGatewayNoChannelsIsLogOnly(t *testing.T) {
	t.Parallel()
	g := NewGateway(1, logx.Nop())
	if err := g.SendAlert(context.Background(), "nobody listening"); err != nil {
		t.Fatalf("SendAlert with no channels should not error, got %v", err)
	}
}
