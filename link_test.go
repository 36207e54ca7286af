package flowbus

import "testing"

func TestLinkSendDropsOnFullBuffer(t *testing.T) {
	link := &Link{ch: make(chan Activity, 1)}
	sender := link.Sender()

	sender.Send(Activity{Kind: ActivityAwake})
	sender.Send(Activity{Kind: ActivityConnected}) // buffer full, dropped silently

	got := <-link.Receiver()
	if got.Kind != ActivityAwake {
		t.Fatalf("expected the first send to be delivered, got %v", got.Kind)
	}
	select {
	case extra := <-link.Receiver():
		t.Fatalf("expected no further activity, got %v", extra.Kind)
	default:
	}
}

func TestLinkSenderNilIsSafe(t *testing.T) {
	var sender *LinkSender
	sender.Send(Activity{Kind: ActivityAwake}) // must not panic
}

func TestBridgeWidgetLinkNilIsNoop(t *testing.T) {
	useFastRecorderOptions(t)
	c, err := NewCounter(testPath(t))
	if err != nil {
		t.Fatalf("NewCounter: %v", err)
	}
	defer c.Close()
	bridgeWidgetLink(c.Tracer, nil) // must not panic or block
}
