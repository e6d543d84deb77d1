package feed

import (
	"context"
	"testing"
	"time"

	"SpikeWatch/internal/domain/models"
	"SpikeWatch/pkg/logger"
)

func newTestClient() *Client {
	return New(Options{URL: "wss://example.test/ws", APIKey: "k"}, logger.Nop()).(*Client)
}

func TestDecodeTradeFrame(t *testing.T) {
	c := newTestClient()
	events := make(chan models.MarketEvent, 4)

	frame := []byte(`{"type":"trade","data":[{"s":"XYZ","p":5.25,"v":100,"t":1748874600000}]}`)
	c.decodeFrame(frame, events)

	select {
	case ev := <-events:
		if ev.Trade == nil {
			t.Fatal("expected trade event")
		}
		if ev.Trade.Symbol != "XYZ" || ev.Trade.Price != 5.25 || ev.Trade.Size != 100 {
			t.Fatalf("trade decoded wrong: %+v", ev.Trade)
		}
		if ev.Trade.Timestamp != time.UnixMilli(1748874600000).UTC() {
			t.Fatalf("timestamp = %v", ev.Trade.Timestamp)
		}
	default:
		t.Fatal("no event decoded")
	}
}

func TestDecodeQuoteAndBarFrames(t *testing.T) {
	c := newTestClient()
	events := make(chan models.MarketEvent, 4)

	c.decodeFrame([]byte(`{"type":"quote","data":[{"s":"XYZ","b":5.20,"a":5.30,"bv":10,"av":20,"t":1748874600000}]}`), events)
	c.decodeFrame([]byte(`{"type":"bar","data":[{"s":"XYZ","o":5,"h":6,"l":4.9,"c":5.5,"v":12000,"t":1748874600000}]}`), events)

	q := <-events
	if q.Quote == nil || q.Quote.BidPrice != 5.20 || q.Quote.AskPrice != 5.30 {
		t.Fatalf("quote decoded wrong: %+v", q.Quote)
	}
	b := <-events
	if b.Bar == nil || b.Bar.Volume != 12000 || b.Bar.Close != 5.5 {
		t.Fatalf("bar decoded wrong: %+v", b.Bar)
	}
}

func TestDecodeIgnoresJunkFrames(t *testing.T) {
	c := newTestClient()
	events := make(chan models.MarketEvent, 4)

	c.decodeFrame([]byte(`not json`), events)
	c.decodeFrame([]byte(`{"type":"ping"}`), events)
	c.decodeFrame([]byte(`{"type":"trade","data":"oops"}`), events)

	if len(events) != 0 {
		t.Fatalf("junk frames produced %d events", len(events))
	}
}

func TestSubscriptionTrackingWhileDisconnected(t *testing.T) {
	c := newTestClient()
	ctx := context.Background()

	if err := c.Subscribe(ctx, []string{"XYZ", "ABCD"}); err != nil {
		t.Fatalf("subscribe while disconnected: %v", err)
	}
	if err := c.Unsubscribe(ctx, []string{"ABCD"}); err != nil {
		t.Fatalf("unsubscribe while disconnected: %v", err)
	}

	got := c.Tracked()
	if len(got) != 1 || got[0] != "XYZ" {
		t.Fatalf("tracked = %v, want [XYZ]", got)
	}
}
