package dispatch

import (
	"context"
	"sync"

	"SpikeWatch/internal/domain/models"
)

// ChannelSink broadcasts alert events to in-process subscribers, such as the
// websocket push endpoint. Slow subscribers lose events rather than stall
// delivery.
type ChannelSink struct {
	mu   sync.Mutex
	subs map[chan *models.AlertEvent]struct{}
	size int
}

func NewChannelSink(bufSize int) *ChannelSink {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &ChannelSink{
		subs: make(map[chan *models.AlertEvent]struct{}),
		size: bufSize,
	}
}

func (s *ChannelSink) Name() string {
	return "channel"
}

// Subscribe registers a new listener and returns its channel plus a cancel
// function.
func (s *ChannelSink) Subscribe() (<-chan *models.AlertEvent, func()) {
	ch := make(chan *models.AlertEvent, s.size)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *ChannelSink) Deliver(_ context.Context, ev *models.AlertEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (s *ChannelSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
	return nil
}
