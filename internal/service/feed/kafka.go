package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"SpikeWatch/internal/domain/models"
	drepo "SpikeWatch/internal/domain/repository"
	pkgkafka "SpikeWatch/pkg/kafka"
	"SpikeWatch/pkg/logger"
)

// KafkaStream implements MarketStream over a Kafka topic carrying tick
// messages, for deployments where another service owns the exchange
// connection. Subscription is a local filter; the topic is consumed whole.
type KafkaStream struct {
	consumer *pkgkafka.Consumer
	topic    string
	log      *logger.Logger

	events chan models.MarketEvent
	errs   chan error

	mu        sync.Mutex
	symbols   map[string]struct{}
	connected bool
}

// NewKafkaStream creates a Kafka-backed MarketStream.
func NewKafkaStream(consumer *pkgkafka.Consumer, topic string, bufSize int, log *logger.Logger) drepo.MarketStream {
	if bufSize <= 0 {
		bufSize = 4096
	}
	s := &KafkaStream{
		consumer: consumer,
		topic:    topic,
		log:      log,
		events:   make(chan models.MarketEvent, bufSize),
		errs:     make(chan error, 1),
		symbols:  make(map[string]struct{}),
	}
	consumer.RegisterHandler(s)
	return s
}

// Topic implements kafka.MessageHandler.
func (s *KafkaStream) Topic() string { return s.topic }

// tick message schema: {symbol, t(ms), p, v}
func (s *KafkaStream) Handle(_ context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"t"`
		P      float64 `json:"p"`
		V      float64 `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("decode tick: %w", err)
	}
	if !s.wanted(m.Symbol) {
		return nil
	}
	if m.T < 1e11 { // seconds
		m.T = m.T * 1000
	}
	t := models.Trade{Symbol: m.Symbol, Price: m.P, Size: m.V, Timestamp: time.UnixMilli(m.T).UTC()}
	select {
	case s.events <- models.MarketEvent{Trade: &t}:
	default:
		// drop on backpressure
	}
	return nil
}

func (s *KafkaStream) wanted(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.symbols) == 0 {
		return true
	}
	_, ok := s.symbols[symbol]
	return ok
}

func (s *KafkaStream) Connect(_ context.Context) error {
	if err := s.consumer.Start(); err != nil {
		return fmt.Errorf("kafka stream start: %w", err)
	}
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	s.log.Info("kafka stream connected", logger.String("topic", s.topic))
	return nil
}

func (s *KafkaStream) Subscribe(_ context.Context, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sym := range symbols {
		s.symbols[sym] = struct{}{}
	}
	return nil
}

func (s *KafkaStream) Unsubscribe(_ context.Context, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sym := range symbols {
		delete(s.symbols, sym)
	}
	return nil
}

func (s *KafkaStream) Read(_ context.Context) (<-chan models.MarketEvent, <-chan error) {
	return s.events, s.errs
}

// Reconnect is a no-op; the underlying reader rebalances on its own.
func (s *KafkaStream) Reconnect(_ context.Context) error {
	return nil
}

func (s *KafkaStream) Close() error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.consumer.Stop(ctx)
}

func (s *KafkaStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}
