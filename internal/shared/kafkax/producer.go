package kafkax

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	defaultWriteTimeout = 5 * time.Second
	minResetInterval    = 2 * time.Second
)

type Producer struct {
	mu        sync.Mutex
	w         *kafka.Writer
	cfg       ProducerConfig
	lastReset time.Time
}

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	ClientID     string
	WriteTimeout time.Duration
}

func NewProducer(cfg ProducerConfig) *Producer {
	p := &Producer{cfg: cfg}
	p.w = newWriter(cfg)
	return p
}

func newWriter(cfg ProducerConfig) *kafka.Writer {
	// Short metadata TTL so a moved broker is picked up without a restart.
	tr := &kafka.Transport{
		ClientID:    cfg.ClientID,
		MetadataTTL: 10 * time.Second,
	}

	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 50 * time.Millisecond,
		Transport:    tr,
	}
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w == nil {
		return nil
	}
	err := p.w.Close()
	p.w = nil
	return err
}

// Produce writes one message synchronously. Messages with the same key land on
// the same partition, so events of one ticket stay ordered.
func (p *Producer) Produce(ctx context.Context, key []byte, value []byte, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = p.cfg.WriteTimeout
	}
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}

	write := func() error {
		p.mu.Lock()
		w := p.w
		p.mu.Unlock()
		if w == nil {
			return errors.New("kafkax: producer is closed")
		}
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return w.WriteMessages(cctx, kafka.Message{Key: key, Value: value})
	}

	err := write()
	if err != nil && shouldReset(err) && p.resetOnce() {
		return write()
	}
	return err
}

// shouldReset reports whether err looks like stale broker metadata or a dead
// connection, which a fresh writer can recover from.
func shouldReset(err error) bool {
	if err == nil {
		return false
	}

	var kerr kafka.Error
	if errors.As(err, &kerr) {
		switch kerr {
		case kafka.NotLeaderForPartition, kafka.LeaderNotAvailable, kafka.BrokerNotAvailable,
			kafka.UnknownTopicOrPartition, kafka.NetworkException:
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	s := strings.ToLower(err.Error())
	for _, sub := range []string{"dial tcp", "failed to dial", "unknown broker", "transport is closing"} {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// resetOnce recreates the writer unless that happened very recently.
func (p *Producer) resetOnce() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if time.Since(p.lastReset) < minResetInterval {
		return false
	}
	if p.w != nil {
		_ = p.w.Close()
	}
	p.w = newWriter(p.cfg)
	p.lastReset = time.Now()
	return true
}
