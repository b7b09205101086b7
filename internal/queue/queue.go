package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"joke-server/internal/config"
	"joke-server/internal/models"
	"joke-server/pkg/logger"

	"github.com/nats-io/nats.go"
)

const (
	ServedSubject = "jokes.served"
	ConsumerGroup = "joke-server"
)

type NATS struct {
	conn      *nats.Conn
	jetstream nats.JetStreamContext
	cfg       config.NATSConfig
}

func New(cfg config.NATSConfig) (*NATS, error) {
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to get JetStream: %w", err)
	}

	n := &NATS{
		conn:      conn,
		jetstream: js,
		cfg:       cfg,
	}

	if err := n.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}

	return n, nil
}

func (n *NATS) ensureStream() error {
	_, err := n.jetstream.StreamInfo(n.cfg.StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", n.cfg.StreamName, err)
	}

	_, err = n.jetstream.AddStream(streamConfig(n.cfg.StreamName))
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", n.cfg.StreamName, err)
	}

	logger.Info("NATS stream created", logger.String("stream", n.cfg.StreamName))
	return nil
}

func streamConfig(name string) *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:     name,
		Subjects: []string{ServedSubject},
		Storage:  nats.FileStorage,
		MaxAge:   30 * 24 * time.Hour,
	}
}

func (n *NATS) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

// PublishServed records a served joke on the stream.
func (n *NATS) PublishServed(ctx context.Context, ev *models.ServedEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal served event: %w", err)
	}

	_, err = n.jetstream.Publish(ServedSubject, data, nats.Context(ctx), nats.MsgId(ev.ID))
	if err != nil {
		return fmt.Errorf("failed to publish served event: %w", err)
	}

	logger.Debug("Served event published to queue",
		logger.String("source", string(ev.Source)),
		logger.String("hash", ev.Hash),
	)

	return nil
}

func (n *NATS) ConsumeServed(ctx context.Context, handler func(*models.ServedEvent) error) error {
	sub, err := n.jetstream.PullSubscribe(
		ServedSubject,
		ConsumerGroup,
		nats.BindStream(n.cfg.StreamName),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to served events: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msgs, err := sub.Fetch(10, nats.MaxWait(500*time.Millisecond))
			if err != nil {
				if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				return fmt.Errorf("failed to fetch messages: %w", err)
			}

			for _, msg := range msgs {
				ev, err := decodeServed(msg.Data)
				if err != nil {
					logger.Error("Failed to unmarshal served event",
						logger.Err(err),
					)
					msg.Term()
					continue
				}

				if err := handler(ev); err != nil {
					logger.Error("Failed to process served event",
						logger.Err(err),
						logger.String("id", ev.ID),
					)
					msg.Nak()
					continue
				}

				msg.Ack()
			}
		}
	}
}

func decodeServed(data []byte) (*models.ServedEvent, error) {
	var ev models.ServedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if ev.ID == "" {
		return nil, errors.New("served event without id")
	}
	return &ev, nil
}
