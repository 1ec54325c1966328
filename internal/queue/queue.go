package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dadchain/internal/chain"
	"dadchain/internal/config"
	"dadchain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nats-io/nats.go"
)

const (
	SubjectPrefix = "dadchain.events."
	fetchBatch    = 10
)

// Subject is where events of the given name are published.
func Subject(name string) string {
	return SubjectPrefix + name
}

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

	_, err = n.jetstream.AddStream(&nats.StreamConfig{
		Name:     n.cfg.StreamName,
		Subjects: []string{SubjectPrefix + ">"},
		Storage:  nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", n.cfg.StreamName, err)
	}

	logger.Info("Created NATS stream", logger.String("stream", n.cfg.StreamName))
	return nil
}

func (n *NATS) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}

// EventMessage is one committed event as it travels on the bus.
type EventMessage struct {
	Seq       uint64          `json:"seq"`
	TxHash    common.Hash     `json:"tx_hash"`
	Index     int             `json:"index"`
	Contract  common.Address  `json:"contract"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// ID uniquely identifies the message for JetStream deduplication.
func (m *EventMessage) ID() string {
	return fmt.Sprintf("%d-%d", m.Seq, m.Index)
}

// Decode unmarshals the event payload into v.
func (m *EventMessage) Decode(v any) error {
	return json.Unmarshal(m.Data, v)
}

// Messages flattens a receipt into bus messages, one per event.
func Messages(rcpt *chain.Receipt) ([]*EventMessage, error) {
	msgs := make([]*EventMessage, 0, len(rcpt.Events))
	for i, ev := range rcpt.Events {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s event: %w", ev.Name, err)
		}
		msgs = append(msgs, &EventMessage{
			Seq:       rcpt.Seq,
			TxHash:    rcpt.Hash,
			Index:     i,
			Contract:  ev.Contract,
			Name:      ev.Name,
			Data:      data,
			EmittedAt: rcpt.Time,
		})
	}
	return msgs, nil
}

func (n *NATS) PublishEvent(ctx context.Context, msg *EventMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = n.jetstream.Publish(Subject(msg.Name), data, nats.Context(ctx), nats.MsgId(msg.ID()))
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	logger.Debug("Event published to queue",
		logger.String("name", msg.Name),
		logger.Uint64("seq", msg.Seq),
	)

	return nil
}

// ConsumeEvents pulls every event through a durable consumer until ctx is
// done. A handler error naks the message so it is redelivered.
func (n *NATS) ConsumeEvents(ctx context.Context, durable string, handler func(*EventMessage) error) error {
	sub, err := n.jetstream.PullSubscribe(
		SubjectPrefix+">",
		durable,
		nats.BindStream(n.cfg.StreamName),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}
	defer sub.Unsubscribe()

	wait := n.cfg.FetchWait
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msgs, err := sub.Fetch(fetchBatch, nats.MaxWait(wait))
			if err != nil {
				if errors.Is(err, nats.ErrTimeout) {
					continue
				}
				return fmt.Errorf("failed to fetch messages: %w", err)
			}

			for _, msg := range msgs {
				var ev EventMessage
				if err := json.Unmarshal(msg.Data, &ev); err != nil {
					logger.Error("Failed to unmarshal event message",
						logger.Err(err),
					)
					// a malformed message will never decode; drop it
					msg.Term()
					continue
				}

				if err := handler(&ev); err != nil {
					logger.Error("Failed to process event",
						logger.String("name", ev.Name),
						logger.Uint64("seq", ev.Seq),
						logger.Err(err),
					)
					msg.Nak()
					continue
				}

				msg.Ack()
			}
		}
	}
}
