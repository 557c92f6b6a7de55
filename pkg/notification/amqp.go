package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ndtl/timereport/internal/config"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// relayMessage is the body published for the mail relay.
type relayMessage struct {
	From        string            `json:"from"`
	To          []string          `json:"to"`
	Subject     string            `json:"subject"`
	HTML        string            `json:"html"`
	Attachments []relayAttachment `json:"attachments,omitempty"`
}

type relayAttachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

// AMQPSender publishes messages to an exchange consumed by a mail relay.
type AMQPSender struct {
	from       string
	exchange   string
	routingKey string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewAMQPSender(from string, cfg config.Amqp) (*AMQPSender, error) {
	conn, err := amqp.Dial(cfg.Url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}
	log.Infof("Publishing mail to rabbitmq exchange %s (%s)", cfg.Exchange, cfg.RoutingKey)
	return &AMQPSender{
		from:       from,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		conn:       conn,
		channel:    channel,
	}, nil
}

func (s *AMQPSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(toRelayMessage(s.from, msg))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.channel.PublishWithContext(ctx,
		s.exchange,
		s.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			CorrelationId: RunId(ctx),
			Body:          body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message for %s: %w", msg.Recipients(), err)
	}
	return nil
}

func (s *AMQPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.channel.Close(); err != nil {
		log.Warnf("failed to close channel: %v", err)
	}
	return s.conn.Close()
}

func toRelayMessage(from string, msg Message) relayMessage {
	out := relayMessage{
		From:    from,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
	}
	for _, a := range msg.Attachments {
		out.Attachments = append(out.Attachments, relayAttachment{
			Name:        a.Name,
			ContentType: a.ContentType,
			Data:        a.Data,
		})
	}
	return out
}
