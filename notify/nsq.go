// Package notify contains OTPSender implementations: a queue-backed producer
// for production delivery pipelines and local senders for development and
// tests. The engine never delivers codes itself.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/propspace/authcore"
)

// DeliveryMessage is the JSON payload published for each issued code. A
// downstream worker owns rendering and transport (email, SMS); this package
// only enqueues.
type DeliveryMessage struct {
	Email    string    `json:"email"`
	Code     string    `json:"code"`
	Purpose  string    `json:"purpose"`
	IssuedAt time.Time `json:"issued_at"`
}

// publisher is the subset of *nsq.Producer the sender needs. Tests substitute
// an in-memory implementation.
type publisher interface {
	Publish(topic string, body []byte) error
	Stop()
}

// NSQSender publishes delivery messages to an NSQ topic.
type NSQSender struct {
	producer publisher
	topic    string
}

// NewNSQSender connects a producer to the given nsqd address and verifies
// connectivity with a ping before returning.
func NewNSQSender(address, topic string) (*NSQSender, error) {
	if topic == "" {
		return nil, fmt.Errorf("nsq sender: topic is required")
	}

	config := nsq.NewConfig()
	producer, err := nsq.NewProducer(address, config)
	if err != nil {
		return nil, fmt.Errorf("nsq sender: create producer: %w", err)
	}
	if err := producer.Ping(); err != nil {
		producer.Stop()
		return nil, fmt.Errorf("nsq sender: ping nsqd: %w", err)
	}

	return &NSQSender{producer: producer, topic: topic}, nil
}

// SendOTP enqueues the code for delivery. The payload is the only place the
// plaintext code leaves the process; it is never written to logs here.
func (s *NSQSender) SendOTP(ctx context.Context, email, code string, purpose authcore.OTPPurpose) error {
	msg := DeliveryMessage{
		Email:    email,
		Code:     code,
		Purpose:  purpose.String(),
		IssuedAt: time.Now().UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("nsq sender: marshal message: %w", err)
	}

	if err := s.producer.Publish(s.topic, body); err != nil {
		return fmt.Errorf("nsq sender: publish: %w", err)
	}
	return nil
}

// Stop gracefully stops the underlying producer.
func (s *NSQSender) Stop() {
	s.producer.Stop()
}
