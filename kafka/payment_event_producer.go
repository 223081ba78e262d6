package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/eastemblem/proofengine-payments/models"

	"github.com/segmentio/kafka-go"
)

type PaymentEventProducer struct {
	writer *kafka.Writer
	topic  string
}

func NewPaymentEventProducer(brokers []string, topic string) *PaymentEventProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Printf("[Payments][KafkaProducer] initialized topic=%s brokers=%v", topic, brokers)
	return &PaymentEventProducer{writer: w, topic: topic}
}

func (p *PaymentEventProducer) SendPaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderReference),
		Value: data,
	}

	return p.writer.WriteMessages(ctx, msg)
}

func (p *PaymentEventProducer) Close() {
	_ = p.writer.Close()
	log.Println("[Payments] Kafka producer closed")
}
