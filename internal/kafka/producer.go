package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer streams exhibition events, one writer per topic.
type Producer struct {
	visitWriter   *kafka.Writer
	stickerWriter *kafka.Writer
}

func NewProducer(brokers []string, visitTopic, stickerTopic string) *Producer {
	return &Producer{
		visitWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   visitTopic,
		}),
		stickerWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   stickerTopic,
		}),
	}
}

// VisitRecordedEvent is the payload for a newly counted visit.
type VisitRecordedEvent struct {
	VisitorQR   string    `json:"visitor_qr"`
	TeamName    string    `json:"team_name"`
	TotalVisits int       `json:"total_visits"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// StickerDispensedEvent is the payload for a completed dispense.
type StickerDispensedEvent struct {
	VisitorQR   string    `json:"visitor_qr"`
	TotalVisits int       `json:"total_visits"`
	DispensedAt time.Time `json:"dispensed_at"`
}

// PublishVisitRecorded streams the visit event to Kafka
func (p *Producer) PublishVisitRecorded(visitorQR, teamName string, totalVisits int) error {
	event := VisitRecordedEvent{
		VisitorQR:   visitorQR,
		TeamName:    teamName,
		TotalVisits: totalVisits,
		RecordedAt:  time.Now().UTC(),
	}
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	fmt.Printf("Publishing to Kafka [visit_recorded]: %s\n", string(msgBytes))

	return p.visitWriter.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(visitorQR),
			Value: msgBytes,
		},
	)
}

// PublishStickerDispensed streams the dispense event to Kafka
func (p *Producer) PublishStickerDispensed(visitorQR string, totalVisits int, dispensedAt time.Time) error {
	event := StickerDispensedEvent{
		VisitorQR:   visitorQR,
		TotalVisits: totalVisits,
		DispensedAt: dispensedAt,
	}
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	fmt.Printf("Publishing to Kafka [sticker_dispensed]: %s\n", string(msgBytes))

	return p.stickerWriter.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(visitorQR),
			Value: msgBytes,
		},
	)
}

// Close flushes and closes both writers.
func (p *Producer) Close() error {
	if err := p.visitWriter.Close(); err != nil {
		return err
	}
	return p.stickerWriter.Close()
}
