// Package events publishes committed ledger documents on redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"syntra-ledger/internal/database/models"
)

const (
	EventBillCreated   = "bill.created"
	EventBillReturned  = "bill.returned"
	EventStockReceived = "stock.received"
)

const channelPrefix = "ledger:events:"

// ChannelAll receives every event regardless of type.
const ChannelAll = channelPrefix + "all"

type DocumentEvent struct {
	EventID        string           `json:"event_id"`
	EventType      string           `json:"event_type"`
	DocumentID     int64            `json:"document_id"`
	DocumentNumber string           `json:"document_number"`
	DocumentType   string           `json:"document_type"`
	CustomerID     *int64           `json:"customer_id,omitempty"`
	CreatedBy      int64            `json:"created_by"`
	GrandTotal     string           `json:"grand_total"`
	Timestamp      time.Time        `json:"timestamp"`
	Document       *models.Document `json:"document,omitempty"`
}

// Publisher is the subset of the redis client the publisher needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type RedisPublisher struct {
	redis Publisher
	now   func() time.Time
}

func NewRedisPublisher(rdb Publisher) *RedisPublisher {
	return &RedisPublisher{redis: rdb, now: time.Now}
}

// DocumentCommitted publishes doc on its type channel and on ChannelAll.
func (p *RedisPublisher) DocumentCommitted(ctx context.Context, doc models.Document) error {
	return p.publish(ctx, p.newEvent(doc))
}

func (p *RedisPublisher) newEvent(doc models.Document) DocumentEvent {
	return DocumentEvent{
		EventID:        uuid.NewString(),
		EventType:      EventType(doc.DocumentType),
		DocumentID:     doc.ID,
		DocumentNumber: doc.DocumentNumber,
		DocumentType:   doc.DocumentType,
		CustomerID:     doc.CustomerID,
		CreatedBy:      doc.CreatedBy,
		GrandTotal:     doc.GrandTotal.StringFixed(2),
		Timestamp:      p.now().UTC(),
		Document:       &doc,
	}
}

func (p *RedisPublisher) publish(ctx context.Context, event DocumentEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.redis.Publish(ctx, channelPrefix+event.EventType, eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	if err := p.redis.Publish(ctx, ChannelAll, eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish to all channel: %w", err)
	}

	return nil
}

func EventType(documentType string) string {
	switch documentType {
	case models.DocumentTypeSale:
		return EventBillCreated
	case models.DocumentTypeReturn:
		return EventBillReturned
	case models.DocumentTypeReceipt:
		return EventStockReceived
	default:
		return "document.committed"
	}
}
