package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syntra-ledger/internal/database/models"
)

type published struct {
	channel string
	payload []byte
}

type fakeRedis struct {
	sent   []published
	failOn string
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	if channel == f.failOn {
		return redis.NewIntResult(0, errors.New("connection refused"))
	}
	f.sent = append(f.sent, published{channel: channel, payload: message.([]byte)})
	return redis.NewIntResult(1, nil)
}

func TestDocumentCommitted(t *testing.T) {
	rdb := &fakeRedis{}
	p := NewRedisPublisher(rdb)
	p.now = func() time.Time { return time.Date(2026, 10, 14, 5, 30, 0, 0, time.UTC) }

	customer := int64(3)
	err := p.DocumentCommitted(context.Background(), models.Document{
		ID:             11,
		DocumentNumber: "BRET-20261014-001",
		DocumentType:   models.DocumentTypeReturn,
		CustomerID:     &customer,
		CreatedBy:      7,
		GrandTotal:     decimal.RequireFromString("472"),
	})
	require.NoError(t, err)

	require.Len(t, rdb.sent, 2)
	assert.Equal(t, "ledger:events:bill.returned", rdb.sent[0].channel)
	assert.Equal(t, ChannelAll, rdb.sent[1].channel)
	assert.Equal(t, rdb.sent[0].payload, rdb.sent[1].payload)

	var event DocumentEvent
	require.NoError(t, json.Unmarshal(rdb.sent[0].payload, &event))
	assert.Equal(t, EventBillReturned, event.EventType)
	assert.Equal(t, "BRET-20261014-001", event.DocumentNumber)
	assert.Equal(t, "472.00", event.GrandTotal)
	assert.Equal(t, int64(3), *event.CustomerID)
	_, err = uuid.Parse(event.EventID)
	assert.NoError(t, err)
}

func TestDocumentCommitted_PublishError(t *testing.T) {
	rdb := &fakeRedis{failOn: ChannelAll}
	p := NewRedisPublisher(rdb)

	err := p.DocumentCommitted(context.Background(), models.Document{DocumentType: models.DocumentTypeSale})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all channel")
	assert.Len(t, rdb.sent, 1)
}

func TestEventType(t *testing.T) {
	assert.Equal(t, EventBillCreated, EventType(models.DocumentTypeSale))
	assert.Equal(t, EventBillReturned, EventType(models.DocumentTypeReturn))
	assert.Equal(t, EventStockReceived, EventType(models.DocumentTypeReceipt))
	assert.Equal(t, "document.committed", EventType("OTHER"))
}
