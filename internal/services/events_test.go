package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher_PublishTransfer(t *testing.T) {
	client, mock := redismock.NewClientMock()
	publisher := NewRedisPublisher(client, "transfer_events", "settlement_queue")

	transfer := externalTransfer()
	processed := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	transfer.ProcessedAt = &processed

	data, err := json.Marshal(NewTransferEvent(transfer))
	require.NoError(t, err)

	t.Run("pushes event", func(t *testing.T) {
		mock.ExpectRPush("transfer_events", data).SetVal(1)

		assert.NoError(t, publisher.PublishTransfer(context.Background(), transfer))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("surfaces redis errors", func(t *testing.T) {
		mock.ExpectRPush("transfer_events", data).SetErr(errors.New("connection refused"))

		assert.Error(t, publisher.PublishTransfer(context.Background(), transfer))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRedisPublisher_QueueSettlement(t *testing.T) {
	client, mock := redismock.NewClientMock()
	publisher := NewRedisPublisher(client, "transfer_events", "settlement_queue")
	transfer := externalTransfer()

	data, err := json.Marshal(SettlementItem{Reference: transfer.Reference, MessageType: Pacs008MessageType, Message: "<xml/>"})
	require.NoError(t, err)
	mock.ExpectRPush("settlement_queue", data).SetVal(1)

	assert.NoError(t, publisher.QueueSettlement(context.Background(), transfer, []byte("<xml/>")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPublisher_NilClient(t *testing.T) {
	publisher := NewRedisPublisher(nil, "transfer_events", "settlement_queue")
	assert.NoError(t, publisher.PublishTransfer(context.Background(), externalTransfer()))
	assert.NoError(t, publisher.QueueSettlement(context.Background(), externalTransfer(), nil))
}

func TestNewTransferEvent(t *testing.T) {
	event := NewTransferEvent(externalTransfer())
	assert.Equal(t, "100.50", event.Amount)
	assert.Equal(t, "0.50", event.Fee)
	assert.True(t, event.External)
	assert.Empty(t, event.ProcessedAt)
}
