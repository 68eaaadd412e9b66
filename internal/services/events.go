package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bankportal/backend/internal/models"
	"github.com/go-redis/redis/v8"
)

// TransferPublisher notifies downstream systems about finished transfers.
type TransferPublisher interface {
	PublishTransfer(ctx context.Context, transfer *models.Transfer) error
	QueueSettlement(ctx context.Context, transfer *models.Transfer, message []byte) error
}

// TransferEvent is the JSON document pushed for every completed transfer.
type TransferEvent struct {
	Reference       string `json:"reference"`
	Status          string `json:"status"`
	Amount          string `json:"amount"`
	Fee             string `json:"fee"`
	SourceCode      string `json:"source_code"`
	DestinationCode string `json:"destination_code"`
	External        bool   `json:"external"`
	ProcessedAt     string `json:"processed_at,omitempty"`
}

// SettlementItem wraps the pacs.008 document queued for an external transfer.
type SettlementItem struct {
	Reference   string `json:"reference"`
	MessageType string `json:"message_type"`
	Message     string `json:"message"`
}

func NewTransferEvent(transfer *models.Transfer) TransferEvent {
	event := TransferEvent{
		Reference:       transfer.Reference,
		Status:          string(transfer.Status),
		Amount:          models.FormatMoney(transfer.Amount),
		Fee:             models.FormatMoney(transfer.Fee),
		SourceCode:      transfer.SourceCode,
		DestinationCode: transfer.DestinationCode,
		External:        transfer.External(),
	}
	if transfer.ProcessedAt != nil {
		event.ProcessedAt = transfer.ProcessedAt.UTC().Format(time.RFC3339)
	}
	return event
}

// RedisPublisher pushes events and settlement items onto Redis lists.
// A nil client turns every call into a no-op.
type RedisPublisher struct {
	redis           *redis.Client
	eventsQueue     string
	settlementQueue string
}

func NewRedisPublisher(client *redis.Client, eventsQueue, settlementQueue string) *RedisPublisher {
	return &RedisPublisher{redis: client, eventsQueue: eventsQueue, settlementQueue: settlementQueue}
}

func (p *RedisPublisher) PublishTransfer(ctx context.Context, transfer *models.Transfer) error {
	if p.redis == nil {
		return nil
	}
	data, err := json.Marshal(NewTransferEvent(transfer))
	if err != nil {
		return err
	}
	return p.redis.RPush(ctx, p.eventsQueue, data).Err()
}

func (p *RedisPublisher) QueueSettlement(ctx context.Context, transfer *models.Transfer, message []byte) error {
	if p.redis == nil {
		return nil
	}
	data, err := json.Marshal(SettlementItem{
		Reference:   transfer.Reference,
		MessageType: Pacs008MessageType,
		Message:     string(message),
	})
	if err != nil {
		return err
	}
	return p.redis.RPush(ctx, p.settlementQueue, data).Err()
}
