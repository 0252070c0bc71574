package streaming

import (
	"encoding/json"
	"errors"

	"txcrawler/internal/domain"
)

type MessageType string

const MessageTypeTransaction MessageType = "transaction"

// Message is the envelope published for every matched transaction.
type Message struct {
	Type        MessageType     `json:"type"`
	TraceID     string          `json:"trace_id,omitempty"`
	BlockNumber uint64          `json:"block_number"`
	TxHash      string          `json:"tx_hash"`
	Transaction json.RawMessage `json:"transaction"`
}

func NewTransactionMessage(traceID string, tx domain.CompactTx) (Message, error) {
	payload, err := json.Marshal(tx)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:        MessageTypeTransaction,
		TraceID:     traceID,
		BlockNumber: tx.BlockNumber,
		TxHash:      tx.TxHash,
		Transaction: payload,
	}, nil
}

func Encode(msg Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, errors.New("message type is required")
	}
	if msg.TxHash == "" {
		return nil, errors.New("tx_hash is required")
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Type == "" {
		return Message{}, errors.New("message type is missing")
	}
	if msg.TxHash == "" {
		return Message{}, errors.New("tx_hash is missing")
	}
	return msg, nil
}
