package streaming

import (
	"encoding/json"
	"errors"
)

type EventType string

const (
	EventSubmitted EventType = "submitted"
	EventMined     EventType = "mined"
	EventFailed    EventType = "failed"
)

// Event describes one step in the life of a deposit_request transaction.
type Event struct {
	Type           EventType `json:"type"`
	ChainID        uint64    `json:"chain_id"`
	TxHash         string    `json:"tx_hash"`
	Nonce          uint64    `json:"nonce"`
	Sender         string    `json:"sender,omitempty"`
	Contract       string    `json:"contract,omitempty"`
	BTCTxID        string    `json:"btc_txid,omitempty"`
	BTCAddress     string    `json:"btc_address,omitempty"`
	ReceiveAddress string    `json:"receive_address,omitempty"`
	Amount         string    `json:"amount,omitempty"`
	BlockNumber    uint64    `json:"block_number,omitempty"`
	Status         *uint64   `json:"status,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	TraceID        string    `json:"trace_id,omitempty"`
}

func validate(event Event) error {
	if event.Type == "" {
		return errors.New("event type is required")
	}
	if event.ChainID == 0 {
		return errors.New("chain_id is required")
	}
	if event.TxHash == "" {
		return errors.New("tx_hash is required")
	}
	return nil
}

func Encode(event Event) ([]byte, error) {
	if err := validate(event); err != nil {
		return nil, err
	}
	return json.Marshal(event)
}

func Decode(payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, err
	}
	if err := validate(event); err != nil {
		return Event{}, err
	}
	return event, nil
}
