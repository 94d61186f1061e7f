package client

import (
	"encoding/json"
)

// EventKind tags a client-level event.
type EventKind int

const (
	// EventContract is a contract event pushed by the read transport.
	EventContract EventKind = iota
	// EventError is a transport-level fault.
	EventError
	// EventConnected and EventDisconnected re-emit transport lifecycle
	// transitions, tagged with the originating URL.
	EventConnected
	EventDisconnected
)

// ContractEventData is the JSON shape of a contract event pushed by the
// chain. Byte fields travel base64-encoded; addresses travel in their
// "<chainID>:0x<hex>" string form.
type ContractEventData struct {
	ID          string   `json:"id,omitempty"`
	Topics      []string `json:"topics"`
	Caller      string   `json:"caller"`
	Address     string   `json:"address"`
	BlockHeight uint64   `json:"block_height"`
	Data        []byte   `json:"encoded_body"`
	TxHash      []byte   `json:"tx_hash"`
}

// Event is what client listeners receive. Contract is set for EventContract,
// Err for EventError; URL names the originating transport in every case.
type Event struct {
	Kind     EventKind
	URL      string
	Err      error
	Contract *ContractEventData
}

// ListenerID identifies a registered listener for removal.
type ListenerID int64

type listenerEntry struct {
	id   ListenerID
	kind EventKind
	fn   func(Event)
}

// pushEnvelope is the JSON-RPC notification wrapper around a server push.
type pushEnvelope struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}
