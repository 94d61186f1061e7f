// Package rpc provides the message-oriented transports the bridge speaks
// over: a WebSocket JSON-RPC client supporting concurrent in-flight calls and
// server pushes, and a plain HTTP JSON-RPC client. Both satisfy Transport,
// the collaborator contract consumed by the transaction client.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
)

// EventKind tags a transport lifecycle or push event.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventError
	EventMessage
)

// Event is emitted by a transport to its subscribers. Message carries the raw
// JSON of an inbound server push; Err is set for EventError only.
type Event struct {
	Kind    EventKind
	URL     string
	Err     error
	Message json.RawMessage
}

// Transport is the collaborator contract: issue a request/response call, and
// emit lifecycle plus push events to subscribed channels. Implementations
// must support multiple outstanding calls concurrently. Events are delivered
// blocking and in order; subscribers keep their channels serviced.
type Transport interface {
	Call(ctx context.Context, method string, params, result interface{}) error
	Subscribe(ch chan<- Event)
	Unsubscribe(ch chan<- Event)
	URL() string
	Close() error
}

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Response is a JSON-RPC 2.0 response envelope. Server pushes arrive without
// an ID and with Method set; responses to calls carry the request's ID.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

func newRequest(id uint64, method string, params interface{}) *Request {
	return &Request{JSONRPC: "2.0", ID: id, Method: method, Params: params}
}
