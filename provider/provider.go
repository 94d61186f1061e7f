// Package provider presents the chain as a standard Ethereum JSON-RPC
// endpoint. It wraps one transaction client plus a set of local accounts,
// dispatches the bridged method set to chain-specific calls, and reshapes
// chain responses into Ethereum-shaped, lower-case-hex JSON.
package provider

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"sync"

	"cosmossdk.io/log"

	errorsmod "cosmossdk.io/errors"

	"github.com/dappchain/evmbridge/client"
	"github.com/dappchain/evmbridge/crypto"
	"github.com/dappchain/evmbridge/middleware"
	"github.com/dappchain/evmbridge/retry"
)

const codespace = "provider"

var (
	// ErrUnsupportedMethod rejects JSON-RPC methods outside the bridged set.
	ErrUnsupportedMethod = errorsmod.Register(codespace, 2, "method not supported")

	// ErrNoAccounts rejects account-dependent calls before any account is
	// registered.
	ErrNoAccounts = errorsmod.Register(codespace, 3, "no accounts registered")

	// ErrUnknownAccount rejects transactions from an unregistered sender.
	ErrUnknownAccount = errorsmod.Register(codespace, 4, "unknown account")
)

// noSubscriptionID is the sentinel id on pushes that belong to no live
// subscription; such pushes are dropped, not forwarded.
const noSubscriptionID = "no-subscription"

// JSONRPCRequest is the inbound JSON-RPC 2.0 request envelope.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// JSONRPCResponse is the outbound success envelope. A nil Result marshals as
// the JSON null several bridged methods are specified to answer.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result"`
}

type handlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

// DataCallbackID identifies a registered notification callback.
type DataCallbackID int64

type dataCallback struct {
	id DataCallbackID
	fn func(json.RawMessage)
}

// Provider implements the Ethereum-compatibility surface on top of a
// transaction client. Accounts only accumulate; each account's middleware
// chain is built once at registration and reused for every transaction it
// sends.
type Provider struct {
	logger log.Logger
	client *client.Client

	handlers     map[string]handlerFunc
	lookupPolicy retry.Policy
	netVersion   string

	mu            sync.Mutex
	accounts      map[string]ed25519.PrivateKey
	accountOrder  []string
	middlewares   map[string]middleware.Chain
	callbacks     []dataCallback
	nextCallback  DataCallbackID
	eventListener client.ListenerID
	listening     bool
}

// Option tweaks provider construction.
type Option func(*Provider)

// WithLookupPolicy overrides the retry policy used when polling for
// resources the chain may not have indexed yet.
func WithLookupPolicy(policy retry.Policy) Option {
	return func(p *Provider) { p.lookupPolicy = policy }
}

// NewProvider wires a provider to its client and registers the initial
// accounts. More accounts can be added later via AddAccounts.
func NewProvider(logger log.Logger, c *client.Client, keys []ed25519.PrivateKey, opts ...Option) *Provider {
	p := &Provider{
		logger:       logger.With("module", "provider"),
		client:       c,
		lookupPolicy: retry.DefaultLookupPolicy,
		netVersion:   netVersionFromChainID(c.ChainID()),
		accounts:     make(map[string]ed25519.PrivateKey),
		middlewares:  make(map[string]middleware.Chain),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.handlers = p.methodTable()
	// losing the transport clears every registered notification callback
	c.AddListener(client.EventDisconnected, func(client.Event) {
		p.RemoveAllDataCallbacks()
	})
	p.AddAccounts(keys)
	return p
}

// AddAccounts registers accounts by private key. Each account's address is
// derived from its public key; re-adding a known account is a no-op, so an
// address is listed exactly once.
func (p *Provider) AddAccounts(keys []ed25519.PrivateKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, priv := range keys {
		local := crypto.LocalAddressFromPublicKey(crypto.PublicKey(priv))
		addr := local.String()
		if _, ok := p.accounts[addr]; ok {
			continue
		}
		p.accounts[addr] = priv
		p.accountOrder = append(p.accountOrder, addr)
		p.middlewares[addr] = middleware.DefaultChain(priv, p.client)
		p.logger.Debug("account registered", "address", addr)
	}
}

// Send dispatches one JSON-RPC request: a bare request object or a
// single-element array of one (larger batches are not supported). The
// response envelope mirrors the request's id and array-ness. All failures
// come back on the error return; Send never panics past this boundary.
func (p *Provider) Send(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	batched := len(trimmed) > 0 && trimmed[0] == '['

	var req JSONRPCRequest
	if batched {
		var reqs []JSONRPCRequest
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			return nil, errorsmod.Wrap(ErrUnsupportedMethod, "malformed batch request")
		}
		if len(reqs) != 1 {
			return nil, errorsmod.Wrapf(ErrUnsupportedMethod, "batch of %d requests", len(reqs))
		}
		req = reqs[0]
	} else if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, errorsmod.Wrap(ErrUnsupportedMethod, "malformed request")
	}

	handler, ok := p.handlers[req.Method]
	if !ok {
		return nil, errorsmod.Wrapf(ErrUnsupportedMethod, "%q", req.Method)
	}

	p.logger.Debug("dispatching", "method", req.Method)
	result, err := handler(ctx, req.Params)
	if err != nil {
		p.logger.Debug("method failed", "method", req.Method, "error", err.Error())
		return nil, err
	}

	resp := JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
	if batched {
		return json.Marshal([]JSONRPCResponse{resp})
	}
	return json.Marshal(resp)
}

// RegisterDataCallback registers fn for inbound push notifications. The
// first registration attaches the provider to the client's contract-event
// stream; callbacks fire in registration order for every forwarded push.
func (p *Provider) RegisterDataCallback(fn func(json.RawMessage)) DataCallbackID {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextCallback++
	id := p.nextCallback
	p.callbacks = append(p.callbacks, dataCallback{id: id, fn: fn})
	if !p.listening {
		p.listening = true
		p.eventListener = p.client.AddListener(client.EventContract, p.onContractEvent)
	}
	return id
}

// RemoveDataCallback drops a single notification callback, detaching from
// the client's event stream when it was the last one.
func (p *Provider) RemoveDataCallback(id DataCallbackID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, cb := range p.callbacks {
		if cb.id == id {
			p.callbacks = append(p.callbacks[:i], p.callbacks[i+1:]...)
			break
		}
	}
	p.detachIfIdleLocked()
}

// RemoveAllDataCallbacks drops every notification callback at once.
func (p *Provider) RemoveAllDataCallbacks() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = nil
	p.detachIfIdleLocked()
}

func (p *Provider) detachIfIdleLocked() {
	if p.listening && len(p.callbacks) == 0 {
		p.client.RemoveListener(p.eventListener)
		p.listening = false
	}
}

func (p *Provider) onContractEvent(ev client.Event) {
	contract := ev.Contract
	if contract == nil || contract.ID == noSubscriptionID {
		return
	}
	if len(contract.Data) == 0 && len(contract.TxHash) == 0 {
		// push with no payload
		return
	}

	notification := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "eth_subscription",
		"params": map[string]interface{}{
			"subscription": contract.ID,
			"result":       formatContractEvent(contract),
		},
	}
	raw, err := json.Marshal(notification)
	if err != nil {
		p.logger.Error("failed to encode notification", "error", err.Error())
		return
	}

	p.mu.Lock()
	targets := make([]func(json.RawMessage), 0, len(p.callbacks))
	for _, cb := range p.callbacks {
		targets = append(targets, cb.fn)
	}
	p.mu.Unlock()
	for _, fn := range targets {
		fn(raw)
	}
}

func (p *Provider) middlewareFor(addr string) (middleware.Chain, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	mw, ok := p.middlewares[addr]
	return mw, ok
}

func (p *Provider) accountKey(addr string) (ed25519.PrivateKey, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	priv, ok := p.accounts[addr]
	return priv, ok
}
