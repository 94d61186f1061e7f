// Package client implements the transaction client: the single authority for
// committing transactions against the chain and issuing reads over its RPC
// surface. It owns the transport handles, wraps commits in the
// sequence-conflict retry protocol, and fans transport events out to
// registered listeners.
package client

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"

	"cosmossdk.io/log"
	"github.com/pkg/errors"

	errorsmod "cosmossdk.io/errors"

	"github.com/dappchain/evmbridge/middleware"
	"github.com/dappchain/evmbridge/retry"
	"github.com/dappchain/evmbridge/rpc"
	"github.com/dappchain/evmbridge/types"
	"github.com/dappchain/evmbridge/vm"
)

// Client talks to one chain over a write transport and a read transport,
// which may be the same handle. All exported methods are safe for concurrent
// use; no lock is held across a network round-trip.
type Client struct {
	logger  log.Logger
	chainID string
	write   rpc.Transport
	read    rpc.Transport

	// TxMiddleware is the default transform chain for commits without an
	// explicit override. Set before first use; read-shared afterwards.
	TxMiddleware middleware.Chain

	commitPolicy retry.Policy

	mu           sync.Mutex
	listeners    []listenerEntry
	nextListener ListenerID
	contractRefs int
	msgCh        chan rpc.Event
	msgLoopOnce  sync.Once

	lifecycleCh chan rpc.Event
	quit        chan struct{}
	quitOnce    sync.Once
}

// Option tweaks client construction.
type Option func(*Client)

// WithCommitPolicy overrides the sequence-conflict retry policy.
func WithCommitPolicy(p retry.Policy) Option {
	return func(c *Client) { c.commitPolicy = p }
}

// NewClient wires a client to its transports. A nil read transport makes
// reads share the write transport.
func NewClient(logger log.Logger, chainID string, write, read rpc.Transport, opts ...Option) *Client {
	if read == nil {
		read = write
	}
	c := &Client{
		logger:       logger.With("module", "client", "chain-id", chainID),
		chainID:      chainID,
		write:        write,
		read:         read,
		commitPolicy: retry.DefaultCommitPolicy,
		lifecycleCh:  make(chan rpc.Event, 16),
		quit:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.write.Subscribe(c.lifecycleCh)
	if c.read != c.write {
		c.read.Subscribe(c.lifecycleCh)
	}
	go c.lifecycleLoop()
	return c
}

// ChainID returns the chain identifier this client is bound to.
func (c *Client) ChainID() string { return c.chainID }

// AddListener registers fn for events of the given kind, invoked in
// registration order. Registering the first EventContract listener attaches
// the client to the read transport's push stream; the attachment is dropped
// again when the last such listener is removed.
func (c *Client) AddListener(kind EventKind, fn func(Event)) ListenerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextListener++
	id := c.nextListener
	c.listeners = append(c.listeners, listenerEntry{id: id, kind: kind, fn: fn})
	if kind == EventContract {
		c.contractRefs++
		if c.contractRefs == 1 {
			c.attachPushStreamLocked()
		}
	}
	return id
}

// RemoveListener drops a previously registered listener.
func (c *Client) RemoveListener(id ListenerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.listeners {
		if e.id != id {
			continue
		}
		c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
		if e.kind == EventContract {
			c.contractRefs--
			if c.contractRefs == 0 {
				c.read.Unsubscribe(c.msgCh)
			}
		}
		return
	}
}

func (c *Client) attachPushStreamLocked() {
	if c.msgCh == nil {
		c.msgCh = make(chan rpc.Event, 16)
	}
	c.read.Subscribe(c.msgCh)
	c.msgLoopOnce.Do(func() {
		go c.msgLoop()
	})
}

func (c *Client) lifecycleLoop() {
	for {
		select {
		case <-c.quit:
			return
		case ev := <-c.lifecycleCh:
			switch ev.Kind {
			case rpc.EventConnected:
				c.dispatch(Event{Kind: EventConnected, URL: ev.URL})
			case rpc.EventDisconnected:
				c.dispatch(Event{Kind: EventDisconnected, URL: ev.URL})
			case rpc.EventError:
				c.dispatch(Event{Kind: EventError, URL: ev.URL, Err: ev.Err})
			}
		}
	}
}

// msgLoop drains the push stream for the life of the client. It keeps
// draining after the last contract listener detaches so a transport emit
// racing the detach can never block.
func (c *Client) msgLoop() {
	for {
		select {
		case <-c.quit:
			return
		case ev := <-c.msgCh:
			if ev.Kind != rpc.EventMessage {
				continue
			}
			contract, err := parsePush(ev.Message)
			if err != nil {
				c.logger.Debug("dropping malformed push", "error", err.Error())
				continue
			}
			if contract == nil {
				continue
			}
			c.dispatch(Event{Kind: EventContract, URL: ev.URL, Contract: contract})
		}
	}
}

func (c *Client) dispatch(ev Event) {
	c.mu.Lock()
	targets := make([]func(Event), 0, len(c.listeners))
	for _, e := range c.listeners {
		if e.kind == ev.Kind {
			targets = append(targets, e.fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range targets {
		fn(ev)
	}
}

func parsePush(raw json.RawMessage) (*ContractEventData, error) {
	var env pushEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(err, "decode push envelope")
	}
	if len(env.Params) == 0 {
		return nil, nil
	}
	var contract ContractEventData
	if err := json.Unmarshal(env.Params, &contract); err != nil {
		return nil, errors.Wrap(err, "decode contract event")
	}
	return &contract, nil
}

// CommitTx serializes tx, runs it through the middleware chain (the override
// when given, the client default otherwise), and broadcasts it. A commit
// rejected with the chain's sequence-conflict log line is retried under the
// commit policy, re-running the whole chain so the sequence stage re-reads
// the latest value. Any other non-zero result code is terminal. A zero-code
// result resolves with the delivered data, which may be empty.
func (c *Client) CommitTx(ctx context.Context, tx *vm.Tx, override middleware.Chain) ([]byte, error) {
	chain := override
	if chain == nil {
		chain = c.TxMiddleware
	}
	raw, err := tx.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "marshal transaction")
	}

	return retry.DoWithData(ctx, c.commitPolicy, isSequenceMismatch, func() ([]byte, error) {
		signed, err := chain.Apply(ctx, raw)
		if err != nil {
			return nil, err
		}
		var res types.BroadcastTxResult
		err = c.write.Call(ctx, "broadcast_tx_commit", map[string]interface{}{"tx": signed}, &res)
		if err != nil {
			return nil, errors.Wrap(err, "broadcast transaction")
		}
		if err := commitError(res.CheckTx); err != nil {
			return nil, err
		}
		if err := commitError(res.DeliverTx); err != nil {
			return nil, err
		}
		if len(res.DeliverTx.Data) == 0 {
			return nil, nil
		}
		return res.DeliverTx.Data, nil
	})
}

func commitError(res types.TxResult) error {
	if res.Code == 0 {
		return nil
	}
	if res.Log == sequenceMismatchLog {
		return ErrSequenceMismatch
	}
	if res.Log != "" {
		return errorsmod.Wrap(ErrCommitFailed, res.Log)
	}
	return errorsmod.Wrapf(ErrCommitFailed, "code %d", res.Code)
}

func isSequenceMismatch(err error) bool {
	return errors.Is(err, ErrSequenceMismatch)
}

// Query runs a read-only call against a contract. No middleware, no retry;
// failures propagate directly.
func (c *Client) Query(ctx context.Context, contract types.Address, query []byte, vmType vm.VMType, caller *types.Address) ([]byte, error) {
	params := map[string]interface{}{
		"contract": contract.String(),
		"query":    query,
		"vmType":   int32(vmType),
	}
	if caller != nil {
		params["caller"] = caller.String()
	}
	var out []byte
	if err := c.read.Call(ctx, "query", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeployContract commits a contract-creation transaction from the given
// account. The deploy target is the chain's zero address.
func (c *Client) DeployContract(ctx context.Context, from types.Address, code []byte, override middleware.Chain) ([]byte, error) {
	return c.commitMessage(ctx, vm.DeployTxID, from, types.ZeroAddress(c.chainID), &vm.DeployTx{
		VMType: vm.VMTypeEVM,
		Code:   code,
	}, override)
}

// CallContract commits a contract call from the given account. A positive
// value rides along as the call's transfer amount; nil or zero omits it.
func (c *Client) CallContract(ctx context.Context, from, to types.Address, input []byte, value *big.Int, override middleware.Chain) ([]byte, error) {
	call := &vm.CallTx{
		VMType: vm.VMTypeEVM,
		Input:  input,
	}
	if value != nil && value.Sign() > 0 {
		call.Value = vm.NewBigUInt(value)
	}
	return c.commitMessage(ctx, vm.CallTxID, from, to, call, override)
}

type marshaler interface {
	Marshal() ([]byte, error)
}

func (c *Client) commitMessage(ctx context.Context, id vm.TxID, from, to types.Address, inner marshaler, override middleware.Chain) ([]byte, error) {
	data, err := inner.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "marshal inner message")
	}
	msg := &vm.MessageTx{From: from, To: to, Data: data}
	msgBytes, err := msg.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "marshal message")
	}
	return c.CommitTx(ctx, &vm.Tx{ID: id, Data: msgBytes}, override)
}

// Disconnect tears down both transports and stops the event loops.
// In-flight calls fail with the transports' close errors. Safe to call
// more than once.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.write.Unsubscribe(c.lifecycleCh)
	if c.read != c.write {
		c.read.Unsubscribe(c.lifecycleCh)
	}
	if c.msgCh != nil {
		c.read.Unsubscribe(c.msgCh)
	}
	c.mu.Unlock()
	c.quitOnce.Do(func() { close(c.quit) })

	err := c.write.Close()
	if c.read != c.write {
		if rerr := c.read.Close(); err == nil {
			err = rerr
		}
	}
	return err
}

func (c *Client) readBytes(ctx context.Context, method string, params interface{}) ([]byte, error) {
	var out []byte
	if err := c.read.Call(ctx, method, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TxByHash looks up the chain's projection of a committed EVM transaction.
// A negative lookup returns nil, nil.
func (c *Client) TxByHash(ctx context.Context, txHash []byte) (*vm.EvmTxObject, error) {
	b, err := c.readBytes(ctx, "getevmtransactionbyhash", map[string]interface{}{"txHash": txHash})
	if err != nil || len(b) == 0 {
		return nil, err
	}
	obj := &vm.EvmTxObject{}
	if err := obj.Unmarshal(b); err != nil {
		return nil, errors.Wrap(err, "malformed transaction response")
	}
	return obj, nil
}

// TxReceipt looks up the execution receipt for a transaction hash. A
// negative lookup returns nil, nil.
func (c *Client) TxReceipt(ctx context.Context, txHash []byte) (*vm.EvmTxReceipt, error) {
	b, err := c.readBytes(ctx, "evmtxreceipt", map[string]interface{}{"txHash": txHash})
	if err != nil || len(b) == 0 {
		return nil, err
	}
	receipt := &vm.EvmTxReceipt{}
	if err := receipt.Unmarshal(b); err != nil {
		return nil, errors.Wrap(err, "malformed receipt response")
	}
	return receipt, nil
}

// Code fetches a contract's runtime bytecode; nil for an unknown contract.
func (c *Client) Code(ctx context.Context, contract types.Address) ([]byte, error) {
	return c.readBytes(ctx, "getevmcode", map[string]interface{}{"contract": contract.String()})
}

// BlockByNumber fetches the chain's block projection by number. The number
// travels as the chain accepts it: a decimal string or one of the symbolic
// heights ("latest", "earliest", "pending"). Full selects serialized
// receipts over bare hashes in the transaction list. A height the chain does
// not have yet returns nil, nil.
func (c *Client) BlockByNumber(ctx context.Context, number string, full bool) (*vm.EthBlockInfo, error) {
	b, err := c.readBytes(ctx, "getevmblockbynumber", map[string]interface{}{"number": number, "full": full})
	if err != nil || len(b) == 0 {
		return nil, err
	}
	return unmarshalBlockInfo(b)
}

// BlockByHash is BlockByNumber keyed by block hash.
func (c *Client) BlockByHash(ctx context.Context, hash []byte, full bool) (*vm.EthBlockInfo, error) {
	b, err := c.readBytes(ctx, "getevmblockbyhash", map[string]interface{}{"hash": hash, "full": full})
	if err != nil || len(b) == 0 {
		return nil, err
	}
	return unmarshalBlockInfo(b)
}

func unmarshalBlockInfo(b []byte) (*vm.EthBlockInfo, error) {
	info := &vm.EthBlockInfo{}
	if err := info.Unmarshal(b); err != nil {
		return nil, errors.Wrap(err, "malformed block response")
	}
	return info, nil
}

// Logs runs a one-shot log query. The filter travels as the JSON string the
// chain's filter parser accepts.
func (c *Client) Logs(ctx context.Context, filter string) (*vm.EthFilterLogList, error) {
	b, err := c.readBytes(ctx, "getevmlogs", map[string]interface{}{"filter": filter})
	if err != nil || len(b) == 0 {
		return nil, err
	}
	list := &vm.EthFilterLogList{}
	if err := list.Unmarshal(b); err != nil {
		return nil, errors.Wrap(err, "malformed log response")
	}
	return list, nil
}

// NewFilter installs a server-side log filter and returns its opaque handle.
func (c *Client) NewFilter(ctx context.Context, filter string) (string, error) {
	var id string
	err := c.read.Call(ctx, "newevmfilter", map[string]interface{}{"filter": filter}, &id)
	return id, err
}

// NewBlockFilter installs a server-side new-block filter.
func (c *Client) NewBlockFilter(ctx context.Context) (string, error) {
	var id string
	err := c.read.Call(ctx, "newblockevmfilter", map[string]interface{}{}, &id)
	return id, err
}

// NewPendingTxFilter installs a server-side pending-transaction filter.
func (c *Client) NewPendingTxFilter(ctx context.Context) (string, error) {
	var id string
	err := c.read.Call(ctx, "newpendingtransactionevmfilter", map[string]interface{}{}, &id)
	return id, err
}

// FilterChanges polls a filter handle. The envelope's discriminant matches
// the kind of filter installed. Nothing pending returns nil, nil.
func (c *Client) FilterChanges(ctx context.Context, id string) (*vm.EthFilterEnvelope, error) {
	b, err := c.readBytes(ctx, "getevmfilterchanges", map[string]interface{}{"id": id})
	if err != nil || len(b) == 0 {
		return nil, err
	}
	env := &vm.EthFilterEnvelope{}
	if err := env.Unmarshal(b); err != nil {
		return nil, errors.Wrap(err, "malformed filter response")
	}
	return env, nil
}

// UninstallFilter removes a server-side filter.
func (c *Client) UninstallFilter(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := c.read.Call(ctx, "uninstallevmfilter", map[string]interface{}{"id": id}, &ok)
	return ok, err
}

// Subscribe opens a push-style event stream on the read transport and
// returns the server-assigned subscription id.
func (c *Client) Subscribe(ctx context.Context, method, filter string) (string, error) {
	var id string
	err := c.read.Call(ctx, "evmsubscribe", map[string]interface{}{"method": method, "filter": filter}, &id)
	return id, err
}

// Unsubscribe closes a push-style event stream.
func (c *Client) Unsubscribe(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := c.read.Call(ctx, "evmunsubscribe", map[string]interface{}{"id": id}, &ok)
	return ok, err
}

// BlockHeight returns the chain's current block height.
func (c *Client) BlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.read.Call(ctx, "getblockheight", nil, &height)
	return height, err
}

// Nonce returns the sequence number most recently committed for the signer
// identified by the hex form of its public key. Served by the write
// transport, the node that enforces sequencing.
func (c *Client) Nonce(ctx context.Context, key string) (uint64, error) {
	var nonce uint64
	err := c.write.Call(ctx, "nonce", map[string]interface{}{"key": key}, &nonce)
	return nonce, err
}

// Resolve maps a registered contract name to its address.
func (c *Client) Resolve(ctx context.Context, name string) (types.Address, error) {
	var addr string
	if err := c.read.Call(ctx, "resolve", map[string]interface{}{"name": name}, &addr); err != nil {
		return types.Address{}, err
	}
	return types.ParseAddress(addr)
}
