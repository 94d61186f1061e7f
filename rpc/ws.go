package rpc

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"cosmossdk.io/log"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// WSClient is a JSON-RPC client over a single WebSocket connection. Calls
// from any number of goroutines share the connection; responses are matched
// to callers by request id. Messages that match no in-flight call are
// re-emitted as EventMessage pushes.
//
// The connection is established lazily on the first call, or eagerly via
// Connect. On disconnect, every in-flight call fails with the close error;
// the client does not redial by itself.
type WSClient struct {
	logger log.Logger
	url    string

	nextID atomic.Uint64

	writeMu sync.Mutex // guards writes to conn

	mu      sync.Mutex // guards conn, pending, subs, closed
	conn    *websocket.Conn
	pending map[uint64]chan *Response
	subs    map[chan<- Event]struct{}
	closed  bool
}

// NewWSClient returns an unconnected client for the given ws:// or wss:// URL.
func NewWSClient(url string, logger log.Logger) *WSClient {
	return &WSClient{
		logger:  logger.With("module", "ws-client", "url", url),
		url:     url,
		pending: make(map[uint64]chan *Response),
		subs:    make(map[chan<- Event]struct{}),
	}
}

func (c *WSClient) URL() string { return c.url }

// Connect dials the endpoint if no connection is live.
func (c *WSClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *WSClient) connectLocked(ctx context.Context) error {
	if c.closed {
		return errors.New("ws client closed")
	}
	if c.conn != nil {
		return nil
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return errors.Wrapf(err, "dial %s", c.url)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	c.conn = conn
	go c.readLoop(conn)
	c.logger.Debug("connected")
	go c.emit(Event{Kind: EventConnected, URL: c.url})
	return nil
}

// Subscribe registers ch for lifecycle and push events. Delivery blocks, so
// the subscriber must keep the channel serviced until Unsubscribe returns.
func (c *WSClient) Subscribe(ch chan<- Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[ch] = struct{}{}
}

func (c *WSClient) Unsubscribe(ch chan<- Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, ch)
}

func (c *WSClient) emit(ev Event) {
	c.mu.Lock()
	targets := make([]chan<- Event, 0, len(c.subs))
	for ch := range c.subs {
		targets = append(targets, ch)
	}
	c.mu.Unlock()
	for _, ch := range targets {
		ch <- ev
	}
}

// Call issues a request and decodes the matched response into result, which
// may be nil to discard it. A JSON-RPC error response is returned as *Error.
func (c *WSClient) Call(ctx context.Context, method string, params, result interface{}) error {
	c.mu.Lock()
	if err := c.connectLocked(ctx); err != nil {
		c.mu.Unlock()
		return err
	}
	id := c.nextID.Add(1)
	ch := make(chan *Response, 1)
	c.pending[id] = ch
	conn := c.conn
	c.mu.Unlock()

	req := newRequest(id, method, params)
	c.writeMu.Lock()
	err := conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return errors.Wrapf(err, "send %s", method)
	}

	select {
	case resp := <-ch:
		if resp == nil {
			return errors.Errorf("connection closed while awaiting %s", method)
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return errors.Wrapf(err, "decode %s response", method)
			}
		}
		return nil
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	}
}

func (c *WSClient) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *WSClient) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.dropConn(conn, err)
			return
		}
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Error("malformed inbound message", "error", err.Error())
			c.emit(Event{Kind: EventError, URL: c.url, Err: err})
			continue
		}
		if resp.ID != nil {
			c.mu.Lock()
			ch, ok := c.pending[*resp.ID]
			if ok {
				delete(c.pending, *resp.ID)
			}
			c.mu.Unlock()
			if ok {
				ch <- &resp
				continue
			}
		}
		// no matching caller: a server push
		c.emit(Event{Kind: EventMessage, URL: c.url, Message: json.RawMessage(data)})
	}
}

// dropConn tears down a dead connection, failing every in-flight call.
func (c *WSClient) dropConn(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	orphans := c.pending
	c.pending = make(map[uint64]chan *Response)
	wasClosed := c.closed
	c.mu.Unlock()

	conn.Close()
	for _, ch := range orphans {
		ch <- nil
	}
	if !wasClosed && !websocket.IsCloseError(cause, websocket.CloseNormalClosure) {
		c.logger.Error("connection lost", "error", cause.Error())
		c.emit(Event{Kind: EventError, URL: c.url, Err: cause})
	}
	c.logger.Debug("disconnected")
	c.emit(Event{Kind: EventDisconnected, URL: c.url})
}

// Close tears down the connection and rejects any further calls.
func (c *WSClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		// the read loop observes the close and fails in-flight calls
		return conn.Close()
	}
	return nil
}
