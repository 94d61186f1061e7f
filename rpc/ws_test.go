package rpc_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/dappchain/evmbridge/rpc"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsEcho serves a JSON-RPC endpoint driven by the given per-request handler.
// The handler returns the raw result JSON for each inbound request.
func wsEcho(t *testing.T, handle func(req rpc.Request) json.RawMessage) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var writeMu sync.Mutex
		for {
			var req rpc.Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			go func(req rpc.Request) {
				id := req.ID
				resp := rpc.Response{JSONRPC: "2.0", ID: &id, Result: handle(req)}
				writeMu.Lock()
				defer writeMu.Unlock()
				_ = conn.WriteJSON(resp)
			}(req)
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSClientCall(t *testing.T) {
	srv := wsEcho(t, func(req rpc.Request) json.RawMessage {
		return json.RawMessage(`"` + req.Method + `"`)
	})
	defer srv.Close()

	c := rpc.NewWSClient(wsURL(srv), log.NewNopLogger())
	defer c.Close()

	var result string
	require.NoError(t, c.Call(context.Background(), "getblockheight", nil, &result))
	require.Equal(t, "getblockheight", result)
}

func TestWSClientConcurrentCallsMatchByID(t *testing.T) {
	srv := wsEcho(t, func(req rpc.Request) json.RawMessage {
		// answer out of order to force id-based matching
		time.Sleep(time.Duration(req.ID%3) * 10 * time.Millisecond)
		b, _ := json.Marshal(req.Params)
		return b
	})
	defer srv.Close()

	c := rpc.NewWSClient(wsURL(srv), log.NewNopLogger())
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var result int
			err := c.Call(context.Background(), "echo", i, &result)
			require.NoError(t, err)
			require.Equal(t, i, result)
		}(i)
	}
	wg.Wait()
}

func TestWSClientErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		var req rpc.Request
		require.NoError(t, conn.ReadJSON(&req))
		id := req.ID
		_ = conn.WriteJSON(rpc.Response{
			JSONRPC: "2.0",
			ID:      &id,
			Error:   &rpc.Error{Code: -32601, Message: "method not found"},
		})
	}))
	defer srv.Close()

	c := rpc.NewWSClient(wsURL(srv), log.NewNopLogger())
	defer c.Close()

	err := c.Call(context.Background(), "bogus", nil, nil)
	var rpcErr *rpc.Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, -32601, rpcErr.Code)
}

func TestWSClientPushEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		var req rpc.Request
		require.NoError(t, conn.ReadJSON(&req))
		// a push carries no id
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","method":"event","params":{"caller":{}}}`))
		id := req.ID
		_ = conn.WriteJSON(rpc.Response{JSONRPC: "2.0", ID: &id, Result: json.RawMessage(`true`)})
		// keep the connection open until the client hangs up
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := rpc.NewWSClient(wsURL(srv), log.NewNopLogger())
	defer c.Close()

	events := make(chan rpc.Event, 8)
	c.Subscribe(events)

	var ok bool
	require.NoError(t, c.Call(context.Background(), "evmsubscribe", nil, &ok))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == rpc.EventMessage {
				require.Contains(t, string(ev.Message), `"method":"event"`)
				return
			}
		case <-deadline:
			t.Fatal("push event never arrived")
		}
	}
}

func TestWSClientDisconnectFailsInFlight(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		var req rpc.Request
		require.NoError(t, conn.ReadJSON(&req))
		// hang up without answering
		conn.Close()
	}))
	defer srv.Close()

	c := rpc.NewWSClient(wsURL(srv), log.NewNopLogger())
	defer c.Close()

	err := c.Call(context.Background(), "never-answered", nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection closed")
}

func TestWSClientCallAfterClose(t *testing.T) {
	srv := wsEcho(t, func(rpc.Request) json.RawMessage { return json.RawMessage(`true`) })
	defer srv.Close()

	c := rpc.NewWSClient(wsURL(srv), log.NewNopLogger())
	require.NoError(t, c.Call(context.Background(), "ping", nil, nil))
	require.NoError(t, c.Close())

	err := c.Call(context.Background(), "ping", nil, nil)
	require.Error(t, err)
}

func TestWSClientContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		// swallow requests, never answer
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := rpc.NewWSClient(wsURL(srv), log.NewNopLogger())
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Call(ctx, "slow", nil, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
