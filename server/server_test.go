package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/dappchain/evmbridge/client"
	"github.com/dappchain/evmbridge/provider"
	"github.com/dappchain/evmbridge/rpc"
)

// stubTransport answers getblockheight and nothing else.
type stubTransport struct{}

func newStubTransport() *stubTransport { return &stubTransport{} }

func (s *stubTransport) Call(_ context.Context, method string, _, result interface{}) error {
	if method != "getblockheight" {
		return &rpc.Error{Code: -32601, Message: "method not found: " + method}
	}
	return json.Unmarshal([]byte(`7`), result)
}

func (s *stubTransport) Subscribe(chan<- rpc.Event)   {}
func (s *stubTransport) Unsubscribe(chan<- rpc.Event) {}
func (s *stubTransport) URL() string                  { return "stub://" }
func (s *stubTransport) Close() error                 { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	c := client.NewClient(log.NewNopLogger(), "default", newStubTransport(), nil)
	t.Cleanup(func() { c.Disconnect() })
	p := provider.NewProvider(log.NewNopLogger(), c, nil)
	return NewServer(log.NewNopLogger(), p, DefaultConfig())
}

func postRPC(t *testing.T, srv *Server, body string) map[string]json.RawMessage {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleRPC(rec, req)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleRPCSuccess(t *testing.T) {
	srv := newTestServer(t)
	resp := postRPC(t, srv, `{"jsonrpc":"2.0","id":3,"method":"eth_blockNumber","params":[]}`)
	require.Equal(t, `"0x7"`, string(resp["result"]))
	require.Equal(t, `3`, string(resp["id"]))
}

func TestHandleRPCUnsupportedMethod(t *testing.T) {
	srv := newTestServer(t)
	resp := postRPC(t, srv, `{"jsonrpc":"2.0","id":5,"method":"eth_protocolVersion","params":[]}`)

	var rpcErr jsonRPCError
	require.NoError(t, json.Unmarshal(resp["error"], &rpcErr))
	require.Equal(t, codeMethodNotFound, rpcErr.Code)
	require.Contains(t, rpcErr.Message, "eth_protocolVersion")
	// the error response mirrors the request id
	require.Equal(t, `5`, string(resp["id"]))
}

func TestHandleRPCEmptyBody(t *testing.T) {
	srv := newTestServer(t)
	resp := postRPC(t, srv, "")

	var rpcErr jsonRPCError
	require.NoError(t, json.Unmarshal(resp["error"], &rpcErr))
	require.Equal(t, codeInvalidRequest, rpcErr.Code)
	require.Equal(t, `null`, string(resp["id"]))
}

func TestHandleRPCServerError(t *testing.T) {
	srv := newTestServer(t)
	// eth_getCode reaches the stub transport, which rejects the method
	resp := postRPC(t, srv, `{"jsonrpc":"2.0","id":1,"method":"eth_getCode","params":["0x7cb61d4117ae31a12e393a1cfa3bac666481d02e"]}`)

	var rpcErr jsonRPCError
	require.NoError(t, json.Unmarshal(resp["error"], &rpcErr))
	require.Equal(t, codeServerError, rpcErr.Code)
}

func TestHandleWSRequestResponse(t *testing.T) {
	srv := newTestServer(t)
	httpSrv := httptest.NewServer(http.HandlerFunc(srv.handleWS))
	defer httpSrv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(httpSrv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","id":2,"method":"eth_blockNumber","params":[]}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(msg, &resp))
	require.Equal(t, `"0x7"`, string(resp["result"]))
}
