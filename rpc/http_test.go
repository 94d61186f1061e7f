package rpc_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/dappchain/evmbridge/rpc"
)

func TestHTTPClientCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req rpc.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "2.0", req.JSONRPC)
		require.Equal(t, "nonce", req.Method)

		id := req.ID
		_ = json.NewEncoder(w).Encode(rpc.Response{
			JSONRPC: "2.0",
			ID:      &id,
			Result:  json.RawMessage(`12`),
		})
	}))
	defer srv.Close()

	c := rpc.NewHTTPClient(srv.URL, log.NewNopLogger())
	defer c.Close()

	var nonce uint64
	require.NoError(t, c.Call(context.Background(), "nonce", map[string]interface{}{"key": "ab"}, &nonce))
	require.Equal(t, uint64(12), nonce)
}

func TestHTTPClientErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpc.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		id := req.ID
		_ = json.NewEncoder(w).Encode(rpc.Response{
			JSONRPC: "2.0",
			ID:      &id,
			Error:   &rpc.Error{Code: 1, Message: "tx failed"},
		})
	}))
	defer srv.Close()

	c := rpc.NewHTTPClient(srv.URL, log.NewNopLogger())
	defer c.Close()

	err := c.Call(context.Background(), "broadcast_tx_commit", nil, nil)
	var rpcErr *rpc.Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, 1, rpcErr.Code)
}

func TestHTTPClientBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := rpc.NewHTTPClient(srv.URL, log.NewNopLogger())
	defer c.Close()

	err := c.Call(context.Background(), "nonce", nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status 503")
}
