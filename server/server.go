// Package server exposes a provider over HTTP and WebSocket endpoints that
// speak plain JSON-RPC 2.0, so stock Ethereum tooling can point at it.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"cosmossdk.io/log"

	"github.com/dappchain/evmbridge/provider"
)

// JSON-RPC 2.0 error codes.
const (
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeServerError    = -32000
)

// Config holds the listener settings of the bridge server.
type Config struct {
	// ListenAddr is the address the HTTP and WebSocket endpoints bind to.
	ListenAddr string

	HTTPTimeout     time.Duration
	HTTPIdleTimeout time.Duration

	// AllowUnsafeCORS switches from the default CORS policy to allow-all.
	AllowUnsafeCORS bool
}

// DefaultConfig returns the listener settings used when nothing is supplied.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      "127.0.0.1:8545",
		HTTPTimeout:     30 * time.Second,
		HTTPIdleTimeout: 120 * time.Second,
	}
}

// Server serves one provider on "/" (HTTP POST) and "/ws" (WebSocket).
type Server struct {
	logger   log.Logger
	provider *provider.Provider
	config   Config
	upgrader websocket.Upgrader
}

// NewServer wires a server to the provider it fronts.
func NewServer(logger log.Logger, p *provider.Provider, config Config) *Server {
	return &Server{
		logger:   logger.With("module", "server"),
		provider: p,
		config:   config,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start binds the listener and runs the server on the group until the
// context is canceled, then shuts it down gracefully.
func (s *Server) Start(ctx context.Context, g *errgroup.Group) {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRPC).Methods("POST")
	r.HandleFunc("/ws", s.handleWS).Methods("GET")

	handlerWithCors := cors.Default()
	if s.config.AllowUnsafeCORS {
		handlerWithCors = cors.AllowAll()
	}

	httpSrv := &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           handlerWithCors.Handler(r),
		ReadHeaderTimeout: s.config.HTTPTimeout,
		ReadTimeout:       s.config.HTTPTimeout,
		WriteTimeout:      s.config.HTTPTimeout,
		IdleTimeout:       s.config.HTTPIdleTimeout,
	}

	g.Go(func() error {
		s.logger.Info("starting JSON-RPC server", "address", s.config.ListenAddr)
		errCh := make(chan error)
		go func() {
			errCh <- httpSrv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			s.logger.Info("stopping JSON-RPC server", "address", s.config.ListenAddr)
			if err := httpSrv.Shutdown(context.Background()); err != nil {
				s.logger.Error("failed to shutdown JSON-RPC server", "error", err.Error())
			}
			return nil
		case err := <-errCh:
			if err == http.ErrServerClosed {
				return nil
			}
			s.logger.Error("failed to start JSON-RPC server", "error", err.Error())
			return err
		}
	})
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   jsonRPCError    `json:"error"`
}

func errorCode(err error) int {
	if errors.Is(err, provider.ErrUnsupportedMethod) {
		return codeMethodNotFound
	}
	return codeServerError
}

func errorBody(id json.RawMessage, code int, msg string) []byte {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	body, _ := json.Marshal(errorResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   jsonRPCError{Code: code, Message: msg},
	})
	return body
}

// requestID pulls the id out of a raw request so error responses can mirror
// it; a request too broken to parse answers with a null id.
func requestID(raw []byte) json.RawMessage {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil
	}
	return probe.ID
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		w.Write(errorBody(nil, codeInvalidRequest, "empty request body"))
		return
	}

	resp, err := s.provider.Send(r.Context(), body)
	if err != nil {
		w.Write(errorBody(requestID(body), errorCode(err), err.Error()))
		return
	}
	w.Write(resp)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err.Error())
		return
	}
	s.logger.Debug("websocket client connected", "remote", conn.RemoteAddr().String())

	// one writer at a time: responses and pushed notifications interleave
	var writeMu sync.Mutex
	write := func(payload []byte) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.logger.Debug("websocket write failed", "error", err.Error())
		}
	}

	cbID := s.provider.RegisterDataCallback(func(notification json.RawMessage) {
		write(notification)
	})
	defer s.provider.RemoveDataCallback(cbID)
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read failed", "error", err.Error())
			}
			return
		}
		resp, err := s.provider.Send(r.Context(), msg)
		if err != nil {
			write(errorBody(requestID(msg), errorCode(err), err.Error()))
			continue
		}
		write(resp)
	}
}
