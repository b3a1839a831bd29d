package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"rangestaker/indexer"
	"rangestaker/native/bank"
	"rangestaker/native/pool"
	"rangestaker/native/staker"
	"rangestaker/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeNotFound       = -32004
	codeConflict       = -32009
	codeRateLimited    = -32020
)

var tracer = otel.Tracer("rangestaker/rpc")

// eventLister is the slice of the journal the server reads from.
type eventLister interface {
	List(ctx context.Context, filter indexer.Filter) ([]indexer.EventRecord, error)
}

// Backend bundles the components the server dispatches to.
type Backend struct {
	Engine  *staker.Engine
	Pools   *pool.Registry
	Ledger  *bank.Ledger
	Journal eventLister
}

// ServerConfig carries authentication, throttling and dev switches.
type ServerConfig struct {
	JWTSecret          string
	JWTIssuer          string
	MutationsPerMinute float64
	MutationBurst      int
	DevEnabled         bool
}

type Server struct {
	backend Backend
	auth    *Authenticator
	limiter *callerLimiter
	logger  *slog.Logger
	metrics *metrics.StakerMetrics
	dev     bool
	methods map[string]method
	router  chi.Router
}

// NewServer builds the JSON-RPC server and its routes.
func NewServer(backend Backend, cfg ServerConfig, logger *slog.Logger) (*Server, error) {
	if backend.Engine == nil {
		return nil, errors.New("rpc: staker engine required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	auth, err := NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return nil, err
	}
	s := &Server{
		backend: backend,
		auth:    auth,
		limiter: newCallerLimiter(cfg.MutationsPerMinute, cfg.MutationBurst),
		logger:  logger.With(slog.String("component", "rpc")),
		metrics: metrics.Staker(),
		dev:     cfg.DevEnabled,
	}
	s.methods = s.registerMethods()

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Post("/", s.handle)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Handle("/metrics", promhttp.Handler())
	s.router = router
	return s, nil
}

// Handler returns the instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "stakerd.rpc")
}

// Authenticator exposes the token verifier, used by tooling to mint tokens.
func (s *Server) Authenticator() *Authenticator { return s.auth }

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	status  int
}

func (e *RPCError) Error() string { return e.Message }

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// call carries one decoded request through a handler.
type call struct {
	ctx    context.Context
	req    *RPCRequest
	caller common.Address
}

type handlerFunc func(c *call) (interface{}, error)

type method struct {
	fn       handlerFunc
	mutating bool
	dev      bool
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	failed := true
	defer func() { s.metrics.ObserveRequest(req.Method, failed, time.Since(started)) }()

	m, ok := s.methods[req.Method]
	if !ok || (m.dev && !s.dev) {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}

	ctx, span := tracer.Start(r.Context(), req.Method)
	defer span.End()
	requestID := uuid.NewString()
	span.SetAttributes(attribute.String("rpc.request_id", requestID))

	c := &call{ctx: ctx, req: req}
	if m.mutating {
		caller, authErr := s.auth.Caller(r)
		if authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		if !s.limiter.allow(caller) {
			s.metrics.RecordThrottle(req.Method)
			writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", caller.Hex())
			return
		}
		c.caller = caller
		span.SetAttributes(attribute.String("rpc.caller", caller.Hex()))
	}

	result, err := m.fn(c)
	if m.mutating {
		s.metrics.ObserveOperation(req.Method, err)
	}
	if err != nil {
		rpcErr := toRPCError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, rpcErr.Message)
		if rpcErr.Code == codeServerError {
			s.logger.Error("rpc call failed",
				slog.String("method", req.Method),
				slog.String("requestId", requestID),
				slog.Any("error", err))
		}
		writeError(w, rpcErr.status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	if m.mutating {
		s.logger.Info("rpc mutation applied",
			slog.String("method", req.Method),
			slog.String("caller", c.caller.Hex()),
			slog.String("requestId", requestID))
	}
	failed = false
	writeResult(w, req.ID, result)
}
