package rpc

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"marketescrow/core"
	"marketescrow/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	limiterIdleTTL  = 10 * time.Minute
	requestIDHeader = "X-Request-ID"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
	codeInvalidSig     = 6019
)

// ServerConfig controls the listener and the request policies.
type ServerConfig struct {
	// AuthToken gates operator methods. Empty disables them.
	AuthToken         string
	RateLimit         float64 // requests per second per client, 0 disables
	RateBurst         int
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	// AllowedOrigins lists browser origins admitted by CORS.
	AllowedOrigins []string
	// TrustedProxies lists the peer addresses or CIDR ranges whose
	// X-Forwarded-For header is honoured. Empty ignores the header.
	TrustedProxies []string
	Logger         *slog.Logger
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Server struct {
	node   *core.Node
	cfg    ServerConfig
	logger *slog.Logger

	trusted []netip.Prefix

	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

func NewServer(node *core.Node, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "rpc"))
	trusted, err := ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		logger.Warn("ignoring trusted proxies", slog.Any("error", err))
		trusted = nil
	}
	return &Server{
		node:     node,
		cfg:      cfg,
		logger:   logger,
		trusted:  trusted,
		limiters: make(map[string]*limiterEntry),
	}
}

// ParseTrustedProxies accepts bare addresses and CIDR ranges.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Handler returns the instrumented router serving /rpc, /healthz and
// /metrics.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(requestID)
	router.Use(cors(s.cfg.AllowedOrigins))
	router.Post("/", s.handle)
	router.Post("/rpc", s.handle)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Handle("/metrics", promhttp.Handler())
	return otelhttp.NewHandler(router, "rpc")
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type ctxKey int

const requestIDKey ctxKey = iota

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// RequestIDFrom returns the request id assigned by the router.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

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
}

// statusError carries the HTTP status alongside the JSON-RPC error.
type statusError struct {
	status int
	rpc    *RPCError
}

func (e *statusError) Error() string { return e.rpc.Message }

func invalidParams(format string, args ...interface{}) error {
	return &statusError{status: http.StatusBadRequest, rpc: &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: fmt.Sprintf(format, args...)}}
}

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

type handlerFunc func(s *Server, r *http.Request, req *RPCRequest) (interface{}, error)

type method struct {
	module   string
	handler  handlerFunc
	operator bool
}

var methods = map[string]method{
	"escrow_create":          {module: core.ModuleEscrow, handler: (*Server).escrowCreate},
	"escrow_fund":            {module: core.ModuleEscrow, handler: (*Server).escrowFund},
	"escrow_markShipped":     {module: core.ModuleEscrow, handler: (*Server).escrowMarkShipped},
	"escrow_confirmDelivery": {module: core.ModuleEscrow, handler: (*Server).escrowConfirmDelivery},
	"escrow_dispute":         {module: core.ModuleEscrow, handler: (*Server).escrowDispute},
	"escrow_cancel":          {module: core.ModuleEscrow, handler: (*Server).escrowCancel},
	"escrow_resolve":         {module: core.ModuleEscrow, handler: (*Server).escrowResolve},
	"escrow_get":             {module: core.ModuleEscrow, handler: (*Server).escrowGet},
	"escrow_custodyAddress":  {module: core.ModuleEscrow, handler: (*Server).escrowCustodyAddress},
	"escrow_listByParty":     {module: core.ModuleEscrow, handler: (*Server).escrowListByParty},

	"marketplace_initialize": {module: core.ModuleMarketplace, handler: (*Server).marketplaceInitialize},
	"marketplace_setPaused":  {module: core.ModuleMarketplace, handler: (*Server).marketplaceSetPaused},
	"marketplace_get":        {module: core.ModuleMarketplace, handler: (*Server).marketplaceGet},
	"product_create":         {module: core.ModuleMarketplace, handler: (*Server).productCreate},
	"product_update":         {module: core.ModuleMarketplace, handler: (*Server).productUpdate},
	"product_purchase":       {module: core.ModuleMarketplace, handler: (*Server).productPurchase},
	"product_get":            {module: core.ModuleMarketplace, handler: (*Server).productGet},

	"reputation_initialize": {module: core.ModuleReputation, handler: (*Server).reputationInitialize},
	"reputation_review":     {module: core.ModuleReputation, handler: (*Server).reputationReview},
	"reputation_verify":     {module: core.ModuleReputation, handler: (*Server).reputationVerify},
	"reputation_get":        {module: core.ModuleReputation, handler: (*Server).reputationGet},

	"token_openHolding": {module: core.ModuleBank, handler: (*Server).tokenOpenHolding},
	"balance_get":       {module: core.ModuleBank, handler: (*Server).balanceGet},
	"account_nonce":     {module: core.ModuleBank, handler: (*Server).accountNonce},
	"events_list":       {module: "events", handler: (*Server).eventsList},
	"admin_credit":      {module: core.ModuleBank, handler: (*Server).adminCredit, operator: true},
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
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
	m, ok := methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}

	status := http.StatusOK
	defer func() {
		observability.ModuleMetrics().Observe(m.module, req.Method, status, time.Since(start))
	}()

	if !s.allowSource(s.clientSource(r), time.Now()) {
		observability.ModuleMetrics().RecordThrottle(m.module, "rate_limit")
		status = http.StatusTooManyRequests
		writeError(w, status, req.ID, codeRateLimited, "rate limit exceeded", nil)
		return
	}
	if m.operator {
		if authErr := s.requireAuth(r); authErr != nil {
			status = http.StatusUnauthorized
			writeError(w, status, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}

	result, err := m.handler(s, r, req)
	if err != nil {
		var rpcErr *RPCError
		status, rpcErr = toRPCError(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("rpc handler failed",
				slog.String("method", req.Method),
				slog.String("request_id", RequestIDFrom(r.Context())),
				slog.String("error", err.Error()))
		}
		writeError(w, status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.cfg.AuthToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) allowSource(source string, now time.Time) bool {
	if s.cfg.RateLimit <= 0 {
		return true
	}
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(s.limiters, key)
		}
	}
	entry, ok := s.limiters[source]
	if !ok {
		burst := s.cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(s.cfg.RateLimit), burst)}
		s.limiters[source] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// clientSource keys the rate limiter. X-Forwarded-For is only read when the
// peer is a trusted proxy, walking right to left past further trusted hops.
func (s *Server) clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !s.isTrusted(host) {
		return host
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !s.isTrusted(hop) {
			return hop
		}
		host = hop
	}
	return host
}

func (s *Server) isTrusted(host string) bool {
	if len(s.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range s.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
