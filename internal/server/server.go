package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"depositdapp/internal/config"
	"depositdapp/internal/hmacauth"
	"depositdapp/internal/idempotency"
	"depositdapp/internal/session"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Session is the part of the wallet session the API drives.
type Session interface {
	State() session.State
	Connect(ctx context.Context) error
	ReadBalances(ctx context.Context) (session.Snapshot, error)
	Mint(ctx context.Context, account common.Address) error
	Deposit(ctx context.Context, account common.Address, amount string) error
	DismissError()
	Subscribe(l session.Listener) (cancel func())
}

// maxBodyBytes caps JSON request bodies; payloads are an account and an amount.
const maxBodyBytes int64 = 4 << 10

type Server struct {
	cfg         *config.AppConfig
	session     Session
	store       idempotency.Store
	hmac        *hmacauth.Verifier
	httpServer  *http.Server
	metrics     *metricsRegistry
	log         *zap.Logger
	rpcHealthFn func(context.Context) error
	unsubscribe func()
}

func NewServer(cfg *config.AppConfig, sess Session, store idempotency.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	metrics := newMetricsRegistry()

	s := &Server{
		cfg:     cfg,
		session: sess,
		store:   store,
		hmac: &hmacauth.Verifier{
			Secret:       cfg.Service.HMACSecret,
			MaxSkew:      cfg.Service.HMACClockSkew,
			MaxBodyBytes: maxBodyBytes,
		},
		metrics: metrics,
		log:     log,
	}
	s.unsubscribe = sess.Subscribe(metrics.observe)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/session", s.handleSession)
	mux.HandleFunc("/api/v1/balances", s.handleBalances)
	mux.Handle("/api/v1/connect", s.hmac.Middleware(http.HandlerFunc(s.handleConnect)))
	mux.Handle("/api/v1/mint", s.hmac.Middleware(http.HandlerFunc(s.handleMint)))
	mux.Handle("/api/v1/deposits", s.hmac.Middleware(http.HandlerFunc(s.handleDeposit)))
	mux.Handle("/api/v1/error", s.hmac.Middleware(http.HandlerFunc(s.handleDismissError)))
	mux.Handle("/api/v1/metrics", metrics.handler())
	mux.HandleFunc("/api/v1/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Service.HTTPPort),
		Handler:           requestIDMiddleware(mux),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

// SetRPCHealth installs the node liveness probe used by /api/v1/health.
func (s *Server) SetRPCHealth(fn func(context.Context) error) {
	s.rpcHealthFn = fn
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.log.Info("API listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	return s.httpServer.Shutdown(ctx)
}

type mintRequest struct {
	Account string `json:"account"`
}

type depositRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type operationResponse struct {
	Status string        `json:"status"`
	State  session.State `json:"state"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap, err := s.session.ReadBalances(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.session.Connect(r.Context()); err != nil && !s.session.State().Session.Connected {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, operationResponse{Status: "connected", State: s.session.State()})
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.replay(w, r, "mint") {
		return
	}

	var payload mintRequest
	if !decodeOptional(w, r, &payload) {
		return
	}
	account, err := s.resolveAccount(payload.Account)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.session.Mint(r.Context(), account); err != nil {
		s.writeError(w, err)
		return
	}
	s.respondAndRemember(w, r, "mint", operationResponse{Status: "confirmed", State: s.session.State()})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.replay(w, r, "deposits") {
		return
	}

	var payload depositRequest
	if !decodeOptional(w, r, &payload) {
		return
	}
	account, err := s.resolveAccount(payload.Account)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	amount := strings.TrimSpace(payload.Amount)
	if amount == "" {
		amount = s.cfg.Session.DepositAmount
	}

	if err := s.session.Deposit(r.Context(), account, amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.respondAndRemember(w, r, "deposits", operationResponse{Status: "confirmed", State: s.session.State()})
}

func (s *Server) handleDismissError(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.session.DismissError()
	w.WriteHeader(http.StatusNoContent)
}

// resolveAccount defaults to the session account.
func (s *Server) resolveAccount(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.session.State().Session.Account, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, errors.New("invalid account address")
	}
	return common.HexToAddress(raw), nil
}

func idempotencyKey(r *http.Request, route string) string {
	key := strings.TrimSpace(r.Header.Get("X-Idempotency-Key"))
	if key == "" {
		return ""
	}
	return route + ":" + key
}

// replay writes a stored response for a repeated idempotency key.
func (s *Server) replay(w http.ResponseWriter, r *http.Request, route string) bool {
	key := idempotencyKey(r, route)
	if key == "" {
		return false
	}
	existing, err := s.store.Get(r.Context(), key)
	if err != nil || existing == nil {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(existing.StatusCode)
	_, _ = w.Write(existing.Response)
	s.metrics.incReplay(route)
	return true
}

func (s *Server) respondAndRemember(w http.ResponseWriter, r *http.Request, route string, body any) {
	b, _ := json.Marshal(body)

	if key := idempotencyKey(r, route); key != "" {
		now := time.Now()
		record := idempotency.Record{
			StatusCode: http.StatusOK,
			Response:   b,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.cfg.Service.IdempotencyWindow),
		}
		if err := s.store.Save(r.Context(), key, record); err != nil {
			s.log.Warn("idempotency save failed", zap.String("key", key), zap.Error(err))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNoProvider):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotConnected), errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrConnection),
		errors.Is(err, session.ErrBalanceRead),
		errors.Is(err, session.ErrTransaction):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overallHealthy := true

	rpcInfo := struct {
		Connected bool    `json:"connected"`
		LatencyMs float64 `json:"latency_ms"`
		Error     string  `json:"error,omitempty"`
	}{}

	if s.rpcHealthFn != nil {
		start := time.Now()
		rpcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.rpcHealthFn(rpcCtx); err != nil {
			rpcInfo.Error = err.Error()
			overallHealthy = false
		} else {
			rpcInfo.Connected = true
			rpcInfo.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
		}
	} else {
		rpcInfo.Error = "no provider"
		overallHealthy = false
	}

	st := s.session.State()
	if !st.Session.Connected {
		overallHealthy = false
	}

	status := "healthy"
	if !overallHealthy {
		status = "degraded"
	}

	resp := struct {
		Status    string      `json:"status"`
		RPC       interface{} `json:"rpc"`
		Wallet    interface{} `json:"wallet"`
		PendingTx string      `json:"pending_tx,omitempty"`
	}{
		Status:    status,
		RPC:       rpcInfo,
		Wallet:    st.Session,
		PendingTx: st.PendingTx,
	}

	code := http.StatusOK
	if !overallHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeOptional accepts an empty body as the zero payload. On failure it
// writes the response and returns false.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return true
	case errors.As(err, &tooLarge):
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
	default:
		http.Error(w, "invalid json payload", http.StatusBadRequest)
	}
	return false
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-Id") == "" {
			r.Header.Set("X-Request-Id", fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		next.ServeHTTP(w, r)
	})
}
