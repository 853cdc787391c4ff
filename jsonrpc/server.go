package jsonrpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/mezonai/vault/auth"
	"github.com/mezonai/vault/custody"
	vaulterrors "github.com/mezonai/vault/errors"
	"github.com/mezonai/vault/exception"
	"github.com/mezonai/vault/logx"
	"github.com/mezonai/vault/ratelimit"
	"github.com/mezonai/vault/security/validation"
	"github.com/mezonai/vault/service"
	"github.com/mezonai/vault/types"
	"github.com/mezonai/vault/vault"
)

// --- Params/Results ---

type getVaultParams struct {
	VaultID string `json:"vault_id"`
}

type vaultResult struct {
	*types.Vault
	Holding types.Principal `json:"holding"`
}

type getBalanceParams struct {
	Address string `json:"address"`
}

type getBalanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func newVaultResult(v *types.Vault) *vaultResult {
	return &vaultResult{Vault: v, Holding: v.Holding()}
}

// --- Server ---

// defaultReplayWindow bounds replay memory when the clock skew check is disabled
const defaultReplayWindow = 24 * time.Hour

type Server struct {
	addr         string
	ledger       *vault.Ledger
	custodian    *custody.Ledger
	limiter      *ratelimit.Limiter
	maxClockSkew time.Duration
	replay       auth.ReplayGuard
	health       *service.HealthService
	corsConfig   CORSConfig
	now          func() time.Time

	httpServer *http.Server
	bridge     rpcBridge
}

type rpcBridge interface {
	http.Handler
	Close() error
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// NewServer builds a JSON-RPC front for ledger. limiter may be nil to disable rate limiting;
// requests whose timestamp is further than maxClockSkew from now are rejected.
func NewServer(addr string, ledger *vault.Ledger, custodian *custody.Ledger, limiter *ratelimit.Limiter, maxClockSkew time.Duration) *Server {
	var lister service.VaultLister
	if ledger != nil {
		lister = ledger
	}
	return &Server{
		addr:         addr,
		ledger:       ledger,
		custodian:    custodian,
		limiter:      limiter,
		maxClockSkew: maxClockSkew,
		replay:       auth.NewMemoryReplayGuard(),
		health:       service.NewHealthService(lister),
		now:          time.Now,
	}
}

// SetReplayGuard replaces the in-process guard, e.g. with one shared through redis
func (s *Server) SetReplayGuard(guard auth.ReplayGuard) {
	s.replay = guard
}

// replayWindow covers every instant at which a request's timestamp is accepted
func (s *Server) replayWindow() time.Duration {
	if s.maxClockSkew <= 0 {
		return defaultReplayWindow
	}
	return 2 * s.maxClockSkew
}

// SetCORSConfig allows configuring CORS settings
func (s *Server) SetCORSConfig(config CORSConfig) {
	s.corsConfig = config
}

// SetStoreDirectory makes health.check report disk usage of dir
func (s *Server) SetStoreDirectory(dir string) {
	s.health.SetStoreDirectory(dir)
}

// Handler returns the HTTP handler serving JSON-RPC on every path
func (s *Server) Handler() http.Handler {
	if s.bridge == nil {
		s.bridge = jhttp.NewBridge(s.buildMethodMap(), &jhttp.BridgeOptions{Server: &jrpc2.ServerOptions{}})
	}
	jh := s.bridge

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if s.limiter != nil {
			if err := s.limiter.AllowIP(extractClientIPFromRequest(r)); err != nil {
				logx.Warn("RPC", err.Error())
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(vaulterrors.NewError(vaulterrors.ErrCodeRateLimited, "").Error()))
				return
			}
		}
		r.Body = http.MaxBytesReader(w, r.Body, validation.DefaultRequestBodyLimit)
		jh.ServeHTTP(w, r)
	})
}

// Start serves on addr in the background. mux may carry extra routes such as /metrics.
func (s *Server) Start(mux *http.ServeMux) {
	if mux == nil {
		mux = http.NewServeMux()
	}
	mux.Handle("/", s.Handler())
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	exception.SafeGoWithPanic("jsonrpc-server", func() {
		logx.Info("RPC", "JSON-RPC server listening on ", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Error("RPC", "JSON-RPC server stopped: ", err)
		}
	})
}

func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.bridge != nil {
		_ = s.bridge.Close()
	}
	return err
}

// Build jrpc2 method map
func (s *Server) buildMethodMap() handler.Map {
	return handler.Map{
		MethodVaultInitialize: handler.New(func(ctx context.Context, p auth.Request) (*vaultResult, error) {
			admin, err := s.authorize(ctx, &p, auth.OpInitialize)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			v, err := s.ledger.Initialize(ctx, admin, p.Subject)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return newVaultResult(v), nil
		}),
		MethodVaultDeposit: handler.New(func(ctx context.Context, p auth.Request) (*vaultResult, error) {
			depositor, err := s.authorize(ctx, &p, auth.OpDeposit)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			id, err := types.ParseVaultID(p.Vault)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			v, err := s.ledger.Deposit(ctx, id, depositor, p.Amount)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return newVaultResult(v), nil
		}),
		MethodVaultWithdraw: handler.New(func(ctx context.Context, p auth.Request) (*vaultResult, error) {
			caller, err := s.authorize(ctx, &p, auth.OpWithdraw)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			id, err := types.ParseVaultID(p.Vault)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			v, err := s.ledger.Withdraw(ctx, id, caller, types.Principal(p.Subject), p.Amount)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return newVaultResult(v), nil
		}),
		MethodVaultGet: handler.New(func(ctx context.Context, p getVaultParams) (*vaultResult, error) {
			id, err := types.ParseVaultID(p.VaultID)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			v, err := s.ledger.GetVault(id)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return newVaultResult(v), nil
		}),
		MethodVaultList: handler.New(func(ctx context.Context) ([]*vaultResult, error) {
			vaults, err := s.ledger.ListVaults()
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			out := make([]*vaultResult, 0, len(vaults))
			for _, v := range vaults {
				out = append(out, newVaultResult(v))
			}
			return out, nil
		}),
		MethodCustodyGetBalance: handler.New(func(ctx context.Context, p getBalanceParams) (*getBalanceResult, error) {
			owner := types.Principal(p.Address)
			if err := owner.Validate(); err != nil {
				return nil, toJRPC2Error(err)
			}
			balance, err := s.custodian.Balance(owner)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return &getBalanceResult{Address: p.Address, Balance: balance.Dec()}, nil
		}),
		MethodHealthCheck: handler.New(func(ctx context.Context) (*service.HealthStatus, error) {
			status, err := s.health.Check(ctx)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return status, nil
		}),
	}
}

// authorize verifies the signed request and applies replay and rate limits
func (s *Server) authorize(ctx context.Context, req *auth.Request, op string) (auth.AuthorizedPrincipal, error) {
	if req.Op != op {
		return auth.AuthorizedPrincipal{}, vaulterrors.NewError(vaulterrors.ErrCodeInvalidRequest, fmt.Sprintf("request op %q does not match method op %q", req.Op, op))
	}
	principal, err := auth.Verify(req)
	if err != nil {
		return auth.AuthorizedPrincipal{}, err
	}
	if s.maxClockSkew > 0 {
		ts := time.UnixMilli(int64(req.Timestamp))
		if skew := s.now().Sub(ts); skew > s.maxClockSkew || skew < -s.maxClockSkew {
			return auth.AuthorizedPrincipal{}, vaulterrors.NewError(vaulterrors.ErrCodeUnauthenticated, "request timestamp is outside the accepted window")
		}
	}
	if s.replay != nil {
		if err := s.replay.Claim(ctx, req, s.replayWindow()); err != nil {
			if errors.Is(err, auth.ErrReplayedRequest) {
				logx.Warn("RPC", fmt.Sprintf("Rejected replayed %s request from %s", req.Op, req.Signer))
				return auth.AuthorizedPrincipal{}, vaulterrors.NewError(vaulterrors.ErrCodeUnauthenticated, err.Error())
			}
			return auth.AuthorizedPrincipal{}, err
		}
	}
	if s.limiter != nil {
		if err := s.limiter.AllowSigner(principal.String()); err != nil {
			return auth.AuthorizedPrincipal{}, vaulterrors.NewError(vaulterrors.ErrCodeRateLimited, err.Error())
		}
	}
	return principal, nil
}

// toJRPC2Error carries the coded error in the JSON-RPC error data
func toJRPC2Error(err error) error {
	if err == nil {
		return nil
	}
	var vaultErr *vaulterrors.VaultError
	if !errors.As(vault.AsVaultError(err), &vaultErr) {
		return jrpc2.Errorf(jrpc2.InternalError, "%s", err.Error())
	}
	return jrpc2.Errorf(rpcCode(vaultErr.Code), "%s", vaulterrors.DefaultMessage(vaultErr.Code)).WithData(vaultErr)
}

// Application error codes live in the implementation-defined -32000..-32099 range
func rpcCode(code vaulterrors.VaultErrorCode) jrpc2.Code {
	switch code {
	case vaulterrors.ErrCodeInvalidRequest, vaulterrors.ErrCodeInvalidAddress,
		vaulterrors.ErrCodeInvalidAmount, vaulterrors.ErrCodeNameTooLong:
		return jrpc2.InvalidParams
	case vaulterrors.ErrCodeUnauthenticated, vaulterrors.ErrCodeUnauthorized:
		return jrpc2.Code(-32001)
	case vaulterrors.ErrCodeVaultNotFound:
		return jrpc2.Code(-32002)
	case vaulterrors.ErrCodeInsufficientBalance, vaulterrors.ErrCodeArithmeticOverflow,
		vaulterrors.ErrCodeArithmeticUnderflow:
		return jrpc2.Code(-32003)
	case vaulterrors.ErrCodeExternalTransferFailed:
		return jrpc2.Code(-32004)
	case vaulterrors.ErrCodeRateLimited:
		return jrpc2.Code(-32005)
	default:
		return jrpc2.InternalError
	}
}

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsConfig.AllowedOrigins) > 0 {
		if s.corsConfig.AllowedOrigins[0] == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			origin := r.Header.Get("Origin")
			for _, allowedOrigin := range s.corsConfig.AllowedOrigins {
				if origin == allowedOrigin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
	}
	if len(s.corsConfig.AllowedMethods) > 0 {
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(s.corsConfig.AllowedMethods, ", "))
	}
	if len(s.corsConfig.AllowedHeaders) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(s.corsConfig.AllowedHeaders, ", "))
	}
	if s.corsConfig.MaxAge > 0 {
		w.Header().Set("Access-Control-Max-Age", strconv.Itoa(s.corsConfig.MaxAge))
	}
}

// --- Env helpers ---

// CORSFromEnv reads CORS_ALLOWED_ORIGINS, CORS_ALLOWED_METHODS, CORS_ALLOWED_HEADERS
// (comma-separated) and CORS_MAX_AGE (seconds). It returns false when none is set.
func CORSFromEnv() (CORSConfig, bool) {
	var maxAge int
	if v, err := strconv.Atoi(os.Getenv("CORS_MAX_AGE")); err == nil {
		maxAge = v
	}
	cfg := CORSConfig{
		AllowedOrigins: splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS")),
		AllowedMethods: splitAndTrim(os.Getenv("CORS_ALLOWED_METHODS")),
		AllowedHeaders: splitAndTrim(os.Getenv("CORS_ALLOWED_HEADERS")),
		MaxAge:         maxAge,
	}
	provided := len(cfg.AllowedOrigins) > 0 || len(cfg.AllowedMethods) > 0 || len(cfg.AllowedHeaders) > 0 || maxAge > 0
	if !provided {
		return CORSConfig{}, false
	}
	return cfg, true
}
