package jsonrpc

import (
	"net"
	"net/http"
	"strings"

	"github.com/mezonai/vault/logx"
)

// JSON-RPC Method name constants
const (
	// Vault methods
	MethodVaultInitialize = "vault.initialize"
	MethodVaultDeposit    = "vault.deposit"
	MethodVaultWithdraw   = "vault.withdraw"
	MethodVaultGet        = "vault.get"
	MethodVaultList       = "vault.list"

	// Custody methods
	MethodCustodyGetBalance = "custody.getbalance"

	// Health methods
	MethodHealthCheck = "health.check"
)

func extractClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		logx.Debug("RPC", "X-Forwarded-For:", xff)
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && net.ParseIP(host) != nil {
		return host
	}
	return "unknown"
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
