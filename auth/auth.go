// Package auth is the identity substrate: it turns a signed request into an
// AuthorizedPrincipal that the vault ledger trusts verbatim.
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/mezonai/vault/types"
)

const (
	OpInitialize = "initialize"
	OpDeposit    = "deposit"
	OpWithdraw   = "withdraw"
)

// Limits to prevent DoS via oversized inputs
const maxSignatureBase58Len = 128

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidSigner    = errors.New("invalid signer")
	ErrInvalidKey       = errors.New("invalid private key")
)

// AuthorizedPrincipal is an identity whose signature has been verified.
// The zero value is not authorized.
type AuthorizedPrincipal struct {
	principal types.Principal
}

func (a AuthorizedPrincipal) Principal() types.Principal {
	return a.principal
}

func (a AuthorizedPrincipal) IsZero() bool {
	return a.principal == ""
}

func (a AuthorizedPrincipal) String() string {
	return string(a.principal)
}

// Request is the signed envelope of one vault operation.
type Request struct {
	Op        string          `json:"op"`
	Vault     string          `json:"vault,omitempty"`
	Subject   string          `json:"subject,omitempty"` // vault name for initialize, recipient for withdraw
	Amount    uint64          `json:"amount"`
	Timestamp uint64          `json:"timestamp"`
	Nonce     uint64          `json:"nonce"`
	Signer    types.Principal `json:"signer"`
	Signature string          `json:"signature,omitempty"`
}

func (r *Request) Serialize() []byte {
	metadata := fmt.Sprintf(
		"%s|%s|%s|%d|%d|%d|%s",
		r.Op, r.Vault, r.Subject, r.Amount, r.Timestamp, r.Nonce, r.Signer,
	)
	return []byte(metadata)
}

// Sign fills Signer and Signature from privateKey.
func Sign(r *Request, privateKey ed25519.PrivateKey) error {
	if len(privateKey) != ed25519.PrivateKeySize {
		return ErrInvalidKey
	}
	r.Signer = types.PrincipalFromPublicKey(privateKey.Public().(ed25519.PublicKey))
	sig := ed25519.Sign(privateKey, r.Serialize())
	r.Signature = base58.Encode(sig)
	return nil
}

// Verify checks the request signature against its signer.
func Verify(r *Request) (AuthorizedPrincipal, error) {
	if r.Signature == "" {
		return AuthorizedPrincipal{}, ErrMissingSignature
	}
	if len(r.Signature) > maxSignatureBase58Len {
		return AuthorizedPrincipal{}, fmt.Errorf("%w: signature too large", ErrInvalidSignature)
	}

	pub, err := r.Signer.PublicKey()
	if err != nil {
		return AuthorizedPrincipal{}, fmt.Errorf("%w: %v", ErrInvalidSigner, err)
	}

	sig, err := base58.Decode(r.Signature)
	if err != nil {
		return AuthorizedPrincipal{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !ed25519.Verify(pub, r.Serialize(), sig) {
		return AuthorizedPrincipal{}, ErrInvalidSignature
	}

	return AuthorizedPrincipal{principal: r.Signer}, nil
}

// NewNonce returns a random nonce so that two otherwise identical requests sign differently.
func NewNonce() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("failed to read nonce: %w", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// GenerateKey returns a fresh keypair and its address.
func GenerateKey() (types.Principal, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", nil, err
	}
	return types.PrincipalFromPublicKey(pub), priv, nil
}

func AddressFromPublicKey(pub ed25519.PublicKey) types.Principal {
	return types.PrincipalFromPublicKey(pub)
}

// AddressFromPrivateKey returns the address a key signs as.
func AddressFromPrivateKey(privateKey ed25519.PrivateKey) types.Principal {
	return types.PrincipalFromPublicKey(privateKey.Public().(ed25519.PublicKey))
}

// pkcs8Ed25519Len is a DER PKCS#8 ed25519 key: a 16-byte header followed by the seed.
const pkcs8Ed25519Len = 48

// ParsePrivateKey accepts a hex seed, a hex PKCS#8 key or a hex 64-byte private key.
func ParsePrivateKey(privKeyStr string) (ed25519.PrivateKey, error) {
	privBytes, err := hex.DecodeString(strings.TrimSpace(privKeyStr))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	switch len(privBytes) {
	case ed25519.SeedSize, pkcs8Ed25519Len:
		return ed25519.NewKeyFromSeed(privBytes[len(privBytes)-ed25519.SeedSize:]), nil
	case ed25519.PrivateKeySize:
		return ed25519.NewKeyFromSeed(privBytes[:ed25519.SeedSize]), nil
	default:
		return nil, fmt.Errorf("%w: unexpected length %d", ErrInvalidKey, len(privBytes))
	}
}

// LoadPrivateKey reads a key file written by SavePrivateKey.
func LoadPrivateKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePrivateKey(string(data))
}

// SavePrivateKey writes the hex seed of privateKey with owner-only permissions.
func SavePrivateKey(path string, privateKey ed25519.PrivateKey) error {
	return os.WriteFile(path, []byte(hex.EncodeToString(privateKey.Seed())), 0o600)
}
