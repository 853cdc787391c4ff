package types

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// AddressLen is the decoded size of every principal: an ed25519 public key or a derived vault address.
const AddressLen = 32

var ErrInvalidPrincipal = errors.New("invalid principal")

// Principal identifies an owner of custodied value. It is the base58 form of a 32-byte address.
type Principal string

func PrincipalFromPublicKey(pub ed25519.PublicKey) Principal {
	return Principal(base58.Encode(pub))
}

// Validate checks that p decodes to a 32-byte address.
func (p Principal) Validate() error {
	if p == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPrincipal)
	}
	raw, err := base58.Decode(string(p))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPrincipal, err)
	}
	if len(raw) != AddressLen {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPrincipal, AddressLen, len(raw))
	}
	return nil
}

// PublicKey decodes p as an ed25519 public key.
func (p Principal) PublicKey() (ed25519.PublicKey, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	raw, _ := base58.Decode(string(p))
	return ed25519.PublicKey(raw), nil
}

func (p Principal) String() string {
	return string(p)
}

// VaultPrincipal derives the custody identity a vault uses for its own holding.
// No private key exists for it; only the vault ledger presents it as an authority.
func VaultPrincipal(id VaultID) Principal {
	sum := sha256.Sum256([]byte("vault:" + id.String()))
	return Principal(base58.Encode(sum[:]))
}
