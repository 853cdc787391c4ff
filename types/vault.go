package types

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// MaxNameLen is the byte budget for a vault name: 32 bytes of record space minus a 4-byte length prefix.
const MaxNameLen = 28

var (
	ErrEmptyName    = errors.New("vault name is empty")
	ErrNameTooLong  = fmt.Errorf("vault name exceeds %d bytes", MaxNameLen)
	ErrInvalidVault = errors.New("invalid vault id")
)

// VaultID is the opaque handle of a vault record.
type VaultID uuid.UUID

func NewVaultID() VaultID {
	return VaultID(uuid.Must(uuid.NewV7()))
}

func ParseVaultID(s string) (VaultID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return VaultID{}, fmt.Errorf("%w: %v", ErrInvalidVault, err)
	}
	return VaultID(id), nil
}

func (id VaultID) String() string {
	return uuid.UUID(id).String()
}

func (id VaultID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id VaultID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *VaultID) UnmarshalText(data []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(data)
}

// Vault is the persistent record of one custody balance.
type Vault struct {
	ID           VaultID   `json:"id"`
	Admin        Principal `json:"admin"`
	Name         string    `json:"name"`
	TotalBalance uint64    `json:"total_balance"`
}

// Holding returns the principal owning the vault's custody holding.
func (v *Vault) Holding() Principal {
	return VaultPrincipal(v.ID)
}

func (v *Vault) Clone() *Vault {
	cp := *v
	return &cp
}

func ValidateName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > MaxNameLen {
		return ErrNameTooLong
	}
	return nil
}
