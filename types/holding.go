package types

import (
	"github.com/holiman/uint256"
)

// Holding is a custody balance owned by a single principal.
type Holding struct {
	Owner   Principal    `json:"owner"`
	Balance *uint256.Int `json:"balance"`
}

func NewHolding(owner Principal) *Holding {
	return &Holding{Owner: owner, Balance: uint256.NewInt(0)}
}

func (h *Holding) Clone() *Holding {
	cp := &Holding{Owner: h.Owner, Balance: uint256.NewInt(0)}
	if h.Balance != nil {
		cp.Balance.Set(h.Balance)
	}
	return cp
}
