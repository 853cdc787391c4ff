package store

import (
	"fmt"

	"github.com/holiman/uint256"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mezonai/vault/jsonx"
	"github.com/mezonai/vault/types"
)

// Field numbers of the persisted records. Never reuse a number.
const (
	vaultFieldID           protowire.Number = 1
	vaultFieldAdmin        protowire.Number = 2
	vaultFieldName         protowire.Number = 3
	vaultFieldTotalBalance protowire.Number = 4

	holdingFieldOwner   protowire.Number = 1
	holdingFieldBalance protowire.Number = 2
)

func encodeVault(v *types.Vault) []byte {
	b := make([]byte, 0, 96)
	b = protowire.AppendTag(b, vaultFieldID, protowire.BytesType)
	b = protowire.AppendString(b, v.ID.String())
	b = protowire.AppendTag(b, vaultFieldAdmin, protowire.BytesType)
	b = protowire.AppendString(b, string(v.Admin))
	b = protowire.AppendTag(b, vaultFieldName, protowire.BytesType)
	b = protowire.AppendString(b, v.Name)
	b = protowire.AppendTag(b, vaultFieldTotalBalance, protowire.VarintType)
	b = protowire.AppendVarint(b, v.TotalBalance)
	return b
}

func decodeVault(data []byte) (*types.Vault, error) {
	// Fallback to JSON for records written by tooling
	if isJSON(data) {
		var v types.Vault
		if err := jsonx.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal vault (json): %w", err)
		}
		return &v, nil
	}

	v := &types.Vault{}
	err := consumeFields(data, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		switch {
		case num == vaultFieldID && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(field)
			if n < 0 {
				return n, nil
			}
			id, err := types.ParseVaultID(s)
			if err != nil {
				return 0, err
			}
			v.ID = id
			return n, nil
		case num == vaultFieldAdmin && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(field)
			v.Admin = types.Principal(s)
			return n, nil
		case num == vaultFieldName && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(field)
			v.Name = s
			return n, nil
		case num == vaultFieldTotalBalance && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(field)
			v.TotalBalance = x
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, field), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal vault (proto): %w", err)
	}
	if v.ID.IsZero() {
		return nil, fmt.Errorf("failed to unmarshal vault (proto): missing id")
	}
	return v, nil
}

func encodeHolding(h *types.Holding) []byte {
	b := make([]byte, 0, 80)
	b = protowire.AppendTag(b, holdingFieldOwner, protowire.BytesType)
	b = protowire.AppendString(b, string(h.Owner))
	b = protowire.AppendTag(b, holdingFieldBalance, protowire.BytesType)
	b = protowire.AppendString(b, uint256ToString(h.Balance))
	return b
}

func decodeHolding(data []byte) (*types.Holding, error) {
	if isJSON(data) {
		var h types.Holding
		if err := jsonx.Unmarshal(data, &h); err != nil {
			return nil, fmt.Errorf("failed to unmarshal holding (json): %w", err)
		}
		if h.Balance == nil {
			h.Balance = uint256.NewInt(0)
		}
		return &h, nil
	}

	h := types.NewHolding("")
	err := consumeFields(data, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		switch {
		case num == holdingFieldOwner && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(field)
			h.Owner = types.Principal(s)
			return n, nil
		case num == holdingFieldBalance && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(field)
			if n < 0 {
				return n, nil
			}
			bal, err := uint256.FromDecimal(s)
			if err != nil {
				return 0, fmt.Errorf("invalid balance %q: %w", s, err)
			}
			h.Balance = bal
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, field), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal holding (proto): %w", err)
	}
	if h.Owner == "" {
		return nil, fmt.Errorf("failed to unmarshal holding (proto): missing owner")
	}
	return h, nil
}

// consumeFields walks a protobuf message; fn returns the number of bytes it consumed (negative on a wire error).
func consumeFields(data []byte, fn func(num protowire.Number, typ protowire.Type, field []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		m, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		data = data[m:]
	}
	return nil
}

func isJSON(data []byte) bool {
	return len(data) > 0 && data[0] == '{'
}

func uint256ToString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
