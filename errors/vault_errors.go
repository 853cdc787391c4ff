package errors

import (
	"github.com/mezonai/vault/jsonx"
)

// VaultErrorCode represents standardized error codes for vault operations
type VaultErrorCode string

const (
	// General errors
	ErrCodeInternal VaultErrorCode = "internal_error"

	// Validation errors
	ErrCodeInvalidRequest VaultErrorCode = "invalid_request"
	ErrCodeInvalidAddress VaultErrorCode = "invalid_address"
	ErrCodeInvalidAmount  VaultErrorCode = "invalid_amount"
	ErrCodeNameTooLong    VaultErrorCode = "name_too_long"

	// Business logic errors
	ErrCodeVaultNotFound          VaultErrorCode = "vault_not_found"
	ErrCodeInsufficientBalance    VaultErrorCode = "insufficient_balance"
	ErrCodeArithmeticOverflow     VaultErrorCode = "arithmetic_overflow"
	ErrCodeArithmeticUnderflow    VaultErrorCode = "arithmetic_underflow"
	ErrCodeExternalTransferFailed VaultErrorCode = "external_transfer_failed"

	// Access errors
	ErrCodeUnauthorized    VaultErrorCode = "unauthorized"
	ErrCodeUnauthenticated VaultErrorCode = "unauthenticated"

	// System errors
	ErrCodeRateLimited VaultErrorCode = "rate_limited"
)

// VaultError is the error shape surfaced to CLI and API callers
type VaultError struct {
	Code    VaultErrorCode `json:"code"`
	Message string         `json:"message"`
}

// Error implements the error interface
func (e *VaultError) Error() string {
	err, _ := jsonx.Marshal(VaultError{
		Code:    e.Code,
		Message: e.Message,
	})
	return string(err)
}

// Error message constants - user-friendly and concise
const (
	ErrMsgInvalidRequest         = "Request format is invalid"
	ErrMsgInvalidAddress         = "Address is invalid"
	ErrMsgInvalidAmount          = "Amount is invalid"
	ErrMsgNameTooLong            = "Vault name is too long"
	ErrMsgVaultNotFound          = "Vault does not exist"
	ErrMsgInsufficientBalance    = "Not enough balance in the vault"
	ErrMsgArithmeticOverflow     = "Amount would overflow the vault balance"
	ErrMsgArithmeticUnderflow    = "Amount would underflow the vault balance"
	ErrMsgExternalTransferFailed = "Custody transfer failed, nothing was changed"
	ErrMsgUnauthorized           = "Caller is not allowed to perform this operation"
	ErrMsgUnauthenticated        = "Request signature is missing or invalid"
	ErrMsgRateLimited            = "Too many requests, please slow down"
	ErrMsgInternal               = "Server error, please try again"
)

var defaultMessages = map[VaultErrorCode]string{
	ErrCodeInternal:               ErrMsgInternal,
	ErrCodeInvalidRequest:         ErrMsgInvalidRequest,
	ErrCodeInvalidAddress:         ErrMsgInvalidAddress,
	ErrCodeInvalidAmount:          ErrMsgInvalidAmount,
	ErrCodeNameTooLong:            ErrMsgNameTooLong,
	ErrCodeVaultNotFound:          ErrMsgVaultNotFound,
	ErrCodeInsufficientBalance:    ErrMsgInsufficientBalance,
	ErrCodeArithmeticOverflow:     ErrMsgArithmeticOverflow,
	ErrCodeArithmeticUnderflow:    ErrMsgArithmeticUnderflow,
	ErrCodeExternalTransferFailed: ErrMsgExternalTransferFailed,
	ErrCodeUnauthorized:           ErrMsgUnauthorized,
	ErrCodeUnauthenticated:        ErrMsgUnauthenticated,
	ErrCodeRateLimited:            ErrMsgRateLimited,
}

// NewError creates a new VaultError and returns it as error interface.
// An empty message picks the default text for the code.
func NewError(code VaultErrorCode, message string) error {
	if message == "" {
		message = DefaultMessage(code)
	}
	return &VaultError{
		Code:    code,
		Message: message,
	}
}

func DefaultMessage(code VaultErrorCode) string {
	if msg, ok := defaultMessages[code]; ok {
		return msg
	}
	return ErrMsgInternal
}
