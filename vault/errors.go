package vault

import (
	"context"
	"errors"

	"github.com/mezonai/vault/auth"
	vaulterrors "github.com/mezonai/vault/errors"
	"github.com/mezonai/vault/safemath"
	"github.com/mezonai/vault/security/validation"
	"github.com/mezonai/vault/types"
)

// Classify maps an error returned by the ledger to its caller-facing code.
func Classify(err error) vaulterrors.VaultErrorCode {
	var coded *vaulterrors.VaultError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &coded):
		return coded.Code
	case errors.Is(err, ErrExternalTransferFailed):
		return vaulterrors.ErrCodeExternalTransferFailed
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, auth.ErrMissingSignature),
		errors.Is(err, auth.ErrInvalidSignature),
		errors.Is(err, auth.ErrInvalidSigner):
		return vaulterrors.ErrCodeUnauthenticated
	case errors.Is(err, ErrUnauthorized):
		return vaulterrors.ErrCodeUnauthorized
	case errors.Is(err, ErrVaultNotFound):
		return vaulterrors.ErrCodeVaultNotFound
	case errors.Is(err, ErrInsufficientBalance):
		return vaulterrors.ErrCodeInsufficientBalance
	case errors.Is(err, safemath.ErrArithmeticOverflow):
		return vaulterrors.ErrCodeArithmeticOverflow
	case errors.Is(err, safemath.ErrArithmeticUnderflow):
		return vaulterrors.ErrCodeArithmeticUnderflow
	case errors.Is(err, ErrInvalidRecipient), errors.Is(err, types.ErrInvalidPrincipal):
		return vaulterrors.ErrCodeInvalidAddress
	case errors.Is(err, types.ErrNameTooLong), errors.Is(err, validation.ErrTextTooLong):
		return vaulterrors.ErrCodeNameTooLong
	case errors.Is(err, types.ErrEmptyName),
		errors.Is(err, types.ErrInvalidVault),
		errors.Is(err, validation.ErrInvalidUTF8),
		errors.Is(err, validation.ErrInvalidCharacters),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return vaulterrors.ErrCodeInvalidRequest
	default:
		return vaulterrors.ErrCodeInternal
	}
}

// AsVaultError renders err in the coded shape shown to CLI users.
func AsVaultError(err error) error {
	if err == nil {
		return nil
	}
	var vaultErr *vaulterrors.VaultError
	if errors.As(err, &vaultErr) {
		return vaultErr
	}
	return vaulterrors.NewError(Classify(err), err.Error())
}
